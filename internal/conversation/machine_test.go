package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/aviabot/core/telegram/state"
	"github.com/m3rciful/aviabot/internal/airlines"
	"github.com/m3rciful/aviabot/internal/flights"
	"github.com/m3rciful/aviabot/internal/i18n"
	"github.com/m3rciful/aviabot/internal/location"
	"github.com/m3rciful/aviabot/internal/prefs"
	"github.com/m3rciful/aviabot/internal/results"
	"github.com/m3rciful/aviabot/internal/travelpayouts"
)

const (
	userID = int64(101)
	chatID = int64(202)
)

var (
	catalog = i18n.MustDefault()
	plus5   = time.FixedZone("UTC+5", 5*3600)
	now     = time.Date(2026, 10, 16, 9, 0, 0, 0, plus5)
	peer    = Peer{UserID: userID, ChatID: chatID}
)

type outbox struct {
	mu      sync.Mutex
	replies []Reply
	chats   []int64
}

func (o *outbox) Send(_ context.Context, chat int64, r Reply) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replies = append(o.replies, r)
	o.chats = append(o.chats, chat)
	return nil
}

func (o *outbox) last() Reply {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.replies) == 0 {
		return Reply{}
	}
	return o.replies[len(o.replies)-1]
}

func (o *outbox) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replies, o.chats = nil, nil
}

type scriptedResolver map[string]location.Resolution

func (s scriptedResolver) Resolve(_ context.Context, text, _ string) location.Resolution {
	if location.IsCode(text) {
		return location.Resolution{Kind: location.Code, Code: strings.ToUpper(text)}
	}
	return s[text]
}

type fakeSearcher struct {
	result  flights.Result
	queries []flights.Query
}

func (f *fakeSearcher) Search(_ context.Context, q flights.Query) flights.Result {
	f.queries = append(f.queries, q)
	return f.result
}

type harness struct {
	m        *Machine
	out      *outbox
	sessions *state.Memory[Session]
	prefs    *prefs.MemoryStore
	search   *fakeSearcher
}

func newHarness(t *testing.T, resolver Resolver, searcher Searcher) *harness {
	t.Helper()
	h := &harness{
		out:      &outbox{},
		sessions: state.NewMemory[Session](),
		prefs:    prefs.NewMemoryStore(),
	}
	if searcher == nil {
		h.search = &fakeSearcher{}
		searcher = h.search
	}
	if resolver == nil {
		resolver = scriptedResolver{}
	}
	h.m = New(Deps{
		Sessions:  h.sessions,
		Prefs:     h.prefs,
		Resolver:  resolver,
		Searcher:  searcher,
		Formatter: results.NewFormatter(catalog, 0),
		Texts:     catalog,
		Outbox:    h.out,
		Location:  plus5,
		Now:       func() time.Time { return now },
	})
	return h
}

func (h *harness) seed(t *testing.T, s Session) {
	t.Helper()
	require.NoError(t, h.sessions.Save(context.Background(), userID, s))
}

func (h *harness) session(t *testing.T) Session {
	t.Helper()
	s, err := h.sessions.Load(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func en(key string) string { return catalog.Text("en", key) }

func choices(r Reply) []Choice {
	var out []Choice
	for _, row := range r.Buttons {
		for _, b := range row {
			out = append(out, b.Choice)
		}
	}
	return out
}

func TestFirstContactAsksLanguage(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, h.m.HandleText(ctx, peer, "hello"))
	assert.Equal(t, ChoosingLanguage, h.session(t).State)
	r := h.out.last()
	assert.Equal(t, en("choose_language"), r.Text)
	assert.Len(t, choices(r), len(catalog.Languages()))
	assert.Equal(t, []int64{chatID}, h.out.chats)

	require.NoError(t, h.m.HandleChoice(ctx, peer, Choice{KindLanguage, "ru"}))
	s := h.session(t)
	assert.Equal(t, ChoosingAction, s.State)
	assert.Equal(t, "ru", s.Language)
	assert.Equal(t, catalog.Text("ru", "choose_action"), h.out.last().Text)

	stored, _ := h.prefs.Get(ctx, userID)
	assert.Equal(t, "ru", stored)
}

func TestStartSeedsLanguageFromPreferences(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, h.prefs.Set(ctx, userID, "kk"))

	require.NoError(t, h.m.Start(ctx, peer))
	s := h.session(t)
	assert.Equal(t, ChoosingAction, s.State)
	assert.Equal(t, "kk", s.Language)
}

func TestStartKeepsSessionLanguage(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed(t, Session{State: EnteringDate, Language: "uz", Origin: "TAS", Destination: "IST"})

	require.NoError(t, h.m.Start(context.Background(), peer))
	assert.Equal(t, Session{State: ChoosingAction, Language: "uz"}, h.session(t))
}

func TestUnsupportedLanguageChoiceReprompts(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed(t, Session{State: ChoosingLanguage})

	require.NoError(t, h.m.HandleChoice(context.Background(), peer, Choice{KindLanguage, "xx"}))
	assert.Equal(t, ChoosingLanguage, h.session(t).State)
	assert.True(t, strings.HasPrefix(h.out.last().Text, en("invalid_choice")))
}

func TestBackFromDestinationKeepsOrigin(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed(t, Session{State: EnteringDestination, Language: "en", Trip: OneWay, Origin: "TAS", Destination: "DXB"})

	require.NoError(t, h.m.HandleChoice(context.Background(), peer, Choice{KindNav, NavBack}))
	s := h.session(t)
	assert.Equal(t, EnteringOrigin, s.State)
	assert.Equal(t, "TAS", s.Origin)
	assert.Empty(t, s.Destination)
	assert.Equal(t, OneWay, s.Trip)
	assert.Equal(t, en("ask_origin"), h.out.last().Text)
}

func TestBackChain(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	h.seed(t, Session{State: EnteringDate, Language: "en", Trip: RoundTrip, Origin: "TAS", Destination: "DXB"})

	want := []State{ChoosingDateMode, EnteringDestination, EnteringOrigin, ChoosingAction, ChoosingLanguage, ChoosingLanguage}
	for _, st := range want {
		require.NoError(t, h.m.HandleChoice(ctx, peer, Choice{KindNav, NavBack}))
		assert.Equal(t, st, h.session(t).State)
	}
	s := h.session(t)
	assert.Empty(t, s.Origin)
	assert.Empty(t, s.Destination)
	assert.Empty(t, s.Trip)
	assert.Equal(t, "en", s.Language)
}

func TestInvalidInputDoesNotAdvance(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	h.seed(t, Session{State: ChoosingAction, Language: "en"})

	require.NoError(t, h.m.HandleText(ctx, peer, "just text"))
	assert.Equal(t, ChoosingAction, h.session(t).State)
	r := h.out.last()
	assert.Equal(t, en("invalid_choice")+"\n\n"+en("choose_action"), r.Text)
	assert.Len(t, choices(r), 3)

	require.NoError(t, h.m.HandleChoice(ctx, peer, Choice{KindDateMode, DateNearest}))
	assert.Equal(t, ChoosingAction, h.session(t).State)
	assert.Empty(t, h.search.queries)
}

func TestOriginCandidates(t *testing.T) {
	resolver := scriptedResolver{
		"Moscow": {Kind: location.Candidates, Candidates: []location.Candidate{
			{Code: "MOW", Name: "Moscow", Country: "Russia"},
			{Code: "SVO", Name: "Sheremetyevo", Country: "Russia"},
		}},
	}
	h := newHarness(t, resolver, nil)
	ctx := context.Background()
	h.seed(t, Session{State: EnteringOrigin, Language: "en", Trip: OneWay})

	require.NoError(t, h.m.HandleText(ctx, peer, "Moscow"))
	s := h.session(t)
	require.Equal(t, ChoosingOriginCandidate, s.State)
	r := h.out.last()
	assert.Equal(t, en("choose_origin"), r.Text)
	assert.Equal(t, "Moscow, Russia (MOW)", r.Buttons[0][0].Text)
	assert.Contains(t, choices(r), Choice{KindNav, NavBack})

	require.NoError(t, h.m.HandleChoice(ctx, peer, Choice{KindCandidate, "LED"}))
	assert.Equal(t, ChoosingOriginCandidate, h.session(t).State)

	require.NoError(t, h.m.HandleChoice(ctx, peer, Choice{KindCandidate, "SVO"}))
	s = h.session(t)
	assert.Equal(t, EnteringDestination, s.State)
	assert.Equal(t, "SVO", s.Origin)
	assert.Empty(t, s.OriginCandidates)
}

func TestCityNotFoundKeepsState(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed(t, Session{State: EnteringOrigin, Language: "en"})

	require.NoError(t, h.m.HandleText(context.Background(), peer, "Atlantis"))
	s := h.session(t)
	assert.Equal(t, EnteringOrigin, s.State)
	assert.Empty(t, s.Origin)
	assert.True(t, strings.HasPrefix(h.out.last().Text, en("city_not_found")))
}

func TestSameCityRejected(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed(t, Session{State: EnteringDestination, Language: "en", Origin: "TAS"})

	require.NoError(t, h.m.HandleText(context.Background(), peer, "tas"))
	s := h.session(t)
	assert.Equal(t, EnteringDestination, s.State)
	assert.Empty(t, s.Destination)
	assert.True(t, strings.HasPrefix(h.out.last().Text, en("same_city")))
}

func TestExactDateFlow(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	h.search.result = flights.Result{Status: flights.Empty}
	h.seed(t, Session{State: ChoosingDateMode, Language: "en", Trip: RoundTrip, Origin: "TAS", Destination: "IST"})

	require.NoError(t, h.m.HandleChoice(ctx, peer, Choice{KindDateMode, DateExact}))
	assert.Equal(t, EnteringDate, h.session(t).State)
	assert.Equal(t, en("ask_date"), h.out.last().Text)

	require.NoError(t, h.m.HandleText(ctx, peer, "next week"))
	assert.Equal(t, EnteringDate, h.session(t).State)
	assert.True(t, strings.HasPrefix(h.out.last().Text, en("invalid_date")))

	require.NoError(t, h.m.HandleText(ctx, peer, "15.10.2026"))
	assert.Equal(t, EnteringDate, h.session(t).State)
	assert.True(t, strings.HasPrefix(h.out.last().Text, en("past_date")))

	require.NoError(t, h.m.HandleText(ctx, peer, "20.11.2026"))
	require.Len(t, h.search.queries, 1)
	q := h.search.queries[0]
	assert.Equal(t, "2026-11-20", q.Date.Format(time.DateOnly))
	assert.Equal(t, "TAS", q.Origin)
	assert.Equal(t, "IST", q.Destination)
	assert.True(t, q.RoundTrip)

	s := h.session(t)
	assert.Equal(t, EnteringOrigin, s.State)
	assert.Empty(t, s.Origin)
	assert.Equal(t, RoundTrip, s.Trip)
	assert.Equal(t, en("no_flights")+"\n\n"+en("ask_origin"), h.out.last().Text)
}

func TestDateTypedAtModeChoice(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.search.result = flights.Result{Status: flights.Empty}
	h.seed(t, Session{State: ChoosingDateMode, Language: "en", Origin: "TAS", Destination: "IST"})

	require.NoError(t, h.m.HandleText(context.Background(), peer, "2026-12-01"))
	require.Len(t, h.search.queries, 1)
	assert.Equal(t, "2026-12-01", h.search.queries[0].Date.Format(time.DateOnly))
}

func TestOutdatedSession(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	h.seed(t, Session{State: EnteringDate, Language: "en"})

	require.NoError(t, h.m.HandleText(ctx, peer, "20.11.2026"))
	assert.Equal(t, EnteringOrigin, h.session(t).State)
	assert.Equal(t, en("outdated"), h.out.last().Text)
	assert.Empty(t, h.search.queries)

	// a button pressed after a restart wiped the session
	require.NoError(t, h.sessions.Delete(ctx, userID))
	require.NoError(t, h.prefs.Set(ctx, userID, "en"))
	require.NoError(t, h.m.HandleChoice(ctx, peer, Choice{KindDateMode, DateNearest}))
	assert.Equal(t, Session{State: EnteringOrigin, Language: "en"}, h.session(t))
	assert.Equal(t, en("outdated"), h.out.last().Text)

	// a date typed after a restart wiped the session
	require.NoError(t, h.sessions.Delete(ctx, userID))
	require.NoError(t, h.m.HandleText(ctx, peer, "20.11.2026"))
	assert.Equal(t, Session{State: EnteringOrigin, Language: "en"}, h.session(t))
	assert.Equal(t, en("outdated"), h.out.last().Text)
	assert.Empty(t, h.search.queries)

	// other text without a session is still first contact
	require.NoError(t, h.sessions.Delete(ctx, userID))
	require.NoError(t, h.m.HandleText(ctx, peer, "hello"))
	assert.Equal(t, Session{State: ChoosingAction, Language: "en"}, h.session(t))
}

func TestMenuAndCancel(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	h.seed(t, Session{State: ChoosingDateMode, Language: "en", Trip: OneWay, Origin: "TAS", Destination: "IST"})

	require.NoError(t, h.m.HandleChoice(ctx, peer, Choice{KindNav, NavMenu}))
	assert.Equal(t, Session{State: ChoosingAction, Language: "en"}, h.session(t))

	h.seed(t, Session{State: EnteringDestination, Language: "en", Origin: "TAS"})
	h.out.reset()
	require.NoError(t, h.m.Cancel(ctx, peer))
	assert.Equal(t, Session{State: ChoosingAction, Language: "en"}, h.session(t))
	require.Len(t, h.out.replies, 2)
	assert.Equal(t, en("cancelled"), h.out.replies[0].Text)
	assert.Equal(t, en("choose_action"), h.out.replies[1].Text)
}

func TestLanguageCommand(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed(t, Session{State: EnteringDestination, Language: "ru", Origin: "TAS"})

	require.NoError(t, h.m.Language(context.Background(), peer))
	s := h.session(t)
	assert.Equal(t, ChoosingLanguage, s.State)
	assert.Empty(t, s.Origin)
	assert.Equal(t, "ru", s.Language)
}

type noPlaces struct{ t *testing.T }

func (n noPlaces) Places(context.Context, string, string) ([]travelpayouts.Place, error) {
	n.t.Error("autocomplete must not be called for IATA codes")
	return nil, errors.New("unexpected")
}

type pricePages struct {
	tickets []travelpayouts.Ticket
	err     error
}

func (p pricePages) PricesForDates(context.Context, travelpayouts.PricesQuery) (travelpayouts.PricesPage, error) {
	if p.err != nil {
		return travelpayouts.PricesPage{}, p.err
	}
	return travelpayouts.PricesPage{Tickets: p.tickets, Currency: "usd"}, nil
}

func (p pricePages) PricesPage(context.Context, string) (travelpayouts.PricesPage, error) {
	return travelpayouts.PricesPage{}, errors.New("no more pages")
}

type airlineList []travelpayouts.Airline

func (a airlineList) Airlines(context.Context) ([]travelpayouts.Airline, error) { return a, nil }

func pipelineHarness(t *testing.T, prices pricePages) *harness {
	dir := airlines.NewDirectory(airlineList{
		{Code: "HY", Name: "Uzbekistan Airways"},
		{Code: "FZ", Name: "flydubai", NameTranslations: map[string]string{"en": "flydubai"}},
		{Code: "EK", Name: "Emirates"},
	}, time.Second)
	agg := flights.NewAggregator(prices, dir, flights.Options{Location: plus5})
	return newHarness(t, location.NewResolver(noPlaces{t}, nil, 0), agg)
}

func driveToDateMode(t *testing.T, h *harness) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.prefs.Set(ctx, userID, "en"))
	require.NoError(t, h.m.Start(ctx, peer))
	require.NoError(t, h.m.HandleChoice(ctx, peer, Choice{KindAction, ActionOneWay}))
	require.NoError(t, h.m.HandleText(ctx, peer, "tas"))
	require.NoError(t, h.m.HandleText(ctx, peer, "DXB"))
	require.Equal(t, ChoosingDateMode, h.session(t).State)
}

func TestNearestSearchEndToEnd(t *testing.T) {
	tk := func(airline, number, dep string, price float64) travelpayouts.Ticket {
		return travelpayouts.Ticket{Origin: "TAS", Destination: "DXB", Airline: airline,
			FlightNumber: travelpayouts.FlexString(number), DepartureAt: dep, Price: price}
	}
	h := pipelineHarness(t, pricePages{tickets: []travelpayouts.Ticket{
		tk("EK", "2", "2026-10-25T04:00:00+05:00", 400),
		tk("HY", "301", "2026-10-20T08:15:00+05:00", 210),
		tk("FZ", "1872", "2026-10-18T23:40:00+05:00", 199),
		tk("HY", "303", "2026-10-22T08:15:00+05:00", 220),
		tk("FZ", "1874", "2026-10-19T23:40:00+05:00", 205),
		tk("EK", "4", "2026-10-30T04:00:00+05:00", 380),
		tk("HY", "305", "bad", 150),
	}})
	driveToDateMode(t, h)
	h.out.reset()

	require.NoError(t, h.m.HandleChoice(context.Background(), peer, Choice{KindDateMode, DateNearest}))

	require.GreaterOrEqual(t, len(h.out.replies), 2)
	assert.Equal(t, en("searching"), h.out.replies[0].Text)
	blocks := h.out.replies[1:]
	text := ""
	for _, b := range blocks {
		text += b.Text
	}
	assert.True(t, strings.HasPrefix(blocks[0].Text, "Flights TAS → DXB:"))
	assert.True(t, strings.HasSuffix(blocks[len(blocks)-1].Text, en("cta")))
	assert.Equal(t, 5, strings.Count(text, "✈️"))
	assert.Contains(t, text, "HY 301 · Uzbekistan Airways")
	assert.Contains(t, text, "EK 2 · Emirates")
	assert.NotContains(t, text, "EK 4")
	assert.NotContains(t, text, "HY 305")
	assert.Less(t, strings.Index(text, "FZ 1872"), strings.Index(text, "FZ 1874"))
	assert.Less(t, strings.Index(text, "FZ 1874"), strings.Index(text, "HY 301"))
	assert.Contains(t, choices(blocks[len(blocks)-1]), Choice{KindNav, NavMenu})

	s := h.session(t)
	assert.Equal(t, EnteringOrigin, s.State)
	assert.Empty(t, s.Origin)
	assert.Empty(t, s.Destination)
	assert.Equal(t, "en", s.Language)
}

func TestFirstPageFailureReturnsToOrigin(t *testing.T) {
	h := pipelineHarness(t, pricePages{err: travelpayouts.ErrNoData})
	driveToDateMode(t, h)

	require.NoError(t, h.m.HandleChoice(context.Background(), peer, Choice{KindDateMode, DateNearest}))
	r := h.out.last()
	assert.True(t, strings.HasPrefix(r.Text, en("error")))
	s := h.session(t)
	assert.Equal(t, EnteringOrigin, s.State)
	assert.Empty(t, s.Origin)
	assert.Equal(t, "en", s.Language)
}

func TestSessionSurvivesRedisRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := state.NewRedis[Session](client, state.RedisOptions{TTL: time.Hour})

	want := Session{
		State: ChoosingOriginCandidate, Language: "ru", Trip: RoundTrip,
		OriginCandidates: []location.Candidate{{Code: "MOW", Name: "Москва", Country: "Россия"}},
	}
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, userID, want))
	got, err := store.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPreferredLanguage(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	assert.Equal(t, catalog.DefaultCode(), h.m.PreferredLanguage(ctx, userID))

	require.NoError(t, h.prefs.Set(ctx, userID, "tg"))
	assert.Equal(t, "tg", h.m.PreferredLanguage(ctx, userID))

	h.seed(t, Session{State: EnteringOrigin, Language: "ky"})
	assert.Equal(t, "ky", h.m.PreferredLanguage(ctx, userID))
}
