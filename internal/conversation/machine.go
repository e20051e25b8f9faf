package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/aviabot/core/logger"
	"github.com/m3rciful/aviabot/core/telegram/state"
	"github.com/m3rciful/aviabot/internal/flights"
	"github.com/m3rciful/aviabot/internal/i18n"
	"github.com/m3rciful/aviabot/internal/location"
	"github.com/m3rciful/aviabot/internal/prefs"
)

// Resolver turns free text into a location.
type Resolver interface {
	Resolve(ctx context.Context, text, language string) location.Resolution
}

// Searcher runs flight searches.
type Searcher interface {
	Search(ctx context.Context, q flights.Query) flights.Result
}

// Formatter renders search results into message blocks.
type Formatter interface {
	Format(language, header string, list []flights.Flight) []string
}

// Deps wires a Machine.
type Deps struct {
	Sessions  state.Store[Session]
	Prefs     prefs.Store
	Resolver  Resolver
	Searcher  Searcher
	Formatter Formatter
	Texts     *i18n.Catalog
	Outbox    Outbox
	// Location is the reference zone for date entry; nil means UTC.
	Location *time.Location
	Now      func() time.Time
}

// Machine processes dialog events. Events for one user run one at a time.
type Machine struct {
	sessions  state.Store[Session]
	prefs     prefs.Store
	resolver  Resolver
	searcher  Searcher
	formatter Formatter
	texts     *i18n.Catalog
	out       Outbox
	loc       *time.Location
	now       func() time.Time
	locks     *state.Locks
}

// New builds a Machine from d.
func New(d Deps) *Machine {
	m := &Machine{
		sessions:  d.Sessions,
		prefs:     d.Prefs,
		resolver:  d.Resolver,
		searcher:  d.Searcher,
		formatter: d.Formatter,
		texts:     d.Texts,
		out:       d.Outbox,
		loc:       d.Location,
		now:       d.Now,
		locks:     state.NewLocks(),
	}
	if m.loc == nil {
		m.loc = time.UTC
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.prefs == nil {
		m.prefs = prefs.NewMemoryStore()
	}
	return m
}

// SessionCount reports stored sessions.
func (m *Machine) SessionCount(ctx context.Context) (int, error) {
	return m.sessions.Count(ctx)
}

// PreferredLanguage returns the session language, then the stored preference,
// then the catalog default. It does not take the user's lock.
func (m *Machine) PreferredLanguage(ctx context.Context, userID int64) string {
	if s, err := m.sessions.Load(ctx, userID); err == nil && m.texts.Supported(s.Language) {
		return s.Language
	}
	if lang := m.storedLanguage(ctx, userID); m.texts.Supported(lang) {
		return lang
	}
	return m.texts.DefaultCode()
}

type turn struct {
	peer  Peer
	sess  Session
	found bool
}

// run loads the session under the user's lock, applies fn and stores the result.
func (m *Machine) run(ctx context.Context, p Peer, event string, fn func(context.Context, *turn) error) error {
	unlock := m.locks.Lock(p.UserID)
	defer unlock()

	t := &turn{peer: p}
	sess, err := m.sessions.Load(ctx, p.UserID)
	switch {
	case err == nil:
		t.sess, t.found = sess, true
	case errors.Is(err, state.ErrNotFound):
	default:
		logger.Warn(ctx, logger.CompFSM, "session.load",
			slog.String("status", logger.Status(err)),
			slog.Any("err", err),
		)
	}
	from := t.sess.State

	ferr := fn(ctx, t)

	if serr := m.sessions.Save(ctx, p.UserID, t.sess); serr != nil {
		logger.Error(ctx, logger.CompFSM, "session.save",
			slog.String("status", "error"),
			slog.Any("err", serr),
		)
		if ferr == nil {
			ferr = serr
		}
	}

	level := logger.Debug
	if from != t.sess.State {
		level = logger.Info
	}
	level(ctx, logger.CompFSM, "fsm."+event,
		slog.String("state", string(from)),
		slog.String("next_state", string(t.sess.State)),
		slog.String("lang", t.sess.Language),
		slog.String("status", logger.Status(ferr)),
	)
	return ferr
}

// Start resets the dialog. A known language skips the language prompt.
func (m *Machine) Start(ctx context.Context, p Peer) error {
	return m.run(ctx, p, "start", m.start)
}

// Cancel resets the dialog after a cancellation notice.
func (m *Machine) Cancel(ctx context.Context, p Peer) error {
	return m.run(ctx, p, "cancel", m.cancel)
}

// Language jumps to the language prompt.
func (m *Machine) Language(ctx context.Context, p Peer) error {
	return m.run(ctx, p, "language", func(ctx context.Context, t *turn) error {
		t.sess.resetSearch()
		return m.advance(ctx, t, ChoosingLanguage)
	})
}

// HandleText processes free text. Text from a user without a session starts
// one, except a date from a returning user: that session was lost mid-search.
func (m *Machine) HandleText(ctx context.Context, p Peer, text string) error {
	return m.run(ctx, p, "text", func(ctx context.Context, t *turn) error {
		if !t.found {
			lang := m.storedLanguage(ctx, p.UserID)
			if _, err := ParseDate(text, m.loc, m.now()); m.texts.Supported(lang) && !errors.Is(err, ErrDateFormat) {
				t.sess.Language = lang
				return m.outdated(ctx, t)
			}
			return m.start(ctx, t)
		}
		switch t.sess.State {
		case EnteringOrigin:
			return m.enterOrigin(ctx, t, text)
		case EnteringDestination:
			return m.enterDestination(ctx, t, text)
		case ChoosingDateMode, EnteringDate:
			return m.enterDate(ctx, t, text)
		default:
			return m.reprompt(ctx, t, "invalid_choice")
		}
	})
}

// HandleChoice processes a button press.
func (m *Machine) HandleChoice(ctx context.Context, p Peer, c Choice) error {
	return m.run(ctx, p, "choice", func(ctx context.Context, t *turn) error {
		if !t.found {
			if c.Kind == KindLanguage {
				t.sess = Session{State: ChoosingLanguage}
				return m.chooseLanguage(ctx, t, c.Value)
			}
			t.sess.Language = m.storedLanguage(ctx, p.UserID)
			if !m.texts.Supported(t.sess.Language) {
				return m.start(ctx, t)
			}
			return m.outdated(ctx, t)
		}

		if c.Kind == KindNav {
			switch c.Value {
			case NavBack:
				return m.back(ctx, t)
			case NavMenu:
				t.sess.resetSearch()
				t.sess.Trip = ""
				return m.advance(ctx, t, ChoosingAction)
			case NavCancel:
				return m.cancel(ctx, t)
			}
			return m.reprompt(ctx, t, "invalid_choice")
		}

		switch {
		case t.sess.State == ChoosingLanguage && c.Kind == KindLanguage:
			return m.chooseLanguage(ctx, t, c.Value)
		case t.sess.State == ChoosingAction && c.Kind == KindAction:
			return m.chooseAction(ctx, t, c.Value)
		case t.sess.State == ChoosingOriginCandidate && c.Kind == KindCandidate:
			return m.chooseOrigin(ctx, t, c.Value)
		case t.sess.State == ChoosingDestinationCandidate && c.Kind == KindCandidate:
			return m.chooseDestination(ctx, t, c.Value)
		case t.sess.State == ChoosingDateMode && c.Kind == KindDateMode:
			if c.Value == DateExact {
				if t.sess.Origin == "" || t.sess.Destination == "" {
					return m.outdated(ctx, t)
				}
				return m.advance(ctx, t, EnteringDate)
			}
			if c.Value == DateNearest {
				return m.search(ctx, t, time.Time{})
			}
		case t.sess.State == EnteringDate && c.Kind == KindDateMode && c.Value == DateNearest:
			return m.search(ctx, t, time.Time{})
		}
		return m.reprompt(ctx, t, "invalid_choice")
	})
}

func (m *Machine) start(ctx context.Context, t *turn) error {
	lang := t.sess.Language
	if lang == "" {
		lang = m.storedLanguage(ctx, t.peer.UserID)
	}
	if !m.texts.Supported(lang) {
		t.sess = Session{}
		return m.advance(ctx, t, ChoosingLanguage)
	}
	t.sess = Session{Language: lang}
	return m.advance(ctx, t, ChoosingAction)
}

func (m *Machine) cancel(ctx context.Context, t *turn) error {
	if err := m.send(ctx, t, Reply{Text: m.msg(&t.sess, "cancelled")}); err != nil {
		return err
	}
	return m.start(ctx, t)
}

func (m *Machine) storedLanguage(ctx context.Context, userID int64) string {
	lang, err := m.prefs.Get(ctx, userID)
	if err != nil {
		logger.Warn(ctx, logger.CompPrefs, "prefs.get",
			slog.String("status", logger.Status(err)),
			slog.Any("err", err),
		)
		return ""
	}
	return lang
}

func (m *Machine) send(ctx context.Context, t *turn, r Reply) error {
	return m.out.Send(ctx, t.peer.ChatID, r)
}

// advance moves to next and sends its prompt.
func (m *Machine) advance(ctx context.Context, t *turn, next State) error {
	t.sess.State = next
	return m.send(ctx, t, m.prompt(&t.sess))
}

// reprompt keeps the state and resends its prompt behind a notice.
func (m *Machine) reprompt(ctx context.Context, t *turn, key string) error {
	r := m.prompt(&t.sess)
	r.Text = m.msg(&t.sess, key) + "\n\n" + r.Text
	return m.send(ctx, t, r)
}

// outdated handles steps that need search fields the session no longer has.
func (m *Machine) outdated(ctx context.Context, t *turn) error {
	t.sess.resetSearch()
	t.sess.State = EnteringOrigin
	r := m.prompt(&t.sess)
	r.Text = m.msg(&t.sess, "outdated")
	return m.send(ctx, t, r)
}

func (m *Machine) back(ctx context.Context, t *turn) error {
	prev, ok := backTo[t.sess.State]
	if !ok {
		return m.advance(ctx, t, t.sess.State)
	}
	t.sess.leave()
	return m.advance(ctx, t, prev)
}

func (m *Machine) chooseLanguage(ctx context.Context, t *turn, code string) error {
	if !m.texts.Supported(code) {
		return m.reprompt(ctx, t, "invalid_choice")
	}
	t.sess.Language = code
	if err := m.prefs.Set(ctx, t.peer.UserID, code); err != nil {
		logger.Warn(ctx, logger.CompPrefs, "prefs.set",
			slog.String("status", logger.Status(err)),
			slog.Any("err", err),
		)
	}
	return m.advance(ctx, t, ChoosingAction)
}

func (m *Machine) chooseAction(ctx context.Context, t *turn, action string) error {
	switch action {
	case ActionOneWay:
		t.sess.Trip = OneWay
	case ActionRoundTrip:
		t.sess.Trip = RoundTrip
	case ActionLanguage:
		return m.advance(ctx, t, ChoosingLanguage)
	default:
		return m.reprompt(ctx, t, "invalid_choice")
	}
	t.sess.resetSearch()
	return m.advance(ctx, t, EnteringOrigin)
}

func (m *Machine) enterOrigin(ctx context.Context, t *turn, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return m.reprompt(ctx, t, "empty_city")
	}
	res := m.resolver.Resolve(ctx, text, t.sess.Language)
	switch res.Kind {
	case location.Code:
		t.sess.Origin = res.Code
		t.sess.OriginCandidates = nil
		return m.advance(ctx, t, EnteringDestination)
	case location.Candidates:
		t.sess.OriginCandidates = res.Candidates
		return m.advance(ctx, t, ChoosingOriginCandidate)
	default:
		return m.reprompt(ctx, t, "city_not_found")
	}
}

func (m *Machine) chooseOrigin(ctx context.Context, t *turn, code string) error {
	if _, ok := findCandidate(t.sess.OriginCandidates, code); !ok {
		return m.reprompt(ctx, t, "invalid_choice")
	}
	t.sess.Origin = code
	t.sess.OriginCandidates = nil
	return m.advance(ctx, t, EnteringDestination)
}

func (m *Machine) enterDestination(ctx context.Context, t *turn, text string) error {
	if t.sess.Origin == "" {
		return m.outdated(ctx, t)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return m.reprompt(ctx, t, "empty_city")
	}
	res := m.resolver.Resolve(ctx, text, t.sess.Language)
	switch res.Kind {
	case location.Code:
		return m.setDestination(ctx, t, res.Code)
	case location.Candidates:
		others := make([]location.Candidate, 0, len(res.Candidates))
		for _, c := range res.Candidates {
			if c.Code != t.sess.Origin {
				others = append(others, c)
			}
		}
		switch len(others) {
		case 0:
			return m.reprompt(ctx, t, "same_city")
		case 1:
			return m.setDestination(ctx, t, others[0].Code)
		}
		t.sess.DestinationCandidates = others
		return m.advance(ctx, t, ChoosingDestinationCandidate)
	default:
		return m.reprompt(ctx, t, "city_not_found")
	}
}

func (m *Machine) chooseDestination(ctx context.Context, t *turn, code string) error {
	if _, ok := findCandidate(t.sess.DestinationCandidates, code); !ok {
		return m.reprompt(ctx, t, "invalid_choice")
	}
	if t.sess.Origin == "" {
		return m.outdated(ctx, t)
	}
	t.sess.DestinationCandidates = nil
	return m.setDestination(ctx, t, code)
}

func (m *Machine) setDestination(ctx context.Context, t *turn, code string) error {
	if code == t.sess.Origin {
		t.sess.State = EnteringDestination
		return m.reprompt(ctx, t, "same_city")
	}
	t.sess.Destination = code
	t.sess.DestinationCandidates = nil
	return m.advance(ctx, t, ChoosingDateMode)
}

func (m *Machine) enterDate(ctx context.Context, t *turn, text string) error {
	if t.sess.Origin == "" || t.sess.Destination == "" {
		return m.outdated(ctx, t)
	}
	day, err := ParseDate(text, m.loc, m.now())
	switch {
	case err == nil:
		return m.search(ctx, t, day)
	case errors.Is(err, ErrPastDate):
		return m.reprompt(ctx, t, "past_date")
	case t.sess.State == ChoosingDateMode:
		return m.reprompt(ctx, t, "invalid_choice")
	default:
		return m.reprompt(ctx, t, "invalid_date")
	}
}

// search runs a query for the session route; a zero day searches the nearest
// flights. The session always ends in EnteringOrigin with the route cleared.
func (m *Machine) search(ctx context.Context, t *turn, day time.Time) error {
	s := &t.sess
	if s.Origin == "" || s.Destination == "" {
		return m.outdated(ctx, t)
	}
	if !day.IsZero() {
		s.Date = day.Format(time.DateOnly)
	}
	if err := m.send(ctx, t, Reply{Text: m.msg(s, "searching")}); err != nil {
		return err
	}

	res := m.searcher.Search(ctx, flights.Query{
		Origin:      s.Origin,
		Destination: s.Destination,
		Date:        day,
		Language:    s.Language,
		RoundTrip:   s.Trip == RoundTrip,
	})
	origin, destination := s.Origin, s.Destination
	s.resetSearch()
	s.State = EnteringOrigin

	switch res.Status {
	case flights.OK:
		header := m.texts.Render(s.Language, "results_header", map[string]string{
			"origin":      origin,
			"destination": destination,
		})
		blocks := m.formatter.Format(s.Language, header, res.Flights)
		for i, b := range blocks {
			r := Reply{Text: b}
			if i == len(blocks)-1 {
				r.Buttons = [][]Button{{{Text: m.msg(s, "menu"), Choice: Choice{KindNav, NavMenu}}}}
			}
			if err := m.send(ctx, t, r); err != nil {
				return err
			}
		}
		return nil
	case flights.Empty:
		return m.reprompt(ctx, t, "no_flights")
	default:
		return m.reprompt(ctx, t, "error")
	}
}
