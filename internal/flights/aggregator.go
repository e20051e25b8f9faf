package flights

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/aviabot/core/logger"
	"github.com/m3rciful/aviabot/internal/travelpayouts"
)

const (
	DefaultPageSize     = 30
	DefaultMaxPages     = 3
	DefaultNearestLimit = 5
)

// Status is the outcome of a search.
type Status int

const (
	// Failed means the first page could not be fetched.
	Failed Status = iota
	// Empty means the upstream answered but nothing matched.
	Empty
	// OK means at least one flight was found.
	OK
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Empty:
		return "empty"
	default:
		return "failed"
	}
}

// Query is one search request.
type Query struct {
	Origin      string
	Destination string
	// Date is the requested calendar day; the zero value searches the nearest flights.
	Date      time.Time
	Language  string
	RoundTrip bool
}

// Nearest reports whether the query has no exact date.
func (q Query) Nearest() bool { return q.Date.IsZero() }

// Result carries the search outcome. Err is set only when Status is Failed.
type Result struct {
	Status   Status
	Flights  []Flight
	SearchID string
	Pages    int
	// Partial is true when a page after the first failed.
	Partial bool
	Err     error
}

// PriceSource is the paginated pricing API.
type PriceSource interface {
	PricesForDates(ctx context.Context, q travelpayouts.PricesQuery) (travelpayouts.PricesPage, error)
	PricesPage(ctx context.Context, pageURL string) (travelpayouts.PricesPage, error)
}

// Namer resolves airline display names.
type Namer interface {
	Name(ctx context.Context, code, language string) string
}

// MarketFunc maps a language to the currency and API locale.
type MarketFunc func(language string) (currency, locale string)

// Options tune the aggregator.
type Options struct {
	PageSize     int
	MaxPages     int
	NearestLimit int
	// Location is the reference zone for date filtering and offset-less timestamps.
	Location *time.Location
	Market   MarketFunc
}

// Aggregator runs searches against a PriceSource.
type Aggregator struct {
	source PriceSource
	names  Namer
	opts   Options
}

// NewAggregator applies defaults to opts and builds an Aggregator.
func NewAggregator(source PriceSource, names Namer, opts Options) *Aggregator {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.NearestLimit <= 0 {
		opts.NearestLimit = DefaultNearestLimit
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Market == nil {
		opts.Market = func(lang string) (string, string) { return "usd", lang }
	}
	return &Aggregator{source: source, names: names, opts: opts}
}

// Location returns the reference zone.
func (a *Aggregator) Location() *time.Location { return a.opts.Location }

// Search fetches, deduplicates, filters, sorts and enriches flights for q.
// Upstream failures are reported through Result, never as a panic or error return.
func (a *Aggregator) Search(ctx context.Context, q Query) Result {
	start := time.Now()
	res := Result{SearchID: uuid.NewString()}
	ctx = logger.WithSearchID(ctx, res.SearchID)

	flights, pages, err := a.collect(ctx, q)
	res.Pages = pages
	switch {
	case err != nil && pages == 0:
		res.Status, res.Err = Failed, err
	default:
		res.Partial = err != nil
		if q.Nearest() {
			flights = a.nearest(flights)
		} else {
			flights = a.onDate(flights, q.Date)
		}
		a.enrich(ctx, flights, q.Language)
		res.Flights = flights
		res.Status = Empty
		if len(flights) > 0 {
			res.Status = OK
		}
	}

	mode := "date"
	date := ""
	if q.Nearest() {
		mode = "nearest"
	} else {
		date = q.Date.Format(time.DateOnly)
	}
	attrs := []slog.Attr{
		slog.String("origin", q.Origin),
		slog.String("destination", q.Destination),
		slog.String("mode", mode),
		slog.String("date", date),
		slog.String("lang", q.Language),
		slog.Int("pages", res.Pages),
		slog.Int("count", len(res.Flights)),
		slog.Bool("partial", res.Partial),
		slog.String("outcome", res.Status.String()),
		slog.Duration("duration", logger.Took(start)),
	}
	if res.Err != nil {
		attrs = append(attrs, slog.Any("err", res.Err))
		logger.Warn(ctx, logger.CompSearch, "search.done", attrs...)
	} else {
		logger.Info(ctx, logger.CompSearch, "search.done", attrs...)
	}
	return res
}

// collect walks pages until the upstream signals the end, a short page
// arrives, or MaxPages is reached. It returns the unique flights seen, the
// number of pages fetched and the error that stopped paging early, if any.
func (a *Aggregator) collect(ctx context.Context, q Query) ([]Flight, int, error) {
	currency, locale := a.opts.Market(q.Language)
	pq := travelpayouts.PricesQuery{
		Origin:      q.Origin,
		Destination: q.Destination,
		Currency:    currency,
		Locale:      locale,
		OneWay:      !q.RoundTrip,
		Limit:       a.opts.PageSize,
		Page:        1,
	}
	if !q.Nearest() {
		pq.DepartureAt = q.Date.Format(time.DateOnly)
	}

	var (
		out  []Flight
		seen = make(map[dedupKey]struct{})
		next string
	)
	for page := 1; page <= a.opts.MaxPages; page++ {
		var (
			p   travelpayouts.PricesPage
			err error
		)
		if page == 1 {
			p, err = a.source.PricesForDates(ctx, pq)
		} else {
			p, err = a.source.PricesPage(ctx, next)
		}
		if err != nil {
			logger.Warn(ctx, logger.CompUpstream, "prices.page_failed",
				slog.Int("page", page),
				slog.String("status", logger.Status(err)),
				slog.Any("err", err),
			)
			return out, page - 1, err
		}

		cur := p.Currency
		if cur == "" {
			cur = currency
		}
		for _, t := range p.Tickets {
			f := a.fromTicket(t, q, cur)
			k := f.key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, f)
		}

		if p.Next == "" || len(p.Tickets) < a.opts.PageSize || page == a.opts.MaxPages {
			return out, page, nil
		}
		next = p.Next
	}
	return out, a.opts.MaxPages, nil
}

func (a *Aggregator) fromTicket(t travelpayouts.Ticket, q Query, currency string) Flight {
	f := Flight{
		Airline:      strings.ToUpper(strings.TrimSpace(t.Airline)),
		FlightNumber: strings.TrimSpace(string(t.FlightNumber)),
		Origin:       firstNonEmpty(t.OriginAirport, t.Origin, q.Origin),
		Destination:  firstNonEmpty(t.DestinationAirport, t.Destination, q.Destination),
		DepartureRaw: t.DepartureAt,
		ReturnRaw:    t.ReturnAt,
		Price:        t.Price,
		Currency:     strings.ToUpper(currency),
		Aircraft:     strings.TrimSpace(t.Aircraft),
		Transfers:    t.Transfers,
		Link:         t.Link,
	}
	f.Departure, f.HasDeparture = ParseTimestamp(t.DepartureAt, a.opts.Location)
	f.Return, f.HasReturn = ParseTimestamp(t.ReturnAt, a.opts.Location)
	return f
}

func (a *Aggregator) onDate(flights []Flight, day time.Time) []Flight {
	want := day.Format(time.DateOnly)
	out := flights[:0]
	for _, f := range flights {
		if f.HasDeparture && f.Departure.In(a.opts.Location).Format(time.DateOnly) == want {
			out = append(out, f)
		}
	}
	SortByDeparture(out)
	return out
}

func (a *Aggregator) nearest(flights []Flight) []Flight {
	SortByDeparture(flights)
	if len(flights) > a.opts.NearestLimit {
		flights = flights[:a.opts.NearestLimit]
	}
	return flights
}

func (a *Aggregator) enrich(ctx context.Context, flights []Flight, language string) {
	if a.names == nil {
		return
	}
	for i := range flights {
		if flights[i].Airline == "" {
			continue
		}
		flights[i].AirlineName = a.names.Name(ctx, flights[i].Airline, language)
	}
}

var maxTime = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

func sortTime(f Flight) time.Time {
	if !f.HasDeparture {
		return maxTime
	}
	return f.Departure
}

// SortByDeparture orders flights by departure instant; equal instants keep a
// deterministic order by raw departure text. Unparseable departures sort last.
func SortByDeparture(flights []Flight) {
	slices.SortStableFunc(flights, func(x, y Flight) int {
		if c := sortTime(x).Compare(sortTime(y)); c != 0 {
			return c
		}
		return cmp.Compare(x.DepartureRaw, y.DepartureRaw)
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
			return v
		}
	}
	return ""
}
