// Package flights collects priced flight offers for a route from the
// paginated pricing API.
package flights

import (
	"strconv"
	"strings"
	"time"
)

// Flight is one offer after normalization.
type Flight struct {
	Airline      string
	AirlineName  string
	FlightNumber string
	Origin       string
	Destination  string
	// DepartureRaw is the upstream departure text; Departure is its parsed form.
	DepartureRaw string
	Departure    time.Time
	HasDeparture bool
	ReturnRaw    string
	Return       time.Time
	HasReturn    bool
	Price        float64
	Currency     string
	Aircraft     string
	Transfers    int
	Link         string
}

// DisplayAirline returns the resolved name or the raw code.
func (f Flight) DisplayAirline() string {
	if f.AirlineName != "" {
		return f.AirlineName
	}
	return f.Airline
}

// Number joins the airline code and flight number, e.g. "HY 301".
func (f Flight) Number() string {
	num := strings.TrimSpace(f.FlightNumber)
	if num == "" {
		return f.Airline
	}
	if f.Airline == "" || strings.HasPrefix(strings.ToUpper(num), f.Airline) {
		return num
	}
	return f.Airline + " " + num
}

type dedupKey struct {
	flightNumber string
	departure    string
	airline      string
	ret          string
	price        string
}

func (f Flight) key() dedupKey {
	return dedupKey{
		flightNumber: f.FlightNumber,
		departure:    f.DepartureRaw,
		airline:      f.Airline,
		ret:          f.ReturnRaw,
		price:        strconv.FormatFloat(f.Price, 'f', -1, 64),
	}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an upstream timestamp. Values without an offset are
// read in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	for _, layout := range timeLayouts[1:] {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
