// Package results renders flight lists into Telegram-sized text blocks.
package results

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m3rciful/aviabot/internal/flights"
)

const (
	// DefaultBudget stays under Telegram's 4096-character message limit.
	DefaultBudget = 4000
	// Separator joins the header, records and the call to action inside a block.
	Separator = "\n\n"

	displayLayout = "02.01.2006 15:04"
	linkBase      = "https://www.aviasales.com"
)

// Texts supplies localized labels.
type Texts interface {
	Text(lang, key string) string
}

// Formatter renders search results.
type Formatter struct {
	texts  Texts
	budget int
}

// NewFormatter returns a Formatter; budget <= 0 selects DefaultBudget.
func NewFormatter(texts Texts, budget int) *Formatter {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Formatter{texts: texts, budget: budget}
}

// Budget is the maximum block length in runes.
func (f *Formatter) Budget() int { return f.budget }

// Format returns the header, one rendered record per flight and the call to
// action, packed in order into blocks no longer than the budget. A record is
// never split; the call to action joins the last block when it fits.
func (f *Formatter) Format(language, header string, list []flights.Flight) []string {
	records := make([]string, 0, len(list))
	for _, fl := range list {
		records = append(records, f.Record(language, fl))
	}
	return Pack(header, records, f.texts.Text(language, "cta"), f.budget)
}

// Record renders a single flight.
func (f *Formatter) Record(language string, fl flights.Flight) string {
	var b strings.Builder
	b.WriteString("✈️ ")
	b.WriteString(fl.Number())
	if name := fl.DisplayAirline(); name != "" && name != fl.Airline {
		b.WriteString(" · ")
		b.WriteString(name)
	}
	if fl.Origin != "" || fl.Destination != "" {
		b.WriteString("\n")
		b.WriteString(fl.Origin + " → " + fl.Destination)
	}
	line := func(key, value string) {
		if value == "" {
			return
		}
		b.WriteString("\n")
		b.WriteString(f.texts.Text(language, key))
		b.WriteString(": ")
		b.WriteString(value)
	}
	line("f_departure", stamp(fl.Departure, fl.HasDeparture, fl.DepartureRaw))
	line("f_return", stamp(fl.Return, fl.HasReturn, fl.ReturnRaw))
	line("f_price", price(fl.Price, fl.Currency))
	line("f_aircraft", fl.Aircraft)
	if fl.Link != "" {
		link := fl.Link
		if strings.HasPrefix(link, "/") {
			link = linkBase + link
		}
		line("f_link", link)
	}
	return b.String()
}

func stamp(t time.Time, ok bool, raw string) string {
	if ok {
		return t.Format(displayLayout)
	}
	return strings.TrimSpace(raw)
}

func price(p float64, currency string) string {
	if p <= 0 {
		return ""
	}
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// Pack groups header, records and cta into blocks of at most budget runes.
// Items longer than the budget are truncated.
func Pack(header string, records []string, cta string, budget int) []string {
	var (
		blocks []string
		cur    string
	)
	add := func(item string) {
		item = clip(item, budget)
		switch {
		case item == "":
		case cur == "":
			cur = item
		case runes(cur)+runes(Separator)+runes(item) > budget:
			blocks = append(blocks, cur)
			cur = item
		default:
			cur += Separator + item
		}
	}
	add(header)
	for _, r := range records {
		add(r)
	}
	add(cta)
	if cur != "" {
		blocks = append(blocks, cur)
	}
	return blocks
}

func runes(s string) int { return utf8.RuneCountInString(s) }

func clip(s string, budget int) string {
	if runes(s) <= budget {
		return s
	}
	r := []rune(s)
	return string(r[:budget-1]) + "…"
}
