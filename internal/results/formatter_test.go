package results

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/aviabot/internal/flights"
)

type texts map[string]string

func (t texts) Text(_, key string) string {
	if v, ok := t[key]; ok {
		return v
	}
	return key
}

var labels = texts{
	"cta":         "Enter a new origin to search again.",
	"f_departure": "Departure",
	"f_return":    "Return",
	"f_price":     "Price",
	"f_aircraft":  "Aircraft",
	"f_link":      "Book",
}

func TestPackRespectsBudgetAndOrder(t *testing.T) {
	for _, budget := range []int{60, 120, 500} {
		t.Run(fmt.Sprint(budget), func(t *testing.T) {
			var records []string
			for i := 0; i < 40; i++ {
				records = append(records, fmt.Sprintf("record-%02d %s", i, strings.Repeat("ж", i%30)))
			}
			blocks := Pack("Header", records, "CTA line", budget)
			require.NotEmpty(t, blocks)

			joined := strings.Join(blocks, Separator)
			for _, b := range blocks {
				assert.LessOrEqual(t, utf8.RuneCountInString(b), budget)
			}
			pos := 0
			for _, r := range records {
				idx := strings.Index(joined[pos:], r)
				require.GreaterOrEqual(t, idx, 0, "record %q missing or out of order", r)
				pos += idx + len(r)
				assert.Equal(t, 1, strings.Count(joined, r))
			}
			assert.True(t, strings.HasPrefix(blocks[0], "Header"))
			assert.True(t, strings.HasSuffix(blocks[len(blocks)-1], "CTA line"))
		})
	}
}

func TestPackNeverSplitsRecord(t *testing.T) {
	records := []string{strings.Repeat("a", 40), strings.Repeat("b", 40), strings.Repeat("c", 40)}
	blocks := Pack("H", records, "", 50)
	require.Equal(t, []string{"H" + Separator + records[0], records[1], records[2]}, blocks)
}

func TestPackCTAPlacement(t *testing.T) {
	fits := Pack("H", []string{"r1"}, "cta", 100)
	assert.Equal(t, []string{"H\n\nr1\n\ncta"}, fits)

	own := Pack("H", []string{strings.Repeat("x", 90)}, "call to action", 100)
	require.Len(t, own, 2)
	assert.Equal(t, "call to action", own[1])
}

func TestPackClipsOversizeItem(t *testing.T) {
	blocks := Pack("", []string{strings.Repeat("я", 30)}, "", 10)
	require.Len(t, blocks, 1)
	assert.Equal(t, 10, utf8.RuneCountInString(blocks[0]))
}

func TestFormatRendersRecords(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	dep := time.Date(2026, 11, 2, 8, 15, 0, 0, loc)
	list := []flights.Flight{{
		Airline: "HY", AirlineName: "Uzbekistan Airways", FlightNumber: "301",
		Origin: "TAS", Destination: "DXB",
		DepartureRaw: dep.Format(time.RFC3339), Departure: dep, HasDeparture: true,
		Price: 210, Currency: "USD", Aircraft: "A320", Link: "/search/TAS0211DXB1",
	}, {
		Airline: "ZZ", FlightNumber: "9", DepartureRaw: "soon", Price: 99.5, Currency: "USD",
	}}

	f := NewFormatter(labels, 0)
	assert.Equal(t, DefaultBudget, f.Budget())
	blocks := f.Format("en", "Flights TAS → DXB:", list)
	require.Len(t, blocks, 1)
	out := blocks[0]
	assert.True(t, strings.HasPrefix(out, "Flights TAS → DXB:"))
	assert.Contains(t, out, "✈️ HY 301 · Uzbekistan Airways")
	assert.Contains(t, out, "Departure: 02.11.2026 08:15")
	assert.Contains(t, out, "Price: 210 USD")
	assert.Contains(t, out, "Aircraft: A320")
	assert.Contains(t, out, "Book: https://www.aviasales.com/search/TAS0211DXB1")
	assert.Contains(t, out, "✈️ ZZ 9\n")
	assert.Contains(t, out, "Departure: soon")
	assert.Contains(t, out, "Price: 99.5 USD")
	assert.NotContains(t, out, "Return:")
	assert.True(t, strings.HasSuffix(out, labels["cta"]))
}

func TestFormatShowsReturn(t *testing.T) {
	ret := time.Date(2026, 11, 9, 10, 0, 0, 0, time.UTC)
	rec := NewFormatter(labels, 0).Record("en", flights.Flight{
		Airline: "FZ", FlightNumber: "1872", Return: ret, HasReturn: true, ReturnRaw: "x",
	})
	assert.Contains(t, rec, "Return: 09.11.2026 10:00")
}
