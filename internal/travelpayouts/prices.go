package travelpayouts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const pricesPath = "/aviasales/v3/prices_for_dates"

// PricesQuery is the first-page request for prices_for_dates.
type PricesQuery struct {
	Origin      string
	Destination string
	// DepartureAt is YYYY-MM-DD; empty searches any date.
	DepartureAt string
	Currency    string
	Locale      string
	OneWay      bool
	Limit       int
	Page        int
}

// Ticket is one offer as returned by the API.
type Ticket struct {
	Origin             string     `json:"origin"`
	Destination        string     `json:"destination"`
	OriginAirport      string     `json:"origin_airport"`
	DestinationAirport string     `json:"destination_airport"`
	Price              float64    `json:"price"`
	Airline            string     `json:"airline"`
	FlightNumber       FlexString `json:"flight_number"`
	DepartureAt        string     `json:"departure_at"`
	ReturnAt           string     `json:"return_at"`
	Transfers          int        `json:"transfers"`
	ReturnTransfers    int        `json:"return_transfers"`
	Duration           int        `json:"duration"`
	Link               string     `json:"link"`
	Aircraft           string     `json:"aircraft,omitempty"`
}

// PricesPage is one decoded response page.
type PricesPage struct {
	Tickets  []Ticket
	Currency string
	// Next is the absolute URL of the following page, empty on the last page.
	Next string
}

type pricesResponse struct {
	Success  *bool            `json:"success"`
	Data     *[]Ticket        `json:"data"`
	Currency string           `json:"currency"`
	Error    string           `json:"error"`
	Links    *json.RawMessage `json:"links"`
}

type pricesLinks struct {
	Next string `json:"next"`
}

// PricesURL builds the first-page URL for q.
func (c *Client) PricesURL(q PricesQuery) string {
	v := url.Values{}
	v.Set("origin", strings.ToUpper(q.Origin))
	v.Set("destination", strings.ToUpper(q.Destination))
	if q.DepartureAt != "" {
		v.Set("departure_at", q.DepartureAt)
	}
	if q.Currency != "" {
		v.Set("currency", q.Currency)
	}
	if q.Locale != "" {
		v.Set("locale", q.Locale)
	}
	v.Set("sorting", "price")
	v.Set("one_way", strconv.FormatBool(q.OneWay))
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	return c.cfg.APIBase + pricesPath + "?" + v.Encode()
}

// PricesForDates fetches the first page for q.
func (c *Client) PricesForDates(ctx context.Context, q PricesQuery) (PricesPage, error) {
	return c.PricesPage(ctx, c.PricesURL(q))
}

// PricesPage fetches a page by URL, as produced by PricesURL or a previous page's Next.
func (c *Client) PricesPage(ctx context.Context, pageURL string) (PricesPage, error) {
	var resp pricesResponse
	if err := c.getJSON(ctx, "prices_for_dates", pageURL, &resp); err != nil {
		return PricesPage{}, err
	}
	if resp.Data == nil || (resp.Success != nil && !*resp.Success) {
		if resp.Error != "" {
			return PricesPage{}, fmt.Errorf("%w: %s", ErrNoData, resp.Error)
		}
		return PricesPage{}, ErrNoData
	}

	page := PricesPage{Tickets: *resp.Data, Currency: resp.Currency}
	if resp.Links != nil {
		var links pricesLinks
		// links is sometimes an empty array instead of an object
		if err := json.Unmarshal(*resp.Links, &links); err == nil && links.Next != "" {
			next, err := c.resolve(c.cfg.APIBase, links.Next)
			if err != nil {
				return PricesPage{}, fmt.Errorf("travelpayouts: bad next link %q: %w", links.Next, err)
			}
			page.Next = next
		}
	}
	return page, nil
}

// FlexString accepts JSON strings and numbers.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}
