package travelpayouts

import (
	"context"
	"net/url"
)

// Place is one autocomplete hit.
type Place struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	CountryName string `json:"country_name"`
	CityCode    string `json:"city_code"`
	CityName    string `json:"city_name"`
}

// Places queries the autocomplete service for cities and airports matching term.
func (c *Client) Places(ctx context.Context, term, locale string) ([]Place, error) {
	v := url.Values{}
	v.Set("term", term)
	if locale != "" {
		v.Set("locale", locale)
	}
	v.Add("types[]", "city")
	v.Add("types[]", "airport")

	var places []Place
	if err := c.getJSON(ctx, "places2", c.cfg.AutocompleteBase+"/places2?"+v.Encode(), &places); err != nil {
		return nil, err
	}
	return places, nil
}
