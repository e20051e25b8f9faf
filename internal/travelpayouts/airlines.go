package travelpayouts

import "context"

// Airline is one directory entry.
type Airline struct {
	Code             string            `json:"code"`
	Name             string            `json:"name"`
	NameTranslations map[string]string `json:"name_translations"`
}

// Airlines downloads the full airline directory.
func (c *Client) Airlines(ctx context.Context) ([]Airline, error) {
	var list []Airline
	if err := c.getJSON(ctx, "airlines", c.cfg.DataBase+"/data/en/airlines.json", &list); err != nil {
		return nil, err
	}
	return list, nil
}
