// Package travelpayouts is a thin client for the Aviasales data APIs:
// prices_for_dates, places autocomplete and the airline directory.
package travelpayouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m3rciful/aviabot/core/httpclient"
)

const (
	DefaultAPIBase          = "https://api.travelpayouts.com"
	DefaultAutocompleteBase = "https://autocomplete.travelpayouts.com"
	DefaultDataBase         = "https://api.travelpayouts.com"

	maxBodyBytes = 8 << 20
)

// ErrNoData means the pricing response carried no recognizable data list.
var ErrNoData = errors.New("travelpayouts: response has no data")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("travelpayouts: %s returned HTTP %d", e.Endpoint, e.Code)
}

// Config configures the client.
type Config struct {
	Token            string        `yaml:"token" envconfig:"TRAVELPAYOUTS_TOKEN"`
	APIBase          string        `yaml:"api_base" envconfig:"TRAVELPAYOUTS_API_BASE"`
	AutocompleteBase string        `yaml:"autocomplete_base" envconfig:"TRAVELPAYOUTS_AUTOCOMPLETE_BASE"`
	DataBase         string        `yaml:"data_base" envconfig:"TRAVELPAYOUTS_DATA_BASE"`
	Timeout          time.Duration `yaml:"timeout" envconfig:"TRAVELPAYOUTS_TIMEOUT"`
}

// Normalize fills defaults and checks the token.
func (c *Config) Normalize() error {
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("travelpayouts.token is required")
	}
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	if c.AutocompleteBase == "" {
		c.AutocompleteBase = DefaultAutocompleteBase
	}
	if c.DataBase == "" {
		c.DataBase = DefaultDataBase
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	c.APIBase = strings.TrimRight(c.APIBase, "/")
	c.AutocompleteBase = strings.TrimRight(c.AutocompleteBase, "/")
	c.DataBase = strings.TrimRight(c.DataBase, "/")
	return nil
}

// Client calls the Travelpayouts APIs. It never retries; callers degrade on failure.
type Client struct {
	cfg  Config
	http *http.Client
}

// New builds a client from a normalized config.
func New(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		http: httpclient.New(httpclient.Options{
			Timeout:               cfg.Timeout,
			ResponseHeaderTimeout: cfg.Timeout,
		}),
	}
}

// NewWithHTTP is New with a caller-supplied http.Client.
func NewWithHTTP(cfg Config, hc *http.Client) *Client {
	return &Client{cfg: cfg, http: hc}
}

func (c *Client) getJSON(ctx context.Context, endpoint, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("travelpayouts: build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("X-Access-Token", c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("travelpayouts: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("travelpayouts: decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) resolve(base, ref string) (string, error) {
	b, err := url.Parse(base + "/")
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
