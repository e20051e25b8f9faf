// Package location turns free-text city or airport input into IATA codes.
package location

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/aviabot/core/logger"
	"github.com/m3rciful/aviabot/internal/travelpayouts"
)

// DefaultMaxCandidates bounds the disambiguation list.
const DefaultMaxCandidates = 5

// Kind classifies a resolution.
type Kind int

const (
	// NotFound covers unknown input and any autocomplete failure.
	NotFound Kind = iota
	// Code means the input resolved to exactly one IATA code.
	Code
	// Candidates means several places matched and the user must choose.
	Candidates
)

func (k Kind) String() string {
	switch k {
	case Code:
		return "code"
	case Candidates:
		return "candidates"
	default:
		return "not_found"
	}
}

// Candidate is one place offered for disambiguation.
type Candidate struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Kind       Kind
	Code       string
	Candidates []Candidate
}

// PlaceSource is the autocomplete backend.
type PlaceSource interface {
	Places(ctx context.Context, term, locale string) ([]travelpayouts.Place, error)
}

// LocaleFunc maps a conversation language to the autocomplete locale.
type LocaleFunc func(language string) string

// Resolver resolves locations; it never returns transport errors to callers.
type Resolver struct {
	source        PlaceSource
	locale        LocaleFunc
	maxCandidates int
}

// NewResolver builds a Resolver. A nil locale func passes the language through.
func NewResolver(source PlaceSource, locale LocaleFunc, maxCandidates int) *Resolver {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	if locale == nil {
		locale = func(lang string) string { return lang }
	}
	return &Resolver{source: source, locale: locale, maxCandidates: maxCandidates}
}

// Resolve maps text to a code, a candidate list or NotFound.
func (r *Resolver) Resolve(ctx context.Context, text, language string) Resolution {
	term := strings.TrimSpace(text)
	if term == "" {
		return Resolution{Kind: NotFound}
	}
	if IsCode(term) {
		return Resolution{Kind: Code, Code: strings.ToUpper(term)}
	}

	start := time.Now()
	places, err := r.source.Places(ctx, term, r.locale(language))
	if err != nil {
		logger.Warn(ctx, logger.CompLocation, "location.lookup_failed",
			slog.String("payload", logger.SanitizeLimit(term, 64)),
			slog.String("lang", language),
			slog.Duration("duration", logger.Took(start)),
			slog.String("status", logger.Status(err)),
			slog.Any("err", err),
		)
		return Resolution{Kind: NotFound}
	}

	cands := r.candidates(places)
	res := Resolution{Kind: NotFound}
	switch len(cands) {
	case 0:
	case 1:
		res = Resolution{Kind: Code, Code: cands[0].Code}
	default:
		res = Resolution{Kind: Candidates, Candidates: cands}
	}
	logger.Debug(ctx, logger.CompLocation, "location.resolved",
		slog.String("payload", logger.SanitizeLimit(term, 64)),
		slog.String("lang", language),
		slog.String("outcome", res.Kind.String()),
		slog.Int("count", len(cands)),
		slog.Duration("duration", logger.Took(start)),
	)
	return res
}

// candidates keeps city and airport hits with a code-shaped code, falling back
// to city_code when none qualify. Codes are unique and order follows the API.
func (r *Resolver) candidates(places []travelpayouts.Place) []Candidate {
	out := make([]Candidate, 0, r.maxCandidates)
	seen := make(map[string]struct{})
	add := func(code, name, country string) {
		code = strings.ToUpper(strings.TrimSpace(code))
		if !IsCode(code) || len(out) >= r.maxCandidates {
			return
		}
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		if name == "" {
			name = code
		}
		out = append(out, Candidate{Code: code, Name: name, Country: country})
	}

	for _, p := range places {
		switch strings.ToLower(p.Type) {
		case "city", "airport":
			add(p.Code, p.Name, p.CountryName)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, p := range places {
		if p.CityCode == "" {
			continue
		}
		name := p.CityName
		if name == "" {
			name = p.Name
		}
		add(p.CityCode, name, p.CountryName)
	}
	return out
}

// IsCode reports whether s is exactly three ASCII letters.
func IsCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i] | 0x20
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}
