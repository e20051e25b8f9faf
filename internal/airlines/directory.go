// Package airlines caches the airline directory for the process lifetime.
//
// The directory is fetched lazily on first lookup, at most once. A failed
// fetch leaves an empty directory and every later lookup returns the raw code.
package airlines

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/aviabot/core/logger"
	"github.com/m3rciful/aviabot/internal/travelpayouts"
)

// FallbackLanguage is consulted when the requested language has no translation.
const FallbackLanguage = "en"

// Entry is one airline.
type Entry struct {
	Code         string
	Name         string
	Translations map[string]string
}

// Source fetches the full directory.
type Source interface {
	Airlines(ctx context.Context) ([]travelpayouts.Airline, error)
}

// State describes the load lifecycle for status reporting.
type State string

const (
	StatePending State = "pending"
	StateLoaded  State = "loaded"
	StateFailed  State = "failed"
)

// Directory is the shared airline-name cache.
type Directory struct {
	source  Source
	timeout time.Duration

	// mu is held for the whole fetch; readers of state must not take it.
	mu      sync.Mutex
	loaded  atomic.Bool
	entries map[string]Entry
	state   atomic.Value
}

// NewDirectory builds an unloaded directory. timeout bounds the single fetch; 0 keeps the caller's deadline.
func NewDirectory(source Source, timeout time.Duration) *Directory {
	d := &Directory{source: source, timeout: timeout}
	d.state.Store(StatePending)
	return d
}

func (d *Directory) ensure(ctx context.Context) {
	if d.loaded.Load() {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded.Load() {
		return
	}

	fetchCtx := context.WithoutCancel(ctx)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(fetchCtx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	list, err := d.source.Airlines(fetchCtx)
	entries := make(map[string]Entry, len(list))
	if err != nil {
		d.state.Store(StateFailed)
		logger.Warn(ctx, logger.CompAirlines, "airlines.load",
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.Took(start)),
			slog.Any("err", err),
		)
	} else {
		for _, a := range list {
			code := strings.ToUpper(strings.TrimSpace(a.Code))
			if code == "" {
				continue
			}
			entries[code] = Entry{Code: code, Name: strings.TrimSpace(a.Name), Translations: a.NameTranslations}
		}
		d.state.Store(StateLoaded)
		logger.Info(ctx, logger.CompAirlines, "airlines.load",
			slog.String("status", "ok"),
			slog.Int("count", len(entries)),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	d.entries = entries
	d.loaded.Store(true)
}

// Name returns the display name for code in language: the translation for
// language, then the FallbackLanguage translation, then the canonical name,
// and finally the code itself.
func (d *Directory) Name(ctx context.Context, code, language string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	d.ensure(ctx)

	e, ok := d.entries[code]
	if !ok {
		return code
	}
	for _, lang := range []string{language, FallbackLanguage} {
		if name := strings.TrimSpace(e.Translations[lang]); name != "" {
			return name
		}
	}
	if e.Name != "" {
		return e.Name
	}
	return code
}

// Size is the number of loaded entries; 0 before the first lookup.
func (d *Directory) Size() int {
	if !d.loaded.Load() {
		return 0
	}
	return len(d.entries)
}

// State reports the load lifecycle.
func (d *Directory) State() State {
	return d.state.Load().(State)
}
