package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/aviabot/core/config"
	"github.com/m3rciful/aviabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the shared middleware chain for bots.
// stats may be nil when counters are not needed.
func DefaultMiddlewares(cfg *coreconfig.Config, stats *middleware.Stats, onLimited func(tele.Context) error) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.Recover(stats)},
		{Name: "metrics", Use: middleware.UpdateMetricsMiddleware(stats)},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: onLimited,
					Stats:     stats,
				}),
			})
		}
	}

	return append(mws, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
}
