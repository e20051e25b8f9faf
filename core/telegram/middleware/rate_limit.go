package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/aviabot/core/logger"
	tghelpers "github.com/m3rciful/aviabot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	Stats     *Stats
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between updates from the same user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	var (
		lastSeen   = make(map[int64]time.Time)
		lastSeenMu sync.Mutex
	)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[updateKind(c.Update())]; skip {
				return next(c)
			}

			now := time.Now()
			lastSeenMu.Lock()
			last, seen := lastSeen[user.ID]
			limited := seen && now.Sub(last) < opts.Interval
			if !limited {
				lastSeen[user.ID] = now
				// drop stale entries so the map tracks only active users
				if len(lastSeen) > 1024 {
					for id, ts := range lastSeen {
						if now.Sub(ts) > opts.Interval {
							delete(lastSeen, id)
						}
					}
				}
			}
			lastSeenMu.Unlock()

			if !limited {
				return next(c)
			}
			opts.Stats.incRateLimited()
			logger.Warn(tghelpers.BuildContext(c), logger.CompTG, "rate_limit",
				slog.Bool("rate_limited", true),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	}
	return "other"
}
