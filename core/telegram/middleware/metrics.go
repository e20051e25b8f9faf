package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

// Stats counts inbound traffic for the admin /stats command and the status endpoint.
type Stats struct {
	messages    atomic.Uint64
	callbacks   atomic.Uint64
	rateLimited atomic.Uint64
	panics      atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Messages    uint64 `json:"messages"`
	Callbacks   uint64 `json:"callbacks"`
	RateLimited uint64 `json:"rate_limited"`
	Panics      uint64 `json:"panics"`
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		Messages:    s.messages.Load(),
		Callbacks:   s.callbacks.Load(),
		RateLimited: s.rateLimited.Load(),
		Panics:      s.panics.Load(),
	}
}

func (s *Stats) incRateLimited() {
	if s != nil {
		s.rateLimited.Add(1)
	}
}

func (s *Stats) incPanics() {
	if s != nil {
		s.panics.Add(1)
	}
}

// UpdateMetricsMiddleware counts inbound messages and callback presses.
func UpdateMetricsMiddleware(stats *Stats) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if stats != nil {
				upd := c.Update()
				switch {
				case upd.Callback != nil:
					stats.callbacks.Add(1)
				case upd.Message != nil:
					stats.messages.Add(1)
				}
			}
			return next(c)
		}
	}
}
