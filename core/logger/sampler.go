package logger

import (
	"strconv"
	"strings"
	"sync"
)

// eventSampler lets through num out of every den events, counted per event
// name so one chatty event cannot starve the others.
type eventSampler struct {
	mu       sync.Mutex
	num, den int
	seen     map[string]int
}

func newEventSampler(num, den int) *eventSampler {
	s := &eventSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio and resets all counters. A non-positive ratio disables sampling.
func (s *eventSampler) Set(num, den int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	s.num, s.den = min(num, den), den
	s.seen = make(map[string]int)
}

// Allow reports whether the next occurrence of event passes.
func (s *eventSampler) Allow(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.den == 0 {
		return true
	}
	n := s.seen[event]%s.den + 1
	s.seen[event] = n
	return n <= s.num
}

// parseRatioSpec reads "n/d" or "d" (meaning 1/d). Anything else disables sampling.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if a, b, ok := strings.Cut(spec, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(a))
		den, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return num, den
	}
	if v, err := strconv.Atoi(spec); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
