package conversation

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrDateFormat means the text matched no accepted layout.
	ErrDateFormat = errors.New("unrecognized date")
	// ErrPastDate means the date is before today in the reference zone.
	ErrPastDate = errors.New("date is in the past")
)

var dateLayouts = []string{"02.01.2006", "2.1.2006", time.DateOnly}

// ParseDate reads DD.MM.YYYY, D.M.YYYY or YYYY-MM-DD as a day in loc and
// rejects days before now's day in loc.
func ParseDate(text string, loc *time.Location, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	var (
		day time.Time
		ok  bool
	)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			day, ok = t, true
			break
		}
	}
	if !ok {
		return time.Time{}, ErrDateFormat
	}
	y, m, d := now.In(loc).Date()
	if day.Before(time.Date(y, m, d, 0, 0, 0, 0, loc)) {
		return time.Time{}, ErrPastDate
	}
	return day, nil
}
