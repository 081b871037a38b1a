// Package schedule decides whether a media item is inside its display window.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekdays lists the accepted day keys, Sunday first to match time.Weekday.
var Weekdays = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

const (
	DefaultStart = "00:00"
	DefaultEnd   = "23:59"
)

// Schedule is an eligibility window. End before Start wraps midnight.
//
// TZ is stored and returned to the admin surface but not applied: windows
// are evaluated in the location of the timestamp passed in.
type Schedule struct {
	Days  []string `json:"days,omitempty"`
	Start string   `json:"start,omitempty"`
	End   string   `json:"end,omitempty"`
	TZ    string   `json:"tz,omitempty"`
}

// Always returns the every-day, all-day window.
func Always() *Schedule {
	days := make([]string, 0, 7)
	days = append(days, Weekdays[1:]...)
	days = append(days, Weekdays[0])
	return &Schedule{Days: days, Start: DefaultStart, End: DefaultEnd}
}

var errClock = errors.New("schedule: clock must be HH:mm")

// ParseClock converts "HH:mm" into minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, errClock
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, errClock
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, errClock
	}
	return h*60 + m, nil
}

// IsEligible reports whether now falls inside s. A nil schedule is always
// eligible, and so is one whose clock values cannot be parsed.
func IsEligible(s *Schedule, now time.Time) bool {
	if s == nil {
		return true
	}

	days := s.Days
	if days == nil {
		days = Weekdays
	}
	start := s.Start
	if start == "" {
		start = DefaultStart
	}
	end := s.End
	if end == "" {
		end = DefaultEnd
	}

	today := Weekdays[now.Weekday()]
	if !containsDay(days, today) {
		return false
	}

	startMin, err := ParseClock(start)
	if err != nil {
		return true
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return true
	}

	nowMin := now.Hour()*60 + now.Minute()
	if endMin >= startMin {
		return nowMin >= startMin && nowMin <= endMin
	}
	// overnight
	return nowMin >= startMin || nowMin <= endMin
}

// Validate rejects malformed windows. Stored data is never validated at
// evaluation time; this is for admin input.
func (s *Schedule) Validate() error {
	if s == nil {
		return nil
	}
	if s.Days != nil && len(s.Days) == 0 {
		return errors.New("schedule: days must not be empty")
	}
	for _, d := range s.Days {
		if dayKey(d) == "" {
			return fmt.Errorf("schedule: unknown day %q", d)
		}
	}
	if s.Start != "" {
		if _, err := ParseClock(s.Start); err != nil {
			return fmt.Errorf("schedule: start: %w", err)
		}
	}
	if s.End != "" {
		if _, err := ParseClock(s.End); err != nil {
			return fmt.Errorf("schedule: end: %w", err)
		}
	}
	if s.TZ != "" {
		if _, err := time.LoadLocation(s.TZ); err != nil {
			return fmt.Errorf("schedule: tz: %w", err)
		}
	}
	return nil
}

func containsDay(days []string, today string) bool {
	for _, d := range days {
		if dayKey(d) == today {
			return true
		}
	}
	return false
}

// dayKey accepts "mon", "Mon" and "monday".
func dayKey(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if len(d) < 3 {
		return ""
	}
	for _, w := range Weekdays {
		if strings.HasPrefix(d, w) {
			return w
		}
	}
	return ""
}
