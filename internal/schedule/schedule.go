// Package schedule models an organization's weekly business hours and the
// pure time math the booking flows are built on: resolving open/close
// windows for a calendar date, generating candidate slots, and validating a
// requested start time against the window.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrOutsideBusinessHours is returned when a requested appointment does not
// fit inside the day's open/close window.
var ErrOutsideBusinessHours = errors.New("schedule: outside business hours")

// Window is one day's open/close pair as "HH:MM" local wall-clock strings.
type Window struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// OrgSchedule is an organization's scheduling configuration. BusinessHours
// maps lowercase weekday names ("monday") to a Window; a missing or nil
// entry means closed that day.
type OrgSchedule struct {
	OrgID           string
	Timezone        string
	BusinessHours   map[string]*Window
	DurationMinutes int

	// NotifyEmail receives owner notifications for bookings and
	// cancellations; empty disables them.
	NotifyEmail string

	// Cal.com integration. Empty APIKey means internal booking only.
	CalcomAPIKey      string
	CalcomEventTypeID string
}

// ProviderConfigured reports whether this org books through Cal.com.
func (s *OrgSchedule) ProviderConfigured() bool {
	return s != nil && strings.TrimSpace(s.CalcomAPIKey) != "" && strings.TrimSpace(s.CalcomEventTypeID) != ""
}

// Location resolves the org's IANA timezone, falling back to UTC when the
// zone is missing or unknown.
func (s *OrgSchedule) Location() *time.Location {
	if s == nil || s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayHours is an open/close interval in minutes since local midnight.
type DayHours struct {
	Open  int
	Close int
}

// ResolveDayHours returns the open/close window for the calendar day that
// `at` falls on in the organization's timezone, or nil when the org has no
// schedule or is closed that weekday.
//
// The weekday is derived in the org's zone, never the server's: an instant
// that is still Sunday in UTC can already be Monday in Sydney. The lookup
// is anchored at local noon so a DST transition at midnight cannot shift
// the weekday.
func ResolveDayHours(s *OrgSchedule, at time.Time) *DayHours {
	if s == nil || len(s.BusinessHours) == 0 {
		return nil
	}
	loc := s.Location()
	local := at.In(loc)
	noon := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, loc)
	weekday := strings.ToLower(noon.Weekday().String())

	window, ok := s.BusinessHours[weekday]
	if !ok || window == nil {
		return nil
	}
	open, err := parseClock(window.Open)
	if err != nil {
		return nil
	}
	closeAt, err := parseClock(window.Close)
	if err != nil {
		return nil
	}
	return &DayHours{Open: open, Close: closeAt}
}

// GenerateSlots produces the ordered candidate start times for a calendar
// date ("YYYY-MM-DD") given an open/close window and a slot duration, all in
// minutes. A slot is emitted only when it ends at or before close; the last
// slot may leave a sub-duration gap before closing. The result is a sequence
// of local wall-clock strings "YYYY-MM-DDTHH:MM:00" with no zone marker;
// callers know which zone they asked about.
func GenerateSlots(date string, openMinutes, closeMinutes, durationMinutes int) []string {
	if durationMinutes <= 0 {
		return nil
	}
	var slots []string
	for start := openMinutes; start+durationMinutes <= closeMinutes; start += durationMinutes {
		slots = append(slots, fmt.Sprintf("%sT%02d:%02d:00", date, start/60, start%60))
	}
	return slots
}

// ValidateBookingTime checks a requested start (minutes since local
// midnight) and duration against an open/close window. Valid iff the
// appointment starts at or after open and ends at or before close; both
// boundary-exact cases pass. Returns ErrOutsideBusinessHours otherwise.
func ValidateBookingTime(startMinutes, durationMinutes, openMinutes, closeMinutes int) error {
	if startMinutes >= openMinutes && startMinutes+durationMinutes <= closeMinutes {
		return nil
	}
	return ErrOutsideBusinessHours
}

// MinutesOfDay returns t's wall-clock position as minutes since midnight in
// t's own location.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// FormatClock renders minutes-since-midnight as a spoken time ("9:00 AM").
func FormatClock(minutes int) string {
	t := time.Date(2000, 1, 1, minutes/60, minutes%60, 0, 0, time.UTC)
	return t.Format("3:04 PM")
}

func parseClock(hhmm string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return 0, fmt.Errorf("schedule: parse clock %q: %w", hhmm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
