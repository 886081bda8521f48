package booking

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// BookRequest carries the caller-supplied booking fields, already extracted
// from the loosely-typed tool arguments but not yet trusted.
type BookRequest struct {
	Datetime string
	Name     string
	Phone    string
	Email    string
	Notes    string
}

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Re-ask prompts for caller-input problems. Each field failure gets its own
// prompt so the voice agent can ask for exactly the missing piece.
const (
	promptMissingName     = "Of course. Could I get your name for the appointment?"
	promptMissingPhone    = "Could you give me the best phone number to reach you at?"
	promptBadPhone        = "I didn't quite catch that phone number. Could you say it again, digit by digit?"
	promptBadEmail        = "That email address doesn't look quite right. Could you spell it out for me?"
	promptMissingDatetime = "What day and time would you like to come in?"
	promptBadDatetime     = "I'm sorry, I didn't catch the day and time. Could you say them again?"
)

// validate checks required fields and formats, returning a re-ask prompt on
// the first problem found, or "" when the request is well-formed. Runs
// before any schedule or database access.
func (r *BookRequest) validate() string {
	if strings.TrimSpace(r.Name) == "" {
		return promptMissingName
	}
	if strings.TrimSpace(r.Phone) == "" {
		return promptMissingPhone
	}
	if normalizePhone(r.Phone) == "" {
		return promptBadPhone
	}
	if email := strings.TrimSpace(r.Email); email != "" && !emailPattern.MatchString(email) {
		return promptBadEmail
	}
	if strings.TrimSpace(r.Datetime) == "" {
		return promptMissingDatetime
	}
	if _, err := parseWallClock(r.Datetime); err != nil {
		return promptBadDatetime
	}
	return ""
}

// normalizePhone strips separators and validates the digit string, returning
// "" when the number can't be a dialable phone.
func normalizePhone(raw string) string {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(strings.TrimSpace(raw))
	if !phonePattern.MatchString(cleaned) {
		return ""
	}
	return cleaned
}

// placeholderEmail synthesizes an attendee email for callers who didn't
// supply one; providers require an address on every booking.
func placeholderEmail(phone string) string {
	digits := strings.TrimPrefix(normalizePhone(phone), "+")
	return fmt.Sprintf("caller-%s@placeholder.voxdesk.ai", digits)
}

// wallClockLayouts are the datetime shapes the voice platform sends. All
// are zone-less local wall-clock except RFC3339, which carries its own
// offset.
var wallClockLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.RFC3339,
}

// parseWallClock validates the datetime's shape without committing to a
// timezone yet; the layout index is reused by localTime once the org's
// zone is known.
func parseWallClock(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range wallClockLayouts {
		if _, err := time.Parse(layout, raw); err == nil {
			return layout, nil
		}
	}
	return "", fmt.Errorf("booking: unparseable datetime %q", raw)
}

// localTime interprets the datetime in the organization's timezone.
// RFC3339 inputs keep their own offset and are converted.
func localTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	layout, err := parseWallClock(raw)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(layout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("booking: parse datetime %q: %w", raw, err)
	}
	return t.In(loc), nil
}
