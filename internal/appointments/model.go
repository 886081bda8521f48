// Package appointments persists booked appointments. Conflict prevention is
// owned by the database: a per-org exclusion constraint over the
// [start_time, end_time) range rejects overlapping non-cancelled rows, so
// callers insert directly instead of checking availability first.
package appointments

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusConfirmed   Status = "confirmed"
	StatusPending     Status = "pending"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
	StatusCompleted   Status = "completed"
	StatusNoShow      Status = "no_show"
)

// Booking provider tags.
const (
	ProviderInternal = "internal"
	ProviderCalcom   = "cal_com"
)

var (
	// ErrSlotTaken is returned when the database exclusion constraint
	// rejects an insert because the time range overlaps an existing
	// non-cancelled appointment.
	ErrSlotTaken = errors.New("appointments: slot already taken")

	// ErrNotFound is returned when no matching appointment exists.
	ErrNotFound = errors.New("appointments: not found")
)

// Appointment is a booked (or formerly booked) appointment row. Times are
// stored UTC-normalized; cancelled rows are retained for history, never
// deleted.
type Appointment struct {
	ID              uuid.UUID         `json:"id"`
	OrgID           string            `json:"org_id"`
	Provider        string            `json:"provider"`
	ExternalID      string            `json:"external_id,omitempty"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	DurationMinutes int               `json:"duration_minutes"`
	AttendeeName    string            `json:"attendee_name"`
	AttendeePhone   string            `json:"attendee_phone"`
	AttendeeEmail   string            `json:"attendee_email"`
	Status          Status            `json:"status"`
	Notes           string            `json:"notes,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// EffectiveEnd returns the appointment's end, deriving it from the duration
// (or fallbackMinutes when the duration is unset) for rows persisted without
// an explicit end_time.
func (a *Appointment) EffectiveEnd(fallbackMinutes int) time.Time {
	if !a.EndTime.IsZero() {
		return a.EndTime
	}
	minutes := a.DurationMinutes
	if minutes <= 0 {
		minutes = fallbackMinutes
	}
	return a.StartTime.Add(time.Duration(minutes) * time.Minute)
}

// Overlaps reports whether the appointment's [start, end) interval
// intersects the given half-open interval.
func (a *Appointment) Overlaps(start, end time.Time, fallbackMinutes int) bool {
	apptEnd := a.EffectiveEnd(fallbackMinutes)
	return start.Before(apptEnd) && end.After(a.StartTime)
}
