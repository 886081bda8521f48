// Package booking implements the booking and cancellation flows behind the
// voice assistant's scheduling tools: field validation, business-hours
// checks, the internal database commit, the provider-backed two-phase
// commit with rollback, and cancellation by phone number.
package booking

import (
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of a book or cancel operation. Message is always a
// complete sentence the voice agent can speak verbatim, on success and on
// every failure path.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	// Set on successful bookings.
	AppointmentID     uuid.UUID `json:"appointment_id,omitempty"`
	ProviderBookingID string    `json:"provider_booking_id,omitempty"`
	StartTime         time.Time `json:"start_time,omitzero"`
	EndTime           time.Time `json:"end_time,omitzero"`
}

func failure(message string) *Result {
	return &Result{Success: false, Message: message}
}
