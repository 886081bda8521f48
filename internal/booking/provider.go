package booking

import (
	"context"
	"errors"
	"time"

	"github.com/voxdesk/scheduling/internal/schedule"
)

// ErrProviderSlotUnavailable is returned by provider clients when the
// requested slot was booked through another channel.
var ErrProviderSlotUnavailable = errors.New("booking: provider slot unavailable")

// ProviderBookingRequest describes a booking to create on an external
// calendar provider.
type ProviderBookingRequest struct {
	EventTypeID     string
	Start           time.Time
	DurationMinutes int
	AttendeeName    string
	AttendeeEmail   string
	AttendeePhone   string
	Timezone        string
	Notes           string
}

// ProviderBooking is the provider's record of a created booking.
type ProviderBooking struct {
	ID        string
	UID       string
	StartTime time.Time
	EndTime   time.Time
}

// ProviderClient books and cancels on an external calendar provider.
// Implementations map their provider's slot-conflict rejection to
// ErrProviderSlotUnavailable.
type ProviderClient interface {
	CreateBooking(ctx context.Context, req ProviderBookingRequest) (*ProviderBooking, error)
	CancelBooking(ctx context.Context, bookingUID, reason string) error
}

// ProviderResolver yields the provider client for an organization, or nil
// when the org books internally.
type ProviderResolver interface {
	ProviderFor(sched *schedule.OrgSchedule) ProviderClient
}

// NoProvider is a ProviderResolver for deployments without any external
// calendar integration.
type NoProvider struct{}

// ProviderFor always returns nil: book internally.
func (NoProvider) ProviderFor(*schedule.OrgSchedule) ProviderClient { return nil }
