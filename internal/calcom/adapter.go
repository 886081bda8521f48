package calcom

import (
	"context"
	"errors"
	"time"

	"github.com/voxdesk/scheduling/internal/booking"
	"github.com/voxdesk/scheduling/internal/schedule"
	"github.com/voxdesk/scheduling/pkg/logging"
)

// Factory builds per-organization Cal.com clients from the credentials on
// the org's schedule row. It implements booking.ProviderResolver.
type Factory struct {
	baseURL string
	timeout time.Duration
	logger  *logging.Logger
}

// NewFactory creates a Cal.com client factory.
func NewFactory(baseURL string, timeout time.Duration, logger *logging.Logger) *Factory {
	if logger == nil {
		logger = logging.Default()
	}
	return &Factory{baseURL: baseURL, timeout: timeout, logger: logger}
}

// ProviderFor returns a booking client for the org, or nil when the org has
// no Cal.com credentials and should book internally.
func (f *Factory) ProviderFor(sched *schedule.OrgSchedule) booking.ProviderClient {
	if !sched.ProviderConfigured() {
		return nil
	}
	return &adapter{client: NewClient(f.baseURL, sched.CalcomAPIKey, f.timeout, f.logger)}
}

// adapter maps the Cal.com client onto booking.ProviderClient.
type adapter struct {
	client *Client
}

func (a *adapter) CreateBooking(ctx context.Context, req booking.ProviderBookingRequest) (*booking.ProviderBooking, error) {
	remote, err := a.client.CreateBooking(ctx, CreateBookingRequest{
		EventTypeID:     req.EventTypeID,
		Start:           req.Start,
		DurationMinutes: req.DurationMinutes,
		AttendeeName:    req.AttendeeName,
		AttendeeEmail:   req.AttendeeEmail,
		AttendeePhone:   req.AttendeePhone,
		Timezone:        req.Timezone,
		Notes:           req.Notes,
	})
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			return nil, booking.ErrProviderSlotUnavailable
		}
		return nil, err
	}
	return &booking.ProviderBooking{
		ID:        remote.ID,
		UID:       remote.UID,
		StartTime: remote.StartTime,
		EndTime:   remote.EndTime,
	}, nil
}

func (a *adapter) CancelBooking(ctx context.Context, bookingUID, reason string) error {
	return a.client.CancelBooking(ctx, bookingUID, reason)
}
