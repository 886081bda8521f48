package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/voxdesk/scheduling/internal/appointments"
	"github.com/voxdesk/scheduling/internal/availability"
	"github.com/voxdesk/scheduling/internal/observability/metrics"
	"github.com/voxdesk/scheduling/internal/schedule"
	"github.com/voxdesk/scheduling/pkg/logging"
)

var bookingTracer = otel.Tracer("voxdesk.internal.booking")

// Caller-facing messages for outcomes that are not field re-asks. Kept as
// constants so tests can assert exact phrasing.
const (
	msgSlotTaken = "I'm sorry, that time was just taken. Would you like me to check other available times?"
	msgGenericFailure = "I'm sorry, we're having trouble with scheduling right now. Let me take your information and have someone call you back to confirm."
	msgNoUpcoming = "I couldn't find an upcoming appointment under this phone number. Could you double-check the number you booked with?"
)

// ScheduleStore loads an organization's schedule configuration.
type ScheduleStore interface {
	GetByOrg(ctx context.Context, orgID string) (*schedule.OrgSchedule, error)
}

// Notifier tells the business owner about booking changes. Dispatch is
// fire-and-forget; failures never affect the booking outcome.
type Notifier interface {
	NotifyAppointmentBooked(ctx context.Context, appt *appointments.Appointment) error
	NotifyAppointmentCancelled(ctx context.Context, appt *appointments.Appointment) error
}

// Service executes booking and cancellation requests for the voice tools.
type Service struct {
	schedules          ScheduleStore
	appts              appointments.Repository
	providers          ProviderResolver
	notifier           Notifier
	cache              *availability.Cache
	metrics            *metrics.SchedulingMetrics
	defaultSlotMinutes int
	logger             *logging.Logger
	now                func() time.Time
}

// NewService constructs a booking service. notifier, cache, and metrics may
// be nil; providers may be NoProvider{} for internal-only deployments.
func NewService(schedules ScheduleStore, appts appointments.Repository, providers ProviderResolver, notifier Notifier, cache *availability.Cache, m *metrics.SchedulingMetrics, defaultSlotMinutes int, logger *logging.Logger) *Service {
	if schedules == nil {
		panic("booking: schedule store required")
	}
	if appts == nil {
		panic("booking: appointment repository required")
	}
	if providers == nil {
		providers = NoProvider{}
	}
	if defaultSlotMinutes <= 0 {
		defaultSlotMinutes = 30
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		schedules:          schedules,
		appts:              appts,
		providers:          providers,
		notifier:           notifier,
		cache:              cache,
		metrics:            m,
		defaultSlotMinutes: defaultSlotMinutes,
		logger:             logger,
		now:                time.Now,
	}
}

// BookAppointment validates the request against the organization's business
// hours and commits the booking, internally or through the configured
// provider. The returned Result always carries a speakable message.
func (s *Service) BookAppointment(ctx context.Context, orgID string, req BookRequest) *Result {
	ctx, span := bookingTracer.Start(ctx, "booking.book")
	defer span.End()
	span.SetAttributes(attribute.String("voxdesk.org_id", orgID))

	if prompt := req.validate(); prompt != "" {
		return failure(prompt)
	}

	sched, err := s.schedules.GetByOrg(ctx, orgID)
	if err != nil {
		s.logger.Error("booking: schedule lookup failed", "error", err, "org_id", orgID)
		span.RecordError(err)
		return failure(msgGenericFailure)
	}

	loc := sched.Location()
	start, err := localTime(req.Datetime, loc)
	if err != nil {
		// validate() already vetted the shape, so this only trips on a
		// zone mismatch; re-ask rather than fail hard.
		return failure(promptBadDatetime)
	}

	duration := sched.DurationMinutes
	if duration <= 0 {
		duration = s.defaultSlotMinutes
	}

	hours := schedule.ResolveDayHours(sched, start)
	spokenDay := start.Format("Monday, January 2")
	if hours == nil {
		return failure(fmt.Sprintf("I'm sorry, we're closed on %s. Would another day work for you?", spokenDay))
	}
	if err := schedule.ValidateBookingTime(schedule.MinutesOfDay(start), duration, hours.Open, hours.Close); err != nil {
		return failure(fmt.Sprintf(
			"I'm sorry, that time is outside our hours on %s. We're open from %s to %s. Would another time work?",
			spokenDay, schedule.FormatClock(hours.Open), schedule.FormatClock(hours.Close),
		))
	}

	appt := &appointments.Appointment{
		OrgID:           orgID,
		Provider:        appointments.ProviderInternal,
		StartTime:       start.UTC(),
		EndTime:         start.Add(time.Duration(duration) * time.Minute).UTC(),
		DurationMinutes: duration,
		AttendeeName:    req.Name,
		AttendeePhone:   normalizePhone(req.Phone),
		AttendeeEmail:   req.Email,
		Status:          appointments.StatusConfirmed,
		Notes:           req.Notes,
		Metadata:        map[string]string{"source": "voice"},
	}
	if appt.AttendeeEmail == "" {
		appt.AttendeeEmail = placeholderEmail(req.Phone)
	}

	var result *Result
	if client := s.providers.ProviderFor(sched); client != nil {
		result = s.bookViaProvider(ctx, client, sched, appt)
	} else {
		result = s.bookInternal(ctx, appt)
	}

	if result.Success {
		s.cache.Invalidate(ctx, orgID, start.Format("2006-01-02"))
		s.dispatchNotification(ctx, appt, "booked")
		result.Message = fmt.Sprintf(
			"You're all set, %s. I have you booked for %s at %s. Is there anything else I can help you with?",
			req.Name, spokenDay, start.Format("3:04 PM"),
		)
	}
	return result
}

// bookInternal inserts the appointment row directly. Conflict detection is
// the database exclusion constraint's job: the insert either succeeds or
// fails with ErrSlotTaken. No availability read happens first, because a
// read-then-write sequence races under concurrent calls.
func (s *Service) bookInternal(ctx context.Context, appt *appointments.Appointment) *Result {
	if err := s.appts.Create(ctx, appt); err != nil {
		if errors.Is(err, appointments.ErrSlotTaken) {
			s.metrics.ObserveBooking(appointments.ProviderInternal, "conflict")
			s.logger.Info("booking: slot conflict", "org_id", appt.OrgID, "start", appt.StartTime)
			return failure(msgSlotTaken)
		}
		s.metrics.ObserveBooking(appointments.ProviderInternal, "error")
		s.logger.Error("booking: insert failed", "error", err, "org_id", appt.OrgID, "start", appt.StartTime)
		return failure(msgGenericFailure)
	}
	s.metrics.ObserveBooking(appointments.ProviderInternal, "booked")
	s.logger.Info("booking: confirmed", "org_id", appt.OrgID, "appointment_id", appt.ID, "start", appt.StartTime)
	return &Result{
		Success:       true,
		AppointmentID: appt.ID,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
	}
}

// bookViaProvider runs the two-phase commit: create the booking on the
// provider first, then mirror it locally. A local-commit failure triggers a
// compensating provider cancellation so no orphaned external event remains.
func (s *Service) bookViaProvider(ctx context.Context, client ProviderClient, sched *schedule.OrgSchedule, appt *appointments.Appointment) *Result {
	remote, err := client.CreateBooking(ctx, ProviderBookingRequest{
		EventTypeID:     sched.CalcomEventTypeID,
		Start:           appt.StartTime,
		DurationMinutes: appt.DurationMinutes,
		AttendeeName:    appt.AttendeeName,
		AttendeeEmail:   appt.AttendeeEmail,
		AttendeePhone:   appt.AttendeePhone,
		Timezone:        sched.Timezone,
		Notes:           appt.Notes,
	})
	if err != nil {
		if errors.Is(err, ErrProviderSlotUnavailable) {
			s.metrics.ObserveBooking(appointments.ProviderCalcom, "conflict")
			s.logger.Info("booking: provider slot conflict", "org_id", appt.OrgID, "start", appt.StartTime)
			return failure(msgSlotTaken)
		}
		s.metrics.ObserveBooking(appointments.ProviderCalcom, "provider_error")
		s.logger.Error("booking: provider create failed", "error", err, "org_id", appt.OrgID, "start", appt.StartTime)
		return failure(msgGenericFailure)
	}

	appt.Provider = appointments.ProviderCalcom
	appt.ExternalID = remote.UID
	appt.Metadata["calcom_booking_id"] = remote.ID
	appt.Metadata["calcom_booking_uid"] = remote.UID
	if !remote.StartTime.IsZero() {
		appt.StartTime = remote.StartTime.UTC()
	}
	if !remote.EndTime.IsZero() {
		appt.EndTime = remote.EndTime.UTC()
	}

	if err := s.appts.Create(ctx, appt); err != nil {
		s.rollbackProviderBooking(ctx, client, appt.OrgID, remote.UID)
		if errors.Is(err, appointments.ErrSlotTaken) {
			s.metrics.ObserveBooking(appointments.ProviderCalcom, "conflict")
			return failure(msgSlotTaken)
		}
		s.metrics.ObserveBooking(appointments.ProviderCalcom, "mirror_error")
		s.logger.Error("booking: local mirror insert failed after provider commit",
			"error", err, "org_id", appt.OrgID, "provider_booking_uid", remote.UID)
		return failure(msgGenericFailure)
	}

	s.metrics.ObserveBooking(appointments.ProviderCalcom, "booked")
	s.logger.Info("booking: confirmed via provider",
		"org_id", appt.OrgID, "appointment_id", appt.ID, "provider_booking_uid", remote.UID)
	return &Result{
		Success:           true,
		AppointmentID:     appt.ID,
		ProviderBookingID: remote.UID,
		StartTime:         appt.StartTime,
		EndTime:           appt.EndTime,
	}
}

// rollbackProviderBooking compensates a provider booking whose local mirror
// failed. A rollback failure leaves the two systems inconsistent and is
// logged at error severity for manual reconciliation; the caller still gets
// a failure message, never a false success.
func (s *Service) rollbackProviderBooking(ctx context.Context, client ProviderClient, orgID, bookingUID string) {
	if err := client.CancelBooking(ctx, bookingUID, "system rollback: local commit failed"); err != nil {
		s.metrics.ObserveRollback("failed")
		s.logger.Error("CRITICAL: provider booking rollback failed, manual reconciliation required",
			"error", err, "org_id", orgID, "provider_booking_uid", bookingUID)
		return
	}
	s.metrics.ObserveRollback("ok")
	s.logger.Warn("booking: provider booking rolled back after local commit failure",
		"org_id", orgID, "provider_booking_uid", bookingUID)
}

// CancelAppointment cancels the caller's nearest-future appointment looked
// up by phone number. Provider-backed bookings are cancelled remotely
// first; the local row is marked cancelled regardless of the remote
// outcome, since a remote/local disagreement is a transient inconsistency
// to flag downstream rather than retry during a live call.
func (s *Service) CancelAppointment(ctx context.Context, orgID, phone, reason string) *Result {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("voxdesk.org_id", orgID))

	normalized := normalizePhone(phone)
	if normalized == "" {
		return failure(promptBadPhone)
	}

	appt, err := s.appts.NextUpcomingByPhone(ctx, orgID, normalized, s.now().UTC())
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			s.metrics.ObserveCancellation("not_found")
			return failure(msgNoUpcoming)
		}
		s.metrics.ObserveCancellation("error")
		s.logger.Error("cancel: lookup failed", "error", err, "org_id", orgID)
		span.RecordError(err)
		return failure(msgGenericFailure)
	}

	loc := time.UTC
	var sched *schedule.OrgSchedule
	if sched, err = s.schedules.GetByOrg(ctx, orgID); err == nil {
		loc = sched.Location()
	} else {
		s.logger.Warn("cancel: schedule lookup failed, using UTC for spoken time", "error", err, "org_id", orgID)
	}

	if appt.Provider != appointments.ProviderInternal {
		s.cancelRemote(ctx, sched, appt)
	}

	if err := s.appts.UpdateStatus(ctx, orgID, appt.ID, appointments.StatusCancelled); err != nil {
		s.metrics.ObserveCancellation("error")
		s.logger.Error("cancel: status update failed", "error", err, "org_id", orgID, "appointment_id", appt.ID)
		return failure(msgGenericFailure)
	}

	localStart := appt.StartTime.In(loc)
	s.cache.Invalidate(ctx, orgID, localStart.Format("2006-01-02"))
	appt.Status = appointments.StatusCancelled
	s.dispatchNotification(ctx, appt, "cancelled")
	s.metrics.ObserveCancellation("cancelled")
	s.logger.Info("cancel: appointment cancelled", "org_id", orgID, "appointment_id", appt.ID, "reason", reason)

	return &Result{
		Success:       true,
		AppointmentID: appt.ID,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
		Message: fmt.Sprintf(
			"Your appointment on %s at %s has been cancelled. Is there anything else I can help you with?",
			localStart.Format("Monday, January 2"), localStart.Format("3:04 PM"),
		),
	}
}

// cancelRemote best-effort cancels the provider side of a booking. A
// missing remote id means the row was already reconciled elsewhere; a
// remote failure is logged but does not block the local cancellation.
func (s *Service) cancelRemote(ctx context.Context, sched *schedule.OrgSchedule, appt *appointments.Appointment) {
	if appt.ExternalID == "" {
		s.logger.Warn("cancel: provider-backed appointment missing remote booking id, treating as already reconciled",
			"org_id", appt.OrgID, "appointment_id", appt.ID)
		return
	}
	client := s.providers.ProviderFor(sched)
	if client == nil {
		s.logger.Warn("cancel: provider no longer configured for org, skipping remote cancellation",
			"org_id", appt.OrgID, "appointment_id", appt.ID)
		return
	}
	if err := client.CancelBooking(ctx, appt.ExternalID, "cancelled by caller"); err != nil {
		s.logger.Error("cancel: remote cancellation failed, local row will still be cancelled",
			"error", err, "org_id", appt.OrgID, "provider_booking_uid", appt.ExternalID)
	}
}

// dispatchNotification notifies the business owner in the background.
// Failures are logged and isolated from the caller-facing outcome.
func (s *Service) dispatchNotification(ctx context.Context, appt *appointments.Appointment, event string) {
	if s.notifier == nil {
		return
	}
	notifyCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("notify: panic in dispatch", "panic", r, "org_id", appt.OrgID)
			}
		}()
		var err error
		switch event {
		case "booked":
			err = s.notifier.NotifyAppointmentBooked(notifyCtx, appt)
		case "cancelled":
			err = s.notifier.NotifyAppointmentCancelled(notifyCtx, appt)
		}
		if err != nil {
			s.logger.Error("notify: dispatch failed", "error", err, "event", event, "org_id", appt.OrgID)
		}
	}()
}
