// Package notify sends owner-facing notifications about appointment
// changes. Dispatch failures are reported to callers but are always
// isolated from the booking transaction itself.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/voxdesk/scheduling/internal/appointments"
	"github.com/voxdesk/scheduling/internal/schedule"
	"github.com/voxdesk/scheduling/pkg/logging"
)

// ScheduleStore retrieves the org's configuration, including the owner's
// notification address and timezone for rendering times.
type ScheduleStore interface {
	GetByOrg(ctx context.Context, orgID string) (*schedule.OrgSchedule, error)
}

// Service handles sending notifications to business owners.
type Service struct {
	email     EmailSender
	schedules ScheduleStore
	logger    *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, schedules ScheduleStore, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, schedules: schedules, logger: logger}
}

// NotifyAppointmentBooked emails the business owner about a new booking.
func (s *Service) NotifyAppointmentBooked(ctx context.Context, appt *appointments.Appointment) error {
	return s.send(ctx, appt, "New appointment booked", "booked")
}

// NotifyAppointmentCancelled emails the business owner about a cancellation.
func (s *Service) NotifyAppointmentCancelled(ctx context.Context, appt *appointments.Appointment) error {
	return s.send(ctx, appt, "Appointment cancelled", "cancelled")
}

func (s *Service) send(ctx context.Context, appt *appointments.Appointment, subject, verb string) error {
	if s.email == nil {
		s.logger.Debug("notify: email sender not configured, skipping")
		return nil
	}

	loc := time.UTC
	var to string
	if s.schedules != nil {
		sched, err := s.schedules.GetByOrg(ctx, appt.OrgID)
		if err != nil {
			s.logger.Error("notify: schedule lookup failed", "error", err, "org_id", appt.OrgID)
			return fmt.Errorf("notify: get org schedule: %w", err)
		}
		to = sched.NotifyEmail
		loc = sched.Location()
	}
	if to == "" {
		s.logger.Debug("notify: no owner email configured", "org_id", appt.OrgID)
		return nil
	}

	when := appt.StartTime.In(loc).Format("Monday, January 2 at 3:04 PM")
	body := fmt.Sprintf(
		"An appointment was %s through your voice assistant.\n\nWhen: %s\nName: %s\nPhone: %s\nEmail: %s\n",
		verb, when, appt.AttendeeName, appt.AttendeePhone, appt.AttendeeEmail,
	)
	if appt.Notes != "" {
		body += fmt.Sprintf("Notes: %s\n", appt.Notes)
	}

	if err := s.email.Send(ctx, EmailMessage{
		To:      to,
		Subject: subject,
		Body:    body,
	}); err != nil {
		return fmt.Errorf("notify: send %s email: %w", verb, err)
	}
	s.logger.Info("notify: owner email sent", "org_id", appt.OrgID, "event", verb, "appointment_id", appt.ID)
	return nil
}
