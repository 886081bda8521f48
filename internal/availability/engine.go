// Package availability computes a day's free appointment slots for an
// organization and renders them for voice presentation.
package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/voxdesk/scheduling/internal/appointments"
	"github.com/voxdesk/scheduling/internal/schedule"
	"github.com/voxdesk/scheduling/pkg/logging"
)

var availabilityTracer = otel.Tracer("voxdesk.internal.availability")

// maxSpokenSlots caps how many times are read out before "and N more".
const maxSpokenSlots = 5

// fallbackSlotMinutes is the last-resort slot length when an organization
// has no configured duration.
const fallbackSlotMinutes = 30

// ScheduleStore loads an organization's schedule configuration.
type ScheduleStore interface {
	GetByOrg(ctx context.Context, orgID string) (*schedule.OrgSchedule, error)
}

// Result is the outcome of an availability check. Slots are local
// wall-clock strings in the organization's timezone; Message is complete
// and speakable on every path.
type Result struct {
	Date    string   `json:"date"`
	Slots   []string `json:"slots"`
	Message string   `json:"message"`
	Closed  bool     `json:"closed"`
}

// Engine combines the schedule resolver, slot generator, and booked
// appointments to produce the free-slot list for a date.
type Engine struct {
	schedules          ScheduleStore
	appts              appointments.Repository
	cache              *Cache
	defaultSlotMinutes int
	logger             *logging.Logger
}

// NewEngine constructs an availability engine. cache may be nil.
func NewEngine(schedules ScheduleStore, appts appointments.Repository, cache *Cache, defaultSlotMinutes int, logger *logging.Logger) *Engine {
	if schedules == nil {
		panic("availability: schedule store required")
	}
	if appts == nil {
		panic("availability: appointment repository required")
	}
	if defaultSlotMinutes <= 0 {
		defaultSlotMinutes = fallbackSlotMinutes
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		schedules:          schedules,
		appts:              appts,
		cache:              cache,
		defaultSlotMinutes: defaultSlotMinutes,
		logger:             logger,
	}
}

// CheckAvailability returns the free slots for a calendar date
// ("YYYY-MM-DD"). Store failures propagate as errors so the caller can
// apologize instead of misreporting "no availability".
func (e *Engine) CheckAvailability(ctx context.Context, orgID, date string) (*Result, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.check")
	defer span.End()
	span.SetAttributes(
		attribute.String("voxdesk.org_id", orgID),
		attribute.String("voxdesk.date", date),
	)

	if cached, ok := e.cache.Get(ctx, orgID, date); ok {
		return cached, nil
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("availability: bad date %q: %w", date, err)
	}

	sched, err := e.schedules.GetByOrg(ctx, orgID)
	if err != nil {
		if errors.Is(err, schedule.ErrNotConfigured) {
			return &Result{
				Date:    date,
				Closed:  true,
				Message: "I'm sorry, I don't have the appointment schedule available right now. Can I take your information and have someone call you back?",
			}, nil
		}
		span.RecordError(err)
		return nil, err
	}

	loc := sched.Location()
	localNoon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, loc)
	spokenDate := localNoon.Format("Monday, January 2")

	hours := schedule.ResolveDayHours(sched, localNoon)
	if hours == nil {
		res := &Result{
			Date:    date,
			Closed:  true,
			Message: fmt.Sprintf("I'm sorry, we're closed on %s. Would another day work for you?", spokenDate),
		}
		e.cache.Set(ctx, orgID, date, res)
		return res, nil
	}

	duration := sched.DurationMinutes
	if duration <= 0 {
		duration = e.defaultSlotMinutes
	}
	candidates := schedule.GenerateSlots(date, hours.Open, hours.Close, duration)

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	booked, err := e.appts.ListBetween(ctx, orgID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("availability: load bookings: %w", err)
	}

	free := e.filterBooked(candidates, booked, duration, loc)

	res := &Result{
		Date:    date,
		Slots:   free,
		Message: e.speakSlots(free, spokenDate, loc),
	}
	e.cache.Set(ctx, orgID, date, res)
	return res, nil
}

// filterBooked drops candidate slots whose half-open interval overlaps any
// existing appointment: slotStart < apptEnd && slotEnd > apptStart.
func (e *Engine) filterBooked(candidates []string, booked []appointments.Appointment, durationMinutes int, loc *time.Location) []string {
	free := make([]string, 0, len(candidates))
	for _, slot := range candidates {
		start, err := time.ParseInLocation("2006-01-02T15:04:05", slot, loc)
		if err != nil {
			continue
		}
		end := start.Add(time.Duration(durationMinutes) * time.Minute)

		conflict := false
		for i := range booked {
			if booked[i].Overlaps(start, end, durationMinutes) {
				conflict = true
				break
			}
		}
		if !conflict {
			free = append(free, slot)
		}
	}
	return free
}

func (e *Engine) speakSlots(free []string, spokenDate string, loc *time.Location) string {
	if len(free) == 0 {
		return fmt.Sprintf("I'm sorry, we don't have any openings on %s. Would another day work for you?", spokenDate)
	}

	spoken := make([]string, 0, maxSpokenSlots)
	for _, slot := range free {
		if len(spoken) == maxSpokenSlots {
			break
		}
		t, err := time.ParseInLocation("2006-01-02T15:04:05", slot, loc)
		if err != nil {
			continue
		}
		spoken = append(spoken, t.Format("3:04 PM"))
	}

	list := strings.Join(spoken, ", ")
	if extra := len(free) - len(spoken); extra > 0 {
		list = fmt.Sprintf("%s, and %d more", list, extra)
	}
	return fmt.Sprintf("On %s we have the following times available: %s. What works best for you?", spokenDate, list)
}
