package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is a Repository for unit tests and local development.
// Its overlap rejection mimics the database exclusion constraint but is not
// authoritative: the concurrency guarantee lives in Postgres, and the
// repository tests assert the constraint-violation mapping there.
type InMemoryRepository struct {
	mu    sync.RWMutex
	appts map[uuid.UUID]*Appointment
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{appts: make(map[uuid.UUID]*Appointment)}
}

// Create stores the appointment, rejecting overlaps with non-cancelled rows.
func (r *InMemoryRepository) Create(ctx context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = StatusConfirmed
	}
	for _, existing := range r.appts {
		if existing.OrgID != appt.OrgID || existing.Status == StatusCancelled {
			continue
		}
		if appt.StartTime.Before(existing.EndTime) && appt.EndTime.After(existing.StartTime) {
			return ErrSlotTaken
		}
	}
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	clone := *appt
	r.appts[appt.ID] = &clone
	return nil
}

// ListBetween returns confirmed/pending appointments starting in [from, to).
func (r *InMemoryRepository) ListBetween(ctx context.Context, orgID string, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, appt := range r.appts {
		if appt.OrgID != orgID {
			continue
		}
		if appt.Status != StatusConfirmed && appt.Status != StatusPending {
			continue
		}
		if appt.StartTime.Before(from) || !appt.StartTime.Before(to) {
			continue
		}
		out = append(out, *appt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// NextUpcomingByPhone returns the nearest-future non-cancelled appointment
// for the phone number.
func (r *InMemoryRepository) NextUpcomingByPhone(ctx context.Context, orgID, phone string, after time.Time) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Appointment
	for _, appt := range r.appts {
		if appt.OrgID != orgID || appt.AttendeePhone != phone {
			continue
		}
		if appt.Status == StatusCancelled || appt.StartTime.Before(after) {
			continue
		}
		if best == nil || appt.StartTime.Before(best.StartTime) {
			best = appt
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	clone := *best
	return &clone, nil
}

// UpdateStatus transitions the appointment's status.
func (r *InMemoryRepository) UpdateStatus(ctx context.Context, orgID string, id uuid.UUID, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok || appt.OrgID != orgID {
		return ErrNotFound
	}
	appt.Status = status
	appt.UpdatedAt = time.Now().UTC()
	return nil
}
