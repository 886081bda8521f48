package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNotConfigured is returned when an organization has no schedule row.
var ErrNotConfigured = errors.New("schedule: organization has no schedule configured")

// Querier is the pgx surface the store needs, satisfied by *pgxpool.Pool
// and by pgxmock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads organization schedules from Postgres.
type Store struct {
	db Querier
}

// NewStore creates a schedule store backed by a pgx pool.
func NewStore(db Querier) *Store {
	if db == nil {
		panic("schedule: querier required")
	}
	return &Store{db: db}
}

// GetByOrg loads the schedule for an organization. Returns ErrNotConfigured
// when no row exists.
func (s *Store) GetByOrg(ctx context.Context, orgID string) (*OrgSchedule, error) {
	query := `
		SELECT org_id, timezone, business_hours, duration_minutes,
		       COALESCE(notify_email, ''),
		       COALESCE(calcom_api_key, ''), COALESCE(calcom_event_type_id, '')
		FROM org_schedules
		WHERE org_id = $1
	`
	var (
		sched     OrgSchedule
		hoursJSON []byte
	)
	row := s.db.QueryRow(ctx, query, orgID)
	if err := row.Scan(
		&sched.OrgID,
		&sched.Timezone,
		&hoursJSON,
		&sched.DurationMinutes,
		&sched.NotifyEmail,
		&sched.CalcomAPIKey,
		&sched.CalcomEventTypeID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("schedule: select failed: %w", err)
	}

	if len(hoursJSON) > 0 {
		if err := json.Unmarshal(hoursJSON, &sched.BusinessHours); err != nil {
			return nil, fmt.Errorf("schedule: decode business hours: %w", err)
		}
	}
	return &sched, nil
}
