package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgExclusionViolation is the SQLSTATE raised when the appointments
// time-range exclusion constraint rejects an insert.
const pgExclusionViolation = "23P01"

// Repository is the storage surface booking flows depend on.
type Repository interface {
	Create(ctx context.Context, appt *Appointment) error
	ListBetween(ctx context.Context, orgID string, from, to time.Time) ([]Appointment, error)
	NextUpcomingByPhone(ctx context.Context, orgID, phone string, after time.Time) (*Appointment, error)
	UpdateStatus(ctx context.Context, orgID string, id uuid.UUID, status Status) error
}

// PgxPool is the pgx surface the repository needs, satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// Create inserts a new appointment row. The insert either succeeds or fails
// with ErrSlotTaken from the exclusion constraint; there is no separate
// availability check, which would race under concurrent bookings.
func (r *PostgresRepository) Create(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = StatusConfirmed
	}
	metadata, err := json.Marshal(appt.Metadata)
	if err != nil {
		return fmt.Errorf("appointments: encode metadata: %w", err)
	}

	query := `
		INSERT INTO appointments (
			id, org_id, provider, external_id, start_time, end_time,
			duration_minutes, attendee_name, attendee_phone, attendee_email,
			status, notes, metadata
		)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		appt.ID,
		appt.OrgID,
		appt.Provider,
		appt.ExternalID,
		appt.StartTime.UTC(),
		appt.EndTime.UTC(),
		appt.DurationMinutes,
		appt.AttendeeName,
		appt.AttendeePhone,
		appt.AttendeeEmail,
		appt.Status,
		appt.Notes,
		metadata,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
			return ErrSlotTaken
		}
		return fmt.Errorf("appointments: insert failed: %w", err)
	}
	return nil
}

// ListBetween returns confirmed and pending appointments whose start time
// falls within [from, to), ordered by start time.
func (r *PostgresRepository) ListBetween(ctx context.Context, orgID string, from, to time.Time) ([]Appointment, error) {
	query := `
		SELECT id, org_id, provider, COALESCE(external_id, ''), start_time, end_time,
		       duration_minutes, attendee_name, attendee_phone, attendee_email,
		       status, notes, metadata, created_at, updated_at
		FROM appointments
		WHERE org_id = $1
		  AND start_time >= $2 AND start_time < $3
		  AND status IN ('confirmed', 'pending')
		ORDER BY start_time
	`
	rows, err := r.pool.Query(ctx, query, orgID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("appointments: select range failed: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate range failed: %w", err)
	}
	return out, nil
}

// NextUpcomingByPhone returns the nearest-future non-cancelled appointment
// booked under the given phone number, or ErrNotFound.
func (r *PostgresRepository) NextUpcomingByPhone(ctx context.Context, orgID, phone string, after time.Time) (*Appointment, error) {
	query := `
		SELECT id, org_id, provider, COALESCE(external_id, ''), start_time, end_time,
		       duration_minutes, attendee_name, attendee_phone, attendee_email,
		       status, notes, metadata, created_at, updated_at
		FROM appointments
		WHERE org_id = $1
		  AND attendee_phone = $2
		  AND start_time >= $3
		  AND status <> 'cancelled'
		ORDER BY start_time ASC
		LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, orgID, phone, after.UTC())
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return appt, nil
}

// UpdateStatus transitions an appointment's status, scoped to the org.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, orgID string, id uuid.UUID, status Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND org_id = $2
	`, id, orgID, status)
	if err != nil {
		return fmt.Errorf("appointments: update status failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*Appointment, error) {
	var (
		appt     Appointment
		metadata []byte
	)
	if err := row.Scan(
		&appt.ID,
		&appt.OrgID,
		&appt.Provider,
		&appt.ExternalID,
		&appt.StartTime,
		&appt.EndTime,
		&appt.DurationMinutes,
		&appt.AttendeeName,
		&appt.AttendeePhone,
		&appt.AttendeeEmail,
		&appt.Status,
		&appt.Notes,
		&metadata,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("appointments: scan failed: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &appt.Metadata); err != nil {
			return nil, fmt.Errorf("appointments: decode metadata: %w", err)
		}
	}
	return &appt, nil
}
