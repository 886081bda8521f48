package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestCreateInsertsRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	now := time.Now().UTC()
	start := time.Date(2026, 3, 16, 15, 0, 0, 0, time.UTC)
	appt := &Appointment{
		OrgID:           "org_1",
		Provider:        ProviderInternal,
		StartTime:       start,
		EndTime:         start.Add(30 * time.Minute),
		DurationMinutes: 30,
		AttendeeName:    "Jordan Lee",
		AttendeePhone:   "+15551234567",
		AttendeeEmail:   "jordan@example.com",
	}

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "org_1", ProviderInternal, "", start, start.Add(30*time.Minute),
			30, "Jordan Lee", "+15551234567", "jordan@example.com", StatusConfirmed, "", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	repo := NewPostgresRepository(mock)
	if err := repo.Create(context.Background(), appt); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	if !appt.CreatedAt.Equal(now) {
		t.Errorf("created_at: got %s", appt.CreatedAt)
	}
}

func TestCreateMapsExclusionViolationToErrSlotTaken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{
			Code:           "23P01",
			ConstraintName: "appointments_no_overlap",
			Message:        "conflicting key value violates exclusion constraint",
		})

	repo := NewPostgresRepository(mock)
	start := time.Date(2026, 3, 16, 15, 0, 0, 0, time.UTC)
	err = repo.Create(context.Background(), &Appointment{
		OrgID:     "org_1",
		Provider:  ProviderInternal,
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

func TestCreateWrapsOtherErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	repo := NewPostgresRepository(mock)
	err = repo.Create(context.Background(), &Appointment{OrgID: "org_1"})
	if err == nil || errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected wrapped infrastructure error, got %v", err)
	}
}

func TestNextUpcomingByPhone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	start := time.Date(2026, 3, 17, 16, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("org_1", "+15551234567", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "org_id", "provider", "external_id", "start_time", "end_time",
			"duration_minutes", "attendee_name", "attendee_phone", "attendee_email",
			"status", "notes", "metadata", "created_at", "updated_at",
		}).AddRow(id, "org_1", ProviderCalcom, "bk_99", start, start.Add(30*time.Minute),
			30, "Jordan Lee", "+15551234567", "jordan@example.com",
			StatusConfirmed, "", []byte(`{"calcom_booking_uid":"uid_99"}`), now, now))

	repo := NewPostgresRepository(mock)
	appt, err := repo.NextUpcomingByPhone(context.Background(), "org_1", "+15551234567", now)
	if err != nil {
		t.Fatalf("NextUpcomingByPhone: %v", err)
	}
	if appt.ID != id {
		t.Errorf("id mismatch")
	}
	if appt.ExternalID != "bk_99" {
		t.Errorf("external id: got %s", appt.ExternalID)
	}
	if appt.Metadata["calcom_booking_uid"] != "uid_99" {
		t.Errorf("metadata: got %v", appt.Metadata)
	}
}

func TestNextUpcomingByPhoneNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresRepository(mock)
	if _, err := repo.NextUpcomingByPhone(context.Background(), "org_1", "+15550000000", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(id, "org_1", StatusCancelled).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewPostgresRepository(mock)
	if err := repo.UpdateStatus(context.Background(), "org_1", id, StatusCancelled); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("UPDATE appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewPostgresRepository(mock)
	if err := repo.UpdateStatus(context.Background(), "org_1", uuid.New(), StatusCancelled); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEffectiveEndDerivesFromDuration(t *testing.T) {
	start := time.Date(2026, 3, 16, 15, 0, 0, 0, time.UTC)
	appt := &Appointment{StartTime: start, DurationMinutes: 45}
	if got := appt.EffectiveEnd(30); !got.Equal(start.Add(45 * time.Minute)) {
		t.Errorf("expected duration-derived end, got %s", got)
	}
	appt = &Appointment{StartTime: start}
	if got := appt.EffectiveEnd(30); !got.Equal(start.Add(30 * time.Minute)) {
		t.Errorf("expected fallback-derived end, got %s", got)
	}
}
