package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/voxdesk/scheduling/internal/appointments"
	"github.com/voxdesk/scheduling/internal/schedule"
)

type stubScheduleStore struct {
	sched *schedule.OrgSchedule
	err   error
}

func (s *stubScheduleStore) GetByOrg(ctx context.Context, orgID string) (*schedule.OrgSchedule, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sched, nil
}

type fakeProvider struct {
	mu            sync.Mutex
	createErr     error
	cancelErr     error
	created       []ProviderBookingRequest
	cancelledUIDs []string
	nextUID       string
}

func (f *fakeProvider) CreateBooking(ctx context.Context, req ProviderBookingRequest) (*ProviderBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	uid := f.nextUID
	if uid == "" {
		uid = "uid_test"
	}
	return &ProviderBooking{
		ID:        "9001",
		UID:       uid,
		StartTime: req.Start,
		EndTime:   req.Start.Add(time.Duration(req.DurationMinutes) * time.Minute),
	}, nil
}

func (f *fakeProvider) CancelBooking(ctx context.Context, bookingUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelledUIDs = append(f.cancelledUIDs, bookingUID)
	return nil
}

func (f *fakeProvider) cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelledUIDs...)
}

type staticResolver struct {
	client ProviderClient
}

func (r staticResolver) ProviderFor(*schedule.OrgSchedule) ProviderClient { return r.client }

// failingCreateRepo wraps the in-memory repo and fails Create, simulating a
// local-store outage after a provider commit succeeds.
type failingCreateRepo struct {
	appointments.Repository
	createErr error
}

func (f *failingCreateRepo) Create(ctx context.Context, appt *appointments.Appointment) error {
	return f.createErr
}

type recordingNotifier struct {
	booked    chan *appointments.Appointment
	cancelled chan *appointments.Appointment
	err       error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		booked:    make(chan *appointments.Appointment, 1),
		cancelled: make(chan *appointments.Appointment, 1),
	}
}

func (n *recordingNotifier) NotifyAppointmentBooked(ctx context.Context, appt *appointments.Appointment) error {
	n.booked <- appt
	return n.err
}

func (n *recordingNotifier) NotifyAppointmentCancelled(ctx context.Context, appt *appointments.Appointment) error {
	n.cancelled <- appt
	return n.err
}

func chicagoSchedule() *schedule.OrgSchedule {
	return &schedule.OrgSchedule{
		OrgID:    "org_1",
		Timezone: "America/Chicago",
		BusinessHours: map[string]*schedule.Window{
			"monday":  {Open: "09:00", Close: "17:00"},
			"tuesday": {Open: "09:00", Close: "17:00"},
		},
		DurationMinutes: 30,
	}
}

func providerSchedule() *schedule.OrgSchedule {
	s := chicagoSchedule()
	s.CalcomAPIKey = "cal_live_key"
	s.CalcomEventTypeID = "777"
	return s
}

func validRequest() BookRequest {
	return BookRequest{
		Datetime: "2026-03-16T10:00:00",
		Name:     "Jordan Lee",
		Phone:    "+15551234567",
		Email:    "jordan@example.com",
	}
}

func newService(store ScheduleStore, repo appointments.Repository, resolver ProviderResolver, notifier Notifier) *Service {
	return NewService(store, repo, resolver, notifier, nil, nil, 30, nil)
}

func TestBookInternalSuccess(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	svc := newService(&stubScheduleStore{sched: chicagoSchedule()}, repo, nil, nil)

	res := svc.BookAppointment(context.Background(), "org_1", validRequest())
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Message)
	}
	if res.AppointmentID == uuid.Nil {
		t.Error("expected appointment id")
	}
	if !strings.Contains(res.Message, "Monday, March 16") || !strings.Contains(res.Message, "10:00 AM") {
		t.Errorf("message should speak the booked time: %q", res.Message)
	}

	loc, _ := time.LoadLocation("America/Chicago")
	wantStart := time.Date(2026, 3, 16, 10, 0, 0, 0, loc)
	if !res.StartTime.Equal(wantStart) {
		t.Errorf("start: got %s, want %s", res.StartTime, wantStart)
	}
	if !res.EndTime.Equal(wantStart.Add(30 * time.Minute)) {
		t.Errorf("end: got %s", res.EndTime)
	}
}

func TestBookInternalConflict(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	svc := newService(&stubScheduleStore{sched: chicagoSchedule()}, repo, nil, nil)

	first := svc.BookAppointment(context.Background(), "org_1", validRequest())
	if !first.Success {
		t.Fatalf("first booking should succeed: %q", first.Message)
	}

	req := validRequest()
	req.Phone = "+15559876543"
	second := svc.BookAppointment(context.Background(), "org_1", req)
	if second.Success {
		t.Fatal("second overlapping booking must be rejected")
	}
	if second.Message != msgSlotTaken {
		t.Errorf("expected slot-taken message, got %q", second.Message)
	}
}

func TestBookRejectsOutsideBusinessHours(t *testing.T) {
	svc := newService(&stubScheduleStore{sched: chicagoSchedule()}, appointments.NewInMemoryRepository(), nil, nil)

	req := validRequest()
	req.Datetime = "2026-03-16T16:45:00" // 30-minute slot would end 17:15
	res := svc.BookAppointment(context.Background(), "org_1", req)
	if res.Success {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(res.Message, "outside our hours") || !strings.Contains(res.Message, "9:00 AM") || !strings.Contains(res.Message, "5:00 PM") {
		t.Errorf("rejection should name the valid hours: %q", res.Message)
	}
}

func TestBookBoundaryExactEndAtCloseIsValid(t *testing.T) {
	svc := newService(&stubScheduleStore{sched: chicagoSchedule()}, appointments.NewInMemoryRepository(), nil, nil)

	req := validRequest()
	req.Datetime = "2026-03-16T16:30:00" // ends exactly at 17:00
	res := svc.BookAppointment(context.Background(), "org_1", req)
	if !res.Success {
		t.Fatalf("boundary-exact booking should succeed, got %q", res.Message)
	}
}

func TestBookClosedDay(t *testing.T) {
	svc := newService(&stubScheduleStore{sched: chicagoSchedule()}, appointments.NewInMemoryRepository(), nil, nil)

	req := validRequest()
	req.Datetime = "2026-03-15T10:00:00" // Sunday, closed
	res := svc.BookAppointment(context.Background(), "org_1", req)
	if res.Success {
		t.Fatal("expected rejection on closed day")
	}
	if !strings.Contains(res.Message, "closed on Sunday, March 15") {
		t.Errorf("expected closure message, got %q", res.Message)
	}
}

func TestBookValidatesWeekdayInOrgTimezone(t *testing.T) {
	sched := &schedule.OrgSchedule{
		OrgID:    "org_syd",
		Timezone: "Australia/Sydney",
		BusinessHours: map[string]*schedule.Window{
			"sunday": {Open: "10:00", Close: "14:00"},
			// monday closed
		},
		DurationMinutes: 30,
	}
	svc := newService(&stubScheduleStore{sched: sched}, appointments.NewInMemoryRepository(), nil, nil)

	// Monday morning Sydney wall-clock, which is still Sunday UTC.
	req := validRequest()
	req.Datetime = "2026-03-16T10:00:00"
	res := svc.BookAppointment(context.Background(), "org_syd", req)
	if res.Success {
		t.Fatal("Monday in Sydney must be rejected even though it is Sunday in UTC")
	}
	if !strings.Contains(res.Message, "closed on Monday") {
		t.Errorf("expected Monday closure, got %q", res.Message)
	}
}

func TestBookScheduleLookupFailure(t *testing.T) {
	svc := newService(&stubScheduleStore{err: errors.New("timeout")}, appointments.NewInMemoryRepository(), nil, nil)
	res := svc.BookAppointment(context.Background(), "org_1", validRequest())
	if res.Success || res.Message != msgGenericFailure {
		t.Fatalf("expected generic failure, got success=%v %q", res.Success, res.Message)
	}
}

func TestBookFieldValidationShortCircuitsBeforeStores(t *testing.T) {
	// Schedule store that fails loudly: it must never be reached when a
	// required field is missing.
	svc := newService(&stubScheduleStore{err: errors.New("must not be called")}, appointments.NewInMemoryRepository(), nil, nil)

	req := validRequest()
	req.Phone = ""
	res := svc.BookAppointment(context.Background(), "org_1", req)
	if res.Message != promptMissingPhone {
		t.Fatalf("expected phone prompt, got %q", res.Message)
	}
}

func TestBookSynthesizesPlaceholderEmail(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	svc := newService(&stubScheduleStore{sched: chicagoSchedule()}, repo, nil, nil)

	req := validRequest()
	req.Email = ""
	res := svc.BookAppointment(context.Background(), "org_1", req)
	if !res.Success {
		t.Fatalf("expected success: %q", res.Message)
	}

	appt, err := repo.NextUpcomingByPhone(context.Background(), "org_1", "+15551234567", time.Time{})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if appt.AttendeeEmail != "caller-15551234567@placeholder.voxdesk.ai" {
		t.Errorf("expected placeholder email, got %q", appt.AttendeeEmail)
	}
}

func TestBookViaProviderSuccess(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	provider := &fakeProvider{nextUID: "uid_42"}
	svc := newService(&stubScheduleStore{sched: providerSchedule()}, repo, staticResolver{provider}, nil)

	res := svc.BookAppointment(context.Background(), "org_1", validRequest())
	if !res.Success {
		t.Fatalf("expected success: %q", res.Message)
	}
	if res.ProviderBookingID != "uid_42" {
		t.Errorf("provider booking id: got %q", res.ProviderBookingID)
	}
	if len(provider.created) != 1 {
		t.Fatalf("expected one provider booking, got %d", len(provider.created))
	}
	if provider.created[0].EventTypeID != "777" {
		t.Errorf("event type: got %s", provider.created[0].EventTypeID)
	}

	appt, err := repo.NextUpcomingByPhone(context.Background(), "org_1", "+15551234567", time.Time{})
	if err != nil {
		t.Fatalf("mirror row missing: %v", err)
	}
	if appt.Provider != appointments.ProviderCalcom {
		t.Errorf("provider tag: got %s", appt.Provider)
	}
	if appt.ExternalID != "uid_42" {
		t.Errorf("external id: got %s", appt.ExternalID)
	}
	if appt.Metadata["calcom_booking_uid"] != "uid_42" {
		t.Errorf("metadata: got %v", appt.Metadata)
	}
}

func TestBookViaProviderRollsBackOnLocalFailure(t *testing.T) {
	provider := &fakeProvider{nextUID: "uid_rollback"}
	repo := &failingCreateRepo{Repository: appointments.NewInMemoryRepository(), createErr: errors.New("disk full")}
	svc := newService(&stubScheduleStore{sched: providerSchedule()}, repo, staticResolver{provider}, nil)

	res := svc.BookAppointment(context.Background(), "org_1", validRequest())
	if res.Success {
		t.Fatal("caller must never hear success when local state is unconfirmed")
	}
	if res.Message != msgGenericFailure {
		t.Errorf("expected generic failure, got %q", res.Message)
	}
	if got := provider.cancelled(); len(got) != 1 || got[0] != "uid_rollback" {
		t.Fatalf("expected rollback cancel of uid_rollback, got %v", got)
	}
}

func TestBookViaProviderRollbackFailureStillFailsCaller(t *testing.T) {
	provider := &fakeProvider{nextUID: "uid_stuck", cancelErr: errors.New("provider down")}
	repo := &failingCreateRepo{Repository: appointments.NewInMemoryRepository(), createErr: errors.New("disk full")}
	svc := newService(&stubScheduleStore{sched: providerSchedule()}, repo, staticResolver{provider}, nil)

	res := svc.BookAppointment(context.Background(), "org_1", validRequest())
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Message != msgGenericFailure {
		t.Errorf("expected generic failure, got %q", res.Message)
	}
}

func TestBookViaProviderSlotConflict(t *testing.T) {
	provider := &fakeProvider{createErr: ErrProviderSlotUnavailable}
	svc := newService(&stubScheduleStore{sched: providerSchedule()}, appointments.NewInMemoryRepository(), staticResolver{provider}, nil)

	res := svc.BookAppointment(context.Background(), "org_1", validRequest())
	if res.Success || res.Message != msgSlotTaken {
		t.Fatalf("expected slot-taken message, got success=%v %q", res.Success, res.Message)
	}
}

func TestBookViaProviderOutage(t *testing.T) {
	provider := &fakeProvider{createErr: errors.New("503")}
	svc := newService(&stubScheduleStore{sched: providerSchedule()}, appointments.NewInMemoryRepository(), staticResolver{provider}, nil)

	res := svc.BookAppointment(context.Background(), "org_1", validRequest())
	if res.Success || res.Message != msgGenericFailure {
		t.Fatalf("expected generic failure, got success=%v %q", res.Success, res.Message)
	}
}

func TestBookNotifiesOwnerWithoutBlocking(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	notifier := newRecordingNotifier()
	svc := newService(&stubScheduleStore{sched: chicagoSchedule()}, repo, nil, notifier)

	res := svc.BookAppointment(context.Background(), "org_1", validRequest())
	if !res.Success {
		t.Fatalf("expected success: %q", res.Message)
	}

	select {
	case appt := <-notifier.booked:
		if appt.AttendeeName != "Jordan Lee" {
			t.Errorf("notified wrong appointment: %+v", appt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected booked notification")
	}
}

func TestNotifierFailureDoesNotAffectOutcome(t *testing.T) {
	notifier := newRecordingNotifier()
	notifier.err = errors.New("smtp down")
	svc := newService(&stubScheduleStore{sched: chicagoSchedule()}, appointments.NewInMemoryRepository(), nil, notifier)

	res := svc.BookAppointment(context.Background(), "org_1", validRequest())
	if !res.Success {
		t.Fatalf("notification failure must not fail the booking: %q", res.Message)
	}
	<-notifier.booked
}

func TestCancelRoundTripFreesSlot(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	svc := newService(&stubScheduleStore{sched: chicagoSchedule()}, repo, nil, nil)

	booked := svc.BookAppointment(context.Background(), "org_1", validRequest())
	if !booked.Success {
		t.Fatalf("book: %q", booked.Message)
	}

	svc.now = func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }
	cancelled := svc.CancelAppointment(context.Background(), "org_1", "+15551234567", "feeling better")
	if !cancelled.Success {
		t.Fatalf("cancel: %q", cancelled.Message)
	}
	if !strings.Contains(cancelled.Message, "has been cancelled") {
		t.Errorf("cancel message: %q", cancelled.Message)
	}

	// The slot must be bookable again.
	req := validRequest()
	req.Phone = "+15559876543"
	rebooked := svc.BookAppointment(context.Background(), "org_1", req)
	if !rebooked.Success {
		t.Fatalf("slot should be free after cancellation: %q", rebooked.Message)
	}
}

func TestCancelNoUpcomingAppointment(t *testing.T) {
	svc := newService(&stubScheduleStore{sched: chicagoSchedule()}, appointments.NewInMemoryRepository(), nil, nil)
	res := svc.CancelAppointment(context.Background(), "org_1", "+15550000000", "")
	if res.Success || res.Message != msgNoUpcoming {
		t.Fatalf("expected double-check prompt, got success=%v %q", res.Success, res.Message)
	}
}

func TestCancelProviderBackedCancelsRemotelyFirst(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	provider := &fakeProvider{nextUID: "uid_77"}
	svc := newService(&stubScheduleStore{sched: providerSchedule()}, repo, staticResolver{provider}, nil)

	booked := svc.BookAppointment(context.Background(), "org_1", validRequest())
	if !booked.Success {
		t.Fatalf("book: %q", booked.Message)
	}

	svc.now = func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }
	cancelled := svc.CancelAppointment(context.Background(), "org_1", "+15551234567", "")
	if !cancelled.Success {
		t.Fatalf("cancel: %q", cancelled.Message)
	}
	if got := provider.cancelled(); len(got) != 1 || got[0] != "uid_77" {
		t.Fatalf("expected remote cancellation of uid_77, got %v", got)
	}
}

func TestCancelProviderRemoteFailureStillCancelsLocally(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	provider := &fakeProvider{nextUID: "uid_88"}
	svc := newService(&stubScheduleStore{sched: providerSchedule()}, repo, staticResolver{provider}, nil)

	booked := svc.BookAppointment(context.Background(), "org_1", validRequest())
	if !booked.Success {
		t.Fatalf("book: %q", booked.Message)
	}

	provider.cancelErr = errors.New("provider down")
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }
	cancelled := svc.CancelAppointment(context.Background(), "org_1", "+15551234567", "")
	if !cancelled.Success {
		t.Fatalf("local cancellation must proceed despite remote failure: %q", cancelled.Message)
	}

	if _, err := repo.NextUpcomingByPhone(context.Background(), "org_1", "+15551234567", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)); !errors.Is(err, appointments.ErrNotFound) {
		t.Fatal("expected appointment to be cancelled locally")
	}
}

func TestCancelBadPhone(t *testing.T) {
	svc := newService(&stubScheduleStore{sched: chicagoSchedule()}, appointments.NewInMemoryRepository(), nil, nil)
	res := svc.CancelAppointment(context.Background(), "org_1", "nope", "")
	if res.Success || res.Message != promptBadPhone {
		t.Fatalf("expected phone prompt, got success=%v %q", res.Success, res.Message)
	}
}
