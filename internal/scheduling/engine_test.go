package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclinic/booking-platform/internal/calendar"
)

// fakeStore is an in-memory Store for engine tests. It reproduces the
// postgres implementation's conflict semantics without a database.
type fakeStore struct {
	patients     map[uuid.UUID]PatientRef
	services     map[uuid.UUID]*ServiceType
	hours        map[string]*BusinessHour
	blocked      []*BlockedSlot
	appointments []*Appointment

	createErr error
	syncCalls []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		patients: make(map[uuid.UUID]PatientRef),
		services: make(map[uuid.UUID]*ServiceType),
		hours:    make(map[string]*BusinessHour),
	}
}

func (f *fakeStore) PatientByID(_ context.Context, id uuid.UUID) (PatientRef, error) {
	p, ok := f.patients[id]
	if !ok {
		return PatientRef{}, ErrPatientNotFound
	}
	return p, nil
}

func (f *fakeStore) ServiceTypeByID(_ context.Context, id uuid.UUID) (*ServiceType, error) {
	s, ok := f.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return s, nil
}

func (f *fakeStore) ListServiceTypes(_ context.Context) ([]*ServiceType, error) {
	out := make([]*ServiceType, 0, len(f.services))
	for _, s := range f.services {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) BusinessHourByWeekday(_ context.Context, weekday string) (*BusinessHour, error) {
	return f.hours[weekday], nil
}

func (f *fakeStore) BlockedSlotsByDate(_ context.Context, date time.Time) ([]*BlockedSlot, error) {
	var out []*BlockedSlot
	for _, b := range f.blocked {
		if SameDate(b.Date, date) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) AppointmentsByDate(_ context.Context, date time.Time) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range f.appointments {
		if a.Status != StatusCancelled && SameDate(a.Date, date) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) AppointmentsByPatient(_ context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range f.appointments {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) AppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	for _, a := range f.appointments {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (f *fakeStore) CreateAppointment(_ context.Context, appt *Appointment) error {
	if f.createErr != nil {
		return f.createErr
	}
	requested := appt.Interval()
	for _, existing := range f.appointments {
		if existing.Status != StatusCancelled && SameDate(existing.Date, appt.Date) && requested.Overlaps(existing.Interval()) {
			return ErrSlotConflict
		}
	}
	for _, block := range f.blocked {
		if SameDate(block.Date, appt.Date) && requested.Overlaps(block.Interval()) {
			return ErrSlotBlocked
		}
	}
	appt.ID = uuid.New()
	appt.CreatedAt = time.Now().UTC()
	f.appointments = append(f.appointments, appt)
	return nil
}

func (f *fakeStore) CancelAppointment(_ context.Context, id uuid.UUID) error {
	for _, a := range f.appointments {
		if a.ID == id {
			a.Status = StatusCancelled
			return nil
		}
	}
	return ErrAppointmentNotFound
}

func (f *fakeStore) UpdateAppointmentSync(_ context.Context, id uuid.UUID, externalID, syncStatus string) error {
	f.syncCalls = append(f.syncCalls, syncStatus)
	for _, a := range f.appointments {
		if a.ID == id {
			a.ExternalCalendarID = externalID
			a.SyncStatus = syncStatus
		}
	}
	return nil
}

// fakeCalendar is a scriptable calendar.Source.
type fakeCalendar struct {
	busy      []calendar.BusyInterval
	busyErr   error
	createID  string
	createErr error
	deleted   []string
}

func (f *fakeCalendar) BusyIntervals(_ context.Context, _ time.Time) ([]calendar.BusyInterval, error) {
	if f.busyErr != nil {
		return nil, f.busyErr
	}
	return f.busy, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, _ string, _, _ time.Time) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createID, nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

// Tuesday 2026-09-01, fixed clock at 08:00 UTC that morning.
var (
	testDate = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	testNow  = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
)

type engineFixture struct {
	store     *fakeStore
	cal       *fakeCalendar
	engine    *Engine
	patientID uuid.UUID
	serviceID uuid.UUID
}

func newEngineFixture(t *testing.T, now time.Time) *engineFixture {
	t.Helper()
	store := newFakeStore()
	cal := &fakeCalendar{createID: "evt-1"}

	patientID := uuid.New()
	store.patients[patientID] = PatientRef{ID: patientID, FullName: "Jane Roe", Email: "jane@example.com"}

	serviceID := uuid.New()
	store.services[serviceID] = &ServiceType{ID: serviceID, Name: "Consultation", DurationMinutes: 30, Active: true}

	store.hours["Tuesday"] = &BusinessHour{DayOfWeek: "Tuesday", OpenTime: tod(9, 0), CloseTime: tod(17, 0)}

	engine := NewEngine(EngineConfig{
		Store:    store,
		Calendar: cal,
		Now:      func() time.Time { return now },
	})
	return &engineFixture{store: store, cal: cal, engine: engine, patientID: patientID, serviceID: serviceID}
}

func TestListAvailableSlotsFullDay(t *testing.T) {
	f := newEngineFixture(t, testNow)

	slots, err := f.engine.ListAvailableSlots(context.Background(), testDate, f.serviceID)
	require.NoError(t, err)

	require.Len(t, slots, 31)
	assert.Equal(t, NewTimeOfDay(9, 0), slots[0].StartTime)
	assert.Equal(t, NewTimeOfDay(16, 30), slots[len(slots)-1].StartTime)
}

func TestListAvailableSlotsClosedDayIsEmptyNotError(t *testing.T) {
	f := newEngineFixture(t, testNow)
	f.store.hours["Tuesday"].IsClosed = true

	slots, err := f.engine.ListAvailableSlots(context.Background(), testDate, f.serviceID)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// Unconfigured weekday behaves the same.
	delete(f.store.hours, "Tuesday")
	slots, err = f.engine.ListAvailableSlots(context.Background(), testDate, f.serviceID)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestListAvailableSlotsUnknownService(t *testing.T) {
	f := newEngineFixture(t, testNow)

	_, err := f.engine.ListAvailableSlots(context.Background(), testDate, uuid.New())
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestListAvailableSlotsLeadTimeSameDayOnly(t *testing.T) {
	// 10:20 same day: slots starting before 11:20 are filtered.
	f := newEngineFixture(t, time.Date(2026, 9, 1, 10, 20, 0, 0, time.UTC))

	slots, err := f.engine.ListAvailableSlots(context.Background(), testDate, f.serviceID)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, NewTimeOfDay(11, 30), slots[0].StartTime)

	// A future date is not constrained by the clock at all.
	future := testDate.AddDate(0, 0, 7)
	slots, err = f.engine.ListAvailableSlots(context.Background(), future, f.serviceID)
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(9, 0), slots[0].StartTime)
}

func TestListAvailableSlotsExcludesBookedAndBlocked(t *testing.T) {
	f := newEngineFixture(t, testNow)
	f.store.appointments = append(f.store.appointments, &Appointment{
		ID: uuid.New(), Date: testDate, Status: StatusPending,
		StartTime: NewTimeOfDay(10, 0), EndTime: NewTimeOfDay(10, 30),
	})
	f.store.blocked = append(f.store.blocked, &BlockedSlot{
		ID: uuid.New(), Date: testDate, Reason: "lunch",
		StartTime: NewTimeOfDay(12, 0), EndTime: NewTimeOfDay(13, 0),
	})

	slots, err := f.engine.ListAvailableSlots(context.Background(), testDate, f.serviceID)
	require.NoError(t, err)

	for _, slot := range slots {
		candidate := Interval{Start: slot.StartTime, End: slot.EndTime}
		assert.False(t, candidate.Overlaps(Interval{NewTimeOfDay(10, 0), NewTimeOfDay(10, 30)}), "overlaps booking: %s", slot.StartTime)
		assert.False(t, candidate.Overlaps(Interval{NewTimeOfDay(12, 0), NewTimeOfDay(13, 0)}), "overlaps block: %s", slot.StartTime)
	}
	// 9:45-10:15 and 10:15-10:45 are gone along with 10:00; lunch removes
	// 11:45 through 12:45 starts.
	starts := make(map[TimeOfDay]bool, len(slots))
	for _, s := range slots {
		starts[s.StartTime] = true
	}
	assert.False(t, starts[NewTimeOfDay(9, 45)])
	assert.False(t, starts[NewTimeOfDay(10, 15)])
	assert.True(t, starts[NewTimeOfDay(10, 30)])
	assert.False(t, starts[NewTimeOfDay(12, 45)])
	assert.True(t, starts[NewTimeOfDay(13, 0)])
}

func TestListAvailableSlotsCancelledFreesSlot(t *testing.T) {
	f := newEngineFixture(t, testNow)
	appt := &Appointment{
		ID: uuid.New(), PatientID: f.patientID, Date: testDate, Status: StatusPending,
		StartTime: NewTimeOfDay(10, 0), EndTime: NewTimeOfDay(10, 30),
	}
	f.store.appointments = append(f.store.appointments, appt)

	_, err := f.engine.CancelAppointment(context.Background(), appt.ID)
	require.NoError(t, err)

	slots, err := f.engine.ListAvailableSlots(context.Background(), testDate, f.serviceID)
	require.NoError(t, err)
	starts := make(map[TimeOfDay]bool, len(slots))
	for _, s := range slots {
		starts[s.StartTime] = true
	}
	assert.True(t, starts[NewTimeOfDay(10, 0)])
}

func TestBookAppointment(t *testing.T) {
	f := newEngineFixture(t, testNow)

	appt, err := f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(10, 0))
	require.NoError(t, err)

	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, NewTimeOfDay(10, 30), appt.EndTime)
	assert.Equal(t, SyncSynced, appt.SyncStatus)
	assert.Equal(t, "evt-1", appt.ExternalCalendarID)
	assert.NotEqual(t, uuid.Nil, appt.ID)
}

func TestBookAppointmentLeadTime(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC))

	_, err := f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(10, 0))
	assert.ErrorIs(t, err, ErrLeadTimeViolation)

	// 10:30 is exactly one hour out and allowed.
	_, err = f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(10, 30))
	assert.NoError(t, err)
}

func TestBookAppointmentConflict(t *testing.T) {
	f := newEngineFixture(t, testNow)

	_, err := f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(10, 0))
	require.NoError(t, err)

	// Staggered overlap with the committed 10:00-10:30 booking.
	_, err = f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(10, 15))
	assert.ErrorIs(t, err, ErrSlotConflict)

	// Back-to-back is fine.
	_, err = f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(10, 30))
	assert.NoError(t, err)
}

func TestBookAppointmentBlockedSlot(t *testing.T) {
	f := newEngineFixture(t, testNow)
	f.store.blocked = append(f.store.blocked, &BlockedSlot{
		ID: uuid.New(), Date: testDate, Reason: "maintenance",
		StartTime: NewTimeOfDay(12, 0), EndTime: NewTimeOfDay(13, 0),
	})

	_, err := f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(12, 45))
	assert.ErrorIs(t, err, ErrSlotBlocked)
}

func TestBookAppointmentOutsideBusinessHours(t *testing.T) {
	f := newEngineFixture(t, testNow)

	// 16:45 + 30m spills past the 17:00 close.
	_, err := f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(16, 45))
	assert.ErrorIs(t, err, ErrSlotBlocked)

	_, err = f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(8, 0))
	assert.ErrorIs(t, err, ErrSlotBlocked)
}

func TestBookAppointmentExternalConflict(t *testing.T) {
	f := newEngineFixture(t, testNow)
	f.cal.busy = []calendar.BusyInterval{{
		Start: time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC),
	}}

	_, err := f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(14, 30))
	assert.ErrorIs(t, err, ErrExternalCalendarConflict)
}

func TestBookAppointmentCalendarFetchFailureFailsOpen(t *testing.T) {
	f := newEngineFixture(t, testNow)
	f.cal.busyErr = errors.New("calendar API down")

	appt, err := f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(10, 0))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
}

func TestBookAppointmentMirrorFailureFlagsSync(t *testing.T) {
	f := newEngineFixture(t, testNow)
	f.cal.createErr = errors.New("calendar insert failed")

	appt, err := f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(10, 0))
	require.NoError(t, err)

	assert.Equal(t, SyncFailed, appt.SyncStatus)
	assert.Empty(t, appt.ExternalCalendarID)
	assert.Contains(t, f.store.syncCalls, SyncFailed)
}

func TestBookAppointmentUnknownPatient(t *testing.T) {
	f := newEngineFixture(t, testNow)

	_, err := f.engine.BookAppointment(context.Background(), uuid.New(), f.serviceID, testDate, NewTimeOfDay(10, 0))
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestCancelAppointment(t *testing.T) {
	f := newEngineFixture(t, testNow)
	appt, err := f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(10, 0))
	require.NoError(t, err)

	cancelled, err := f.engine.CancelAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, []string{"evt-1"}, f.cal.deleted)

	// Idempotent: a second cancel is a no-op, not an error.
	again, err := f.engine.CancelAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, again.Status)
	assert.Len(t, f.cal.deleted, 1)
}

func TestCancelAppointmentNotFound(t *testing.T) {
	f := newEngineFixture(t, testNow)

	_, err := f.engine.CancelAppointment(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestListAppointmentsForPatient(t *testing.T) {
	f := newEngineFixture(t, testNow)
	_, err := f.engine.BookAppointment(context.Background(), f.patientID, f.serviceID, testDate, NewTimeOfDay(10, 0))
	require.NoError(t, err)

	appts, err := f.engine.ListAppointmentsForPatient(context.Background(), f.patientID)
	require.NoError(t, err)
	assert.Len(t, appts, 1)

	_, err = f.engine.ListAppointmentsForPatient(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrPatientNotFound)
}
