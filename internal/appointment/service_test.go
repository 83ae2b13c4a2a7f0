package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-queue-scheduling/internal/config"
	redisclient "github.com/hackgods/hospital-queue-scheduling/internal/redis"
	"github.com/hackgods/hospital-queue-scheduling/internal/slot"
)

type memRepo struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]Patient
	doctors      map[uuid.UUID]Doctor
	rules        map[uuid.UUID]map[int]ScheduleRule
	timeOff      []TimeOff
	appointments map[uuid.UUID]Appointment
}

func newMemRepo() *memRepo {
	return &memRepo{
		patients:     make(map[uuid.UUID]Patient),
		doctors:      make(map[uuid.UUID]Doctor),
		rules:        make(map[uuid.UUID]map[int]ScheduleRule),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (r *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *memRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *memRepo) ListActiveRules(_ context.Context, doctorID uuid.UUID) ([]ScheduleRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ScheduleRule
	for _, rule := range r.rules[doctorID] {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *memRepo) UpsertRule(_ context.Context, doctorID uuid.UUID, rule slot.WeeklyRule) (*ScheduleRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rules[doctorID] == nil {
		r.rules[doctorID] = make(map[int]ScheduleRule)
	}
	existing, ok := r.rules[doctorID][rule.DayOfWeek]
	id := uuid.New()
	if ok {
		id = existing.ID
	}
	saved := ScheduleRule{ID: id, DoctorID: doctorID, WeeklyRule: rule}
	r.rules[doctorID][rule.DayOfWeek] = saved
	return &saved, nil
}

func (r *memRepo) DeactivateRule(_ context.Context, doctorID uuid.UUID, dayOfWeek int) (*ScheduleRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[doctorID][dayOfWeek]
	if !ok {
		return nil, ErrRuleNotFound
	}
	rule.IsActive = false
	r.rules[doctorID][dayOfWeek] = rule
	return &rule, nil
}

func (r *memRepo) InsertTimeOff(_ context.Context, t TimeOff) (*TimeOff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeOff = append(r.timeOff, t)
	return &t, nil
}

func (r *memRepo) ListTimeOff(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeOff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TimeOff
	for _, t := range r.timeOff {
		if t.DoctorID == doctorID && t.Start.Before(to) && t.End.After(from) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memRepo) ListOccupyingAppointments(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.AppointmentDate.Equal(date) && a.Status.Occupies() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepo) ListAppointments(_ context.Context, f ListFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *memRepo) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.appointments {
		if b.DoctorID == a.DoctorID && b.AppointmentDate.Equal(a.AppointmentDate) && b.StartTime == a.StartTime && b.Status.Occupies() {
			return nil, ErrSlotAlreadyBooked
		}
	}
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, notes *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	if notes != nil {
		a.Notes = notes
	}
	r.appointments[id] = a
	return &a, nil
}

// memLocker mimics the Redis SETNX lock within one process.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *memLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	l.mu.Lock()
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[key] {
		l.mu.Unlock()
		return redisclient.ErrLockNotAcquired
	}
	l.held[key] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()
	return fn(ctx)
}

// keyRecorder wraps a locker and remembers every key it was asked for.
type keyRecorder struct {
	Locker redisclient.Locker
	mu     sync.Mutex
	keys   []string
}

func (k *keyRecorder) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	k.mu.Lock()
	k.keys = append(k.keys, key)
	k.mu.Unlock()
	return k.Locker.WithLock(ctx, key, fn)
}

type fixture struct {
	svc     *Service
	repo    *memRepo
	doctor  uuid.UUID
	patient uuid.UUID
}

// monday is 2024-01-15.
var monday = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := newMemRepo()
	dept := uuid.New()
	doctor := Doctor{ID: uuid.New(), Name: "Dr. Rao", DepartmentID: &dept, IsActive: true}
	patient := Patient{ID: uuid.New(), Name: "Ana"}
	repo.doctors[doctor.ID] = doctor
	repo.patients[patient.ID] = patient

	svc := NewService(repo, &memLocker{}, config.Config{Location: time.UTC, DefaultSlotMinutes: 30}, nil, zerolog.Nop())

	_, err := svc.UpsertRule(context.Background(), doctor.ID, slot.WeeklyRule{
		DayOfWeek: 1, StartTime: "09:00:00", EndTime: "10:10:00", SlotDurationMinutes: 30, IsActive: true,
	})
	require.NoError(t, err)

	return fixture{svc: svc, repo: repo, doctor: doctor.ID, patient: patient.ID}
}

func TestAvailableSlots_FullGrid(t *testing.T) {
	f := newFixture(t)

	slots, err := f.svc.AvailableSlots(context.Background(), f.doctor, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30"}, slots)
}

func TestAvailableSlots_NoRuleForDay(t *testing.T) {
	f := newFixture(t)

	slots, err := f.svc.AvailableSlots(context.Background(), f.doctor, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestBook_RemovesSlotFromAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "09:30", Reason: "checkup"})
	require.NoError(t, err)
	assert.Equal(t, "09:30", appt.StartTime)
	assert.Equal(t, "10:00", appt.EndTime)
	assert.Equal(t, StatusScheduled, appt.Status)
	require.NotNil(t, appt.DepartmentID, "department falls back to the doctor's")

	slots, err := f.svc.AvailableSlots(ctx, f.doctor, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, slots)

	_, err = f.svc.Book(ctx, BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "09:30"})
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
}

func TestBook_CancelledAppointmentFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "09:00"})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, StatusCancelled, nil)
	require.NoError(t, err)

	slots, err := f.svc.AvailableSlots(ctx, f.doctor, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30"}, slots)
}

func TestBook_RejectsOffGridStart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "09:15"})
	assert.ErrorIs(t, err, ErrNotASlot)

	_, err = f.svc.Book(context.Background(), BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "10:00"})
	assert.ErrorIs(t, err, ErrNotASlot, "partial trailing slot is not bookable")
}

func TestBook_RejectsMalformedStart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "nine"})
	assert.ErrorIs(t, err, slot.ErrMalformedTime)
}

func TestBook_NoRule(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday.AddDate(0, 0, 2), StartTime: "09:00"})
	assert.ErrorIs(t, err, ErrNoAvailability)
}

func TestBook_UnknownPatient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), BookRequest{PatientID: uuid.New(), DoctorID: f.doctor, Date: monday, StartTime: "09:00"})
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestBook_TimeOffBlocksSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddTimeOff(ctx, TimeOff{
		DoctorID: f.doctor,
		Start:    monday.Add(9*time.Hour + 40*time.Minute),
		End:      monday.Add(11 * time.Hour),
	})
	require.NoError(t, err)

	slots, err := f.svc.AvailableSlots(ctx, f.doctor, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, slots)

	_, err = f.svc.Book(ctx, BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "09:30"})
	assert.ErrorIs(t, err, ErrDoctorUnavailable)
}

func TestAddTimeOff_RejectsInvertedRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddTimeOff(context.Background(), TimeOff{DoctorID: f.doctor, Start: monday.Add(time.Hour), End: monday})
	assert.ErrorIs(t, err, ErrInvalidTimeOff)
}

func TestBook_ConcurrentSameSlotOneWinner(t *testing.T) {
	f := newFixture(t)
	const n = 20

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Book(context.Background(), BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "09:00"})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.True(t, isConflict(err), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func isConflict(err error) bool {
	return errors.Is(err, ErrSlotAlreadyBooked) || errors.Is(err, ErrSlotBeingBooked)
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "09:00"})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, StatusCompleted, nil)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, StatusCheckedIn, nil)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, appt.ID, StatusInProgress, nil)
	require.NoError(t, err)

	notes := "prescribed rest"
	done, err := f.svc.UpdateStatus(ctx, appt.ID, StatusCompleted, &notes)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.Notes)
	assert.Equal(t, notes, *done.Notes)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, StatusCancelled, nil)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestUpsertRule_KeyedOnDoctorAndDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpsertRule(ctx, f.doctor, slot.WeeklyRule{DayOfWeek: 1, StartTime: "13:00", EndTime: "14:00", IsActive: true})
	require.NoError(t, err)

	rules, err := f.svc.ListRules(ctx, f.doctor)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "13:00", rules[0].StartTime)
	assert.Equal(t, 30, rules[0].SlotDurationMinutes, "default slot length applied")

	slots, err := f.svc.AvailableSlots(ctx, f.doctor, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"13:00", "13:30"}, slots)
}

func TestUpsertRule_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpsertRule(context.Background(), f.doctor, slot.WeeklyRule{DayOfWeek: 2, StartTime: "14:00", EndTime: "13:00", IsActive: true})
	assert.Error(t, err)

	_, err = f.svc.UpsertRule(context.Background(), uuid.New(), slot.WeeklyRule{DayOfWeek: 2, StartTime: "09:00", EndTime: "13:00", IsActive: true})
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestDeactivateRule_EmptiesSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.DeactivateRule(ctx, f.doctor, 1)
	require.NoError(t, err)

	slots, err := f.svc.AvailableSlots(ctx, f.doctor, monday)
	require.NoError(t, err)
	assert.Empty(t, slots)

	_, err = f.svc.DeactivateRule(ctx, f.doctor, 5)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestListAppointments_ClampsLimit(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListAppointments(context.Background(), ListFilter{Limit: 1000, Offset: -3})
	assert.NoError(t, err)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusScheduled, StatusNoShow))
	assert.False(t, CanTransition(StatusCompleted, StatusScheduled))
	assert.False(t, CanTransition(StatusCancelled, StatusScheduled))
	assert.False(t, CanTransition(StatusScheduled, StatusCompleted))
}

func TestBook_OverlappingWindowAfterDurationChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "09:00"})
	require.NoError(t, err)

	// Shift the grid so 09:15-09:45 overlaps the booked 09:00-09:30.
	_, err = f.svc.UpsertRule(ctx, f.doctor, slot.WeeklyRule{
		DayOfWeek: 1, StartTime: "09:15", EndTime: "10:15", SlotDurationMinutes: 30, IsActive: true,
	})
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "09:15"})
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	slots, err := f.svc.AvailableSlots(ctx, f.doctor, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:45"}, slots)
}

func TestBook_LockCoversWholeDoctorDay(t *testing.T) {
	f := newFixture(t)
	rec := &keyRecorder{Locker: &memLocker{}}
	f.svc.locker = rec
	ctx := context.Background()

	_, err := f.svc.Book(ctx, BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "09:00"})
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, BookRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "09:30"})
	require.NoError(t, err)

	require.Len(t, rec.keys, 2)
	assert.Equal(t, rec.keys[0], rec.keys[1], "different starts on one day share a lock")
	assert.Equal(t, redisclient.BookingLockKey(f.doctor, "2024-01-15"), rec.keys[0])
}
