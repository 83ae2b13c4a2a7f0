package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-queue-scheduling/internal/config"
	"github.com/hackgods/hospital-queue-scheduling/internal/eventlog"
	"github.com/hackgods/hospital-queue-scheduling/internal/metrics"
	redisclient "github.com/hackgods/hospital-queue-scheduling/internal/redis"
	"github.com/hackgods/hospital-queue-scheduling/internal/slot"
)

const (
	EventAppointmentBooked        = "APPOINTMENT_BOOKED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventScheduleRuleUpserted     = "SCHEDULE_RULE_UPSERTED"
	EventScheduleRuleDeactivated  = "SCHEDULE_RULE_DEACTIVATED"
)

var (
	ErrNoAvailability          = errors.New("doctor has no active schedule on that day")
	ErrNotASlot                = errors.New("requested time is not a slot boundary")
	ErrDoctorUnavailable       = errors.New("doctor is on time off at the requested time")
	ErrSlotAlreadyBooked       = errors.New("slot already has an appointment")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidTimeOff          = errors.New("time off must end after it starts")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	events *eventlog.Recorder
	log    zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, events *eventlog.Recorder, log zerolog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultSlotMinutes <= 0 {
		cfg.DefaultSlotMinutes = slot.DefaultSlotMinutes
	}
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		events: events,
		log:    log.With().Str("component", "appointment").Logger(),
	}
}

func weeklyRules(rules []ScheduleRule) []slot.WeeklyRule {
	out := make([]slot.WeeklyRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.WeeklyRule)
	}
	return out
}

// busyIntervals collects the parts of date already taken by appointments or
// by doctor time off.
func (s *Service) busyIntervals(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]slot.Interval, error) {
	booked, err := s.repo.ListOccupyingAppointments(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list booked appointments: %w", err)
	}

	var busy []slot.Interval
	for _, a := range booked {
		iv, err := slot.ParseInterval(a.StartTime, a.EndTime)
		if err != nil {
			return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
		}
		busy = append(busy, iv)
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.cfg.Location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	offs, err := s.repo.ListTimeOff(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list time off: %w", err)
	}
	for _, t := range offs {
		busy = append(busy, clipToDay(t, dayStart, dayEnd))
	}

	return busy, nil
}

func clipToDay(t TimeOff, dayStart, dayEnd time.Time) slot.Interval {
	start, end := t.Start, t.End
	if start.Before(dayStart) {
		start = dayStart
	}
	if end.After(dayEnd) {
		end = dayEnd
	}
	return slot.Interval{
		Start: slot.Clock(start.Sub(dayStart) / time.Minute),
		End:   slot.Clock((end.Sub(dayStart) + time.Minute - 1) / time.Minute),
	}
}

// AvailableSlots returns the doctor's free slot start times on date: the
// weekly grid minus booked appointments and time off.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	start := time.Now()
	defer func() { metrics.SlotQueryDuration.Observe(time.Since(start).Seconds()) }()

	rules, err := s.repo.ListActiveRules(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load schedule rules: %w", err)
	}

	weekly := weeklyRules(rules)
	grid, err := slot.GenerateSlots(weekly, date)
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return grid, nil
	}

	rule, _ := slot.RuleForDate(weekly, date)
	busy, err := s.busyIntervals(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	return slot.FilterAvailable(grid, rule.Duration(), busy)
}

// Book reserves a slot for a patient. A distributed lock keyed on the doctor
// and date serialises competing requests for any of that day's slots; the
// unique index on appointments catches anything that slips past it.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	doctor, err := s.repo.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	start, err := slot.ParseClock(req.StartTime)
	if err != nil {
		return nil, err
	}

	rules, err := s.repo.ListActiveRules(ctx, req.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load schedule rules: %w", err)
	}
	rule, ok := slot.RuleForDate(weeklyRules(rules), req.Date)
	if !ok {
		return nil, ErrNoAvailability
	}
	isSlot, err := slot.IsSlotStart(rule, start.String())
	if err != nil {
		return nil, err
	}
	if !isSlot {
		return nil, ErrNotASlot
	}

	end, err := slot.ComputeEndTime(start.String(), rule.Duration())
	if err != nil {
		return nil, err
	}
	window := slot.Interval{Start: start, End: start.Add(rule.Duration())}

	departmentID := req.DepartmentID
	if departmentID == nil {
		departmentID = doctor.DepartmentID
	}

	date := slot.FormatDate(req.Date)
	var created *Appointment

	err = s.locker.WithLock(ctx, redisclient.BookingLockKey(req.DoctorID, date), func(lockCtx context.Context) error {
		// Re-check inside the critical section.
		busy, err := s.busyIntervals(lockCtx, req.DoctorID, req.Date)
		if err != nil {
			return err
		}
		free, err := slot.FilterAvailable([]string{start.String()}, rule.Duration(), busy)
		if err != nil {
			return err
		}
		if len(free) == 0 {
			return s.conflictReason(lockCtx, req.DoctorID, req.Date, window)
		}

		appt := Appointment{
			ID:              uuid.New(),
			PatientID:       req.PatientID,
			DoctorID:        req.DoctorID,
			DepartmentID:    departmentID,
			AppointmentDate: req.Date,
			StartTime:       start.String(),
			EndTime:         end,
			Status:          StatusScheduled,
		}
		if req.Reason != "" {
			reason := req.Reason
			appt.Reason = &reason
		}

		c, err := s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			if errors.Is(err, ErrSlotAlreadyBooked) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		created = c

		s.events.Record(lockCtx, eventlog.EntityAppointment, c.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  req.DoctorID.String(),
			"patient_id": req.PatientID.String(),
			"date":       date,
			"start_time": c.StartTime,
			"end_time":   c.EndTime,
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			metrics.Bookings.WithLabelValues("lock_busy").Inc()
			return nil, ErrSlotBeingBooked
		}
		metrics.Bookings.WithLabelValues("rejected").Inc()
		return nil, err
	}

	metrics.Bookings.WithLabelValues("ok").Inc()
	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", req.DoctorID.String()).
		Str("date", date).
		Str("start_time", created.StartTime).
		Msg("appointment booked")

	return created, nil
}

// conflictReason tells apart a booked slot from one blocked by time off.
func (s *Service) conflictReason(ctx context.Context, doctorID uuid.UUID, date time.Time, window slot.Interval) error {
	booked, err := s.repo.ListOccupyingAppointments(ctx, doctorID, date)
	if err != nil {
		return fmt.Errorf("list booked appointments: %w", err)
	}
	var taken []slot.Interval
	for _, a := range booked {
		iv, err := slot.ParseInterval(a.StartTime, a.EndTime)
		if err != nil {
			return fmt.Errorf("appointment %s: %w", a.ID, err)
		}
		taken = append(taken, iv)
	}
	free, err := slot.FilterAvailable([]string{window.Start.String()}, int(window.End-window.Start), taken)
	if err != nil {
		return err
	}
	if len(free) == 0 {
		return ErrSlotAlreadyBooked
	}
	return ErrDoctorUnavailable
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	if f.Limit <= 0 {
		f.Limit = 20 // default
	}
	if f.Limit > 100 {
		f.Limit = 100 // max
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	appts, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// UpdateStatus moves an appointment along its lifecycle. Cancellation is a
// status; appointments are never deleted.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus, notes *string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !CanTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, to)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to, notes)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The row exists, so the guard on the old status failed.
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidStatusTransition)
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.events.Record(ctx, eventlog.EntityAppointment, updated.ID, EventAppointmentStatusChanged, map[string]any{
		"from": string(appt.Status),
		"to":   string(to),
	})

	return updated, nil
}

func (s *Service) ListRules(ctx context.Context, doctorID uuid.UUID) ([]ScheduleRule, error) {
	rules, err := s.repo.ListActiveRules(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list schedule rules: %w", err)
	}
	return rules, nil
}

// UpsertRule creates or replaces the doctor's rule for rule.DayOfWeek.
func (s *Service) UpsertRule(ctx context.Context, doctorID uuid.UUID, rule slot.WeeklyRule) (*ScheduleRule, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	if rule.SlotDurationMinutes == 0 {
		rule.SlotDurationMinutes = s.cfg.DefaultSlotMinutes
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	// Store canonical HH:MM.
	start, _ := slot.ParseClock(rule.StartTime)
	end, _ := slot.ParseClock(rule.EndTime)
	rule.StartTime, rule.EndTime = start.String(), end.String()

	saved, err := s.repo.UpsertRule(ctx, doctorID, rule)
	if err != nil {
		return nil, fmt.Errorf("upsert schedule rule: %w", err)
	}

	s.events.Record(ctx, eventlog.EntityWeeklyRule, saved.ID, EventScheduleRuleUpserted, map[string]any{
		"doctor_id":   doctorID.String(),
		"day_of_week": rule.DayOfWeek,
		"start_time":  rule.StartTime,
		"end_time":    rule.EndTime,
		"active":      rule.IsActive,
	})

	return saved, nil
}

// DeactivateRule clears the active flag; history is kept.
func (s *Service) DeactivateRule(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*ScheduleRule, error) {
	saved, err := s.repo.DeactivateRule(ctx, doctorID, dayOfWeek)
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("deactivate schedule rule: %w", err)
	}

	s.events.Record(ctx, eventlog.EntityWeeklyRule, saved.ID, EventScheduleRuleDeactivated, map[string]any{
		"doctor_id":   doctorID.String(),
		"day_of_week": dayOfWeek,
	})

	return saved, nil
}

func (s *Service) AddTimeOff(ctx context.Context, t TimeOff) (*TimeOff, error) {
	if !t.End.After(t.Start) {
		return nil, ErrInvalidTimeOff
	}
	if _, err := s.repo.GetDoctorByID(ctx, t.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	t.ID = uuid.New()
	saved, err := s.repo.InsertTimeOff(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("insert time off: %w", err)
	}
	return saved, nil
}
