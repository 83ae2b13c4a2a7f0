package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-queue-scheduling/internal/eventlog"
	"github.com/hackgods/hospital-queue-scheduling/internal/metrics"
)

const (
	EventQueueJoined     = "QUEUE_JOINED"
	EventQueueTransition = "QUEUE_STATUS_CHANGED"
)

// ErrCounterFailure means no queue number could be obtained. Callers should
// ask the patient to retry; a locally guessed number is never substituted.
var ErrCounterFailure = errors.New("queue number counter unavailable")

var ErrInvalidJoin = errors.New("invalid queue join request")

type Service struct {
	repo      Repository
	seq       Sequencer
	estimator Estimator
	events    *eventlog.Recorder
	loc       *time.Location
	log       zerolog.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone that defines a queue "day".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithEvents(r *eventlog.Recorder) Option {
	return func(s *Service) { s.events = r }
}

func NewService(repo Repository, seq Sequencer, estimator Estimator, log zerolog.Logger, opts ...Option) *Service {
	if estimator == nil {
		estimator = FixedRate{MinutesPerPatient: DefaultMinutesPerPatient}
	}
	s := &Service{
		repo:      repo,
		seq:       seq,
		estimator: estimator,
		loc:       time.UTC,
		log:       log.With().Str("component", "queue").Logger(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Day returns midnight of t's calendar day in the queue's time zone.
func (s *Service) Day(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}

// Join places a walk-in patient at the back of the department's queue.
func (s *Service) Join(ctx context.Context, req JoinRequest) (*Entry, error) {
	if req.DepartmentID == uuid.Nil {
		return nil, fmt.Errorf("%w: department_id is required", ErrInvalidJoin)
	}
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidJoin)
	}

	// Reject bad references before drawing a number so a caller's mistake
	// never leaves a gap in the day's sequence.
	if err := s.repo.CheckDepartment(ctx, req.DepartmentID); err != nil {
		return nil, fmt.Errorf("check department: %w", err)
	}
	if err := s.repo.CheckPatient(ctx, req.PatientID); err != nil {
		return nil, fmt.Errorf("check patient: %w", err)
	}
	if req.DoctorID != nil {
		if err := s.repo.CheckDoctor(ctx, *req.DoctorID); err != nil {
			return nil, fmt.Errorf("check doctor: %w", err)
		}
	}

	now := s.now()
	day := s.Day(now)

	number, err := s.seq.NextQueueNumber(ctx, req.DepartmentID, day)
	if err != nil {
		metrics.QueueCounterFailures.Inc()
		return nil, fmt.Errorf("%w: %w", ErrCounterFailure, err)
	}
	if number <= 0 {
		metrics.QueueCounterFailures.Inc()
		return nil, fmt.Errorf("%w: counter returned %d", ErrCounterFailure, number)
	}

	wait := s.estimator.EstimateWait(number)
	entry := Entry{
		ID:                   uuid.New(),
		PatientID:            req.PatientID,
		DepartmentID:         req.DepartmentID,
		DoctorID:             req.DoctorID,
		QueueNumber:          number,
		QueueDate:            day,
		Status:               StatusWaiting,
		CheckInTime:          now,
		EstimatedWaitMinutes: &wait,
	}
	if req.Reason != "" {
		reason := req.Reason
		entry.Reason = &reason
	}

	created, err := s.repo.InsertEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("insert queue entry: %w", err)
	}

	metrics.QueueJoins.Inc()
	s.log.Info().
		Str("department_id", req.DepartmentID.String()).
		Str("entry_id", created.ID.String()).
		Int("queue_number", created.QueueNumber).
		Msg("patient joined queue")

	s.events.Record(ctx, eventlog.EntityQueueEntry, created.ID, EventQueueJoined, map[string]any{
		"department_id":          req.DepartmentID.String(),
		"queue_number":           number,
		"estimated_wait_minutes": wait,
	})

	return created, nil
}

// Transition moves an entry to status to, enforcing the queue lifecycle.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status) (*Entry, error) {
	entry, err := s.repo.GetEntryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load queue entry: %w", err)
	}

	next, err := ApplyTransition(*entry, to, s.now())
	if err != nil {
		metrics.QueueTransitions.WithLabelValues(string(to), "rejected").Inc()
		return nil, err
	}

	updated, err := s.repo.UpdateEntryStatus(ctx, entry.Status, next)
	if err != nil {
		if errors.Is(err, ErrStaleEntry) {
			metrics.QueueTransitions.WithLabelValues(string(to), "conflict").Inc()
		}
		return nil, fmt.Errorf("update queue entry: %w", err)
	}

	metrics.QueueTransitions.WithLabelValues(string(to), "ok").Inc()
	s.events.Record(ctx, eventlog.EntityQueueEntry, updated.ID, EventQueueTransition, map[string]any{
		"from": string(entry.Status),
		"to":   string(to),
	})

	return updated, nil
}

// Board returns today's live queue for a department.
func (s *Service) Board(ctx context.Context, departmentID uuid.UUID) (Board, error) {
	entries, err := s.repo.ListActiveEntries(ctx, departmentID, s.Day(s.now()))
	if err != nil {
		return Board{}, fmt.Errorf("list active queue entries: %w", err)
	}
	return PartitionByStatus(entries), nil
}
