package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEntryNotFound      = errors.New("queue entry not found")
	ErrPatientNotFound    = errors.New("patient not found")
	ErrDepartmentNotFound = errors.New("department not found")
	ErrDoctorNotFound     = errors.New("doctor not found")
	// ErrStaleEntry is returned when a guarded update finds the entry no longer
	// in the expected state, i.e. another caller moved it first.
	ErrStaleEntry = errors.New("queue entry changed concurrently")
)

// Sequencer hands out queue numbers. Implementations must be atomic across
// processes: two callers for the same department and day never get the same
// number.
type Sequencer interface {
	NextQueueNumber(ctx context.Context, departmentID uuid.UUID, day time.Time) (int, error)
}

// Repository contains all DB interactions needed by the queue service.
type Repository interface {
	// Reference checks, run before a queue number is drawn. Each returns the
	// matching not-found error when the row is missing or inactive.
	CheckPatient(ctx context.Context, id uuid.UUID) error
	CheckDepartment(ctx context.Context, id uuid.UUID) error
	CheckDoctor(ctx context.Context, id uuid.UUID) error

	InsertEntry(ctx context.Context, e Entry) (*Entry, error)
	GetEntryByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// UpdateEntryStatus persists next only if the row is still in state from.
	UpdateEntryStatus(ctx context.Context, from Status, next Entry) (*Entry, error)

	// ListActiveEntries returns waiting/called/serving entries for the day,
	// ordered by queue number.
	ListActiveEntries(ctx context.Context, departmentID uuid.UUID, day time.Time) ([]Entry, error)
}
