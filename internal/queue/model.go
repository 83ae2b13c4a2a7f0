package queue

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCalled    Status = "called"
	StatusServing   Status = "serving"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ActiveStatuses are the states shown on the live board.
var ActiveStatuses = []Status{StatusWaiting, StatusCalled, StatusServing}

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusCalled, StatusServing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Entry struct {
	ID                   uuid.UUID
	PatientID            uuid.UUID
	DepartmentID         uuid.UUID
	DoctorID             *uuid.UUID
	QueueNumber          int
	QueueDate            time.Time
	Status               Status
	CheckInTime          time.Time
	CalledTime           *time.Time
	CompletedTime        *time.Time
	Reason               *string
	EstimatedWaitMinutes *int
	CreatedAt            time.Time
}

type JoinRequest struct {
	DepartmentID uuid.UUID
	PatientID    uuid.UUID
	DoctorID     *uuid.UUID
	Reason       string
}

// Board is the live view of a department's queue.
type Board struct {
	Waiting []Entry
	Called  []Entry
	Serving []Entry
}
