package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-queue-scheduling/internal/slot"
)

type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusCheckedIn  AppointmentStatus = "checked_in"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCheckedIn, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Occupies reports whether an appointment in this status still holds its slot.
func (s AppointmentStatus) Occupies() bool {
	return s != StatusCancelled && s != StatusNoShow
}

var statusTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled:  {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID             uuid.UUID
	Name           string
	DepartmentID   *uuid.UUID
	Specialization *string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ScheduleRule is a stored weekly availability rule for one doctor.
type ScheduleRule struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	slot.WeeklyRule
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TimeOff struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Start     time.Time
	End       time.Time
	Reason    *string
	CreatedAt time.Time
}

type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	DepartmentID    *uuid.UUID
	AppointmentDate time.Time
	StartTime       string
	EndTime         string
	Status          AppointmentStatus
	Reason          *string
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type BookRequest struct {
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	DepartmentID *uuid.UUID
	Date         time.Time
	StartTime    string
	Reason       string
}

type ListFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Date      *time.Time
	Status    *AppointmentStatus
	Limit     int
	Offset    int
}
