package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-queue-scheduling/internal/slot"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrRuleNotFound        = errors.New("schedule rule not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	// Weekly rules
	ListActiveRules(ctx context.Context, doctorID uuid.UUID) ([]ScheduleRule, error)
	UpsertRule(ctx context.Context, doctorID uuid.UUID, rule slot.WeeklyRule) (*ScheduleRule, error)
	DeactivateRule(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*ScheduleRule, error)

	// Time off
	InsertTimeOff(ctx context.Context, t TimeOff) (*TimeOff, error)
	ListTimeOff(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeOff, error)

	// For conflict checks
	ListOccupyingAppointments(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error)

	// Creation and updates
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, notes *string) (*Appointment, error)
}
