package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-queue-scheduling/internal/appointment"
	"github.com/hackgods/hospital-queue-scheduling/internal/queue"
	"github.com/hackgods/hospital-queue-scheduling/internal/slot"
)

type BookAppointmentRequest struct {
	PatientID       string `json:"patient_id"`
	DoctorID        string `json:"doctor_id"`
	DepartmentID    string `json:"department_id,omitempty"`
	AppointmentDate string `json:"appointment_date"`
	StartTime       string `json:"start_time"`
	Reason          string `json:"reason,omitempty"`
}

type UpdateAppointmentStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	DepartmentID    *uuid.UUID `json:"department_id,omitempty"`
	AppointmentDate string     `json:"appointment_date"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	Status          string     `json:"status"`
	Reason          *string    `json:"reason,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

type ScheduleRuleRequest struct {
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
	SlotDurationMinutes int    `json:"slot_duration_minutes,omitempty"`
	IsActive            *bool  `json:"is_active,omitempty"`
}

type ScheduleRuleResponse struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	slot.WeeklyRule
	UpdatedAt time.Time `json:"updated_at"`
}

type TimeOffRequest struct {
	StartDatetime time.Time `json:"start_datetime"`
	EndDatetime   time.Time `json:"end_datetime"`
	Reason        string    `json:"reason,omitempty"`
}

type TimeOffResponse struct {
	ID            uuid.UUID `json:"id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	StartDatetime time.Time `json:"start_datetime"`
	EndDatetime   time.Time `json:"end_datetime"`
	Reason        *string   `json:"reason,omitempty"`
}

type SlotsResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Slots    []string  `json:"slots"`
}

type JoinQueueRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type QueueEntryResponse struct {
	ID                   uuid.UUID  `json:"id"`
	PatientID            uuid.UUID  `json:"patient_id"`
	DepartmentID         uuid.UUID  `json:"department_id"`
	DoctorID             *uuid.UUID `json:"doctor_id,omitempty"`
	QueueNumber          int        `json:"queue_number"`
	QueueDate            string     `json:"queue_date"`
	Status               string     `json:"status"`
	CheckInTime          time.Time  `json:"check_in_time"`
	CalledTime           *time.Time `json:"called_time,omitempty"`
	CompletedTime        *time.Time `json:"completed_time,omitempty"`
	Reason               *string    `json:"reason,omitempty"`
	EstimatedWaitMinutes *int       `json:"estimated_wait_minutes,omitempty"`
}

type QueueBoardResponse struct {
	DepartmentID        uuid.UUID            `json:"department_id"`
	Waiting             []QueueEntryResponse `json:"waiting"`
	Called              []QueueEntryResponse `json:"called"`
	Serving             []QueueEntryResponse `json:"serving"`
	RefreshAfterSeconds int                  `json:"refresh_after_seconds"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		DepartmentID:    a.DepartmentID,
		AppointmentDate: slot.FormatDate(a.AppointmentDate),
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		Status:          string(a.Status),
		Reason:          a.Reason,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toRuleResponse(r *appointment.ScheduleRule) ScheduleRuleResponse {
	return ScheduleRuleResponse{
		ID:         r.ID,
		DoctorID:   r.DoctorID,
		WeeklyRule: r.WeeklyRule,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toEntryResponse(e queue.Entry) QueueEntryResponse {
	return QueueEntryResponse{
		ID:                   e.ID,
		PatientID:            e.PatientID,
		DepartmentID:         e.DepartmentID,
		DoctorID:             e.DoctorID,
		QueueNumber:          e.QueueNumber,
		QueueDate:            slot.FormatDate(e.QueueDate),
		Status:               string(e.Status),
		CheckInTime:          e.CheckInTime,
		CalledTime:           e.CalledTime,
		CompletedTime:        e.CompletedTime,
		Reason:               e.Reason,
		EstimatedWaitMinutes: e.EstimatedWaitMinutes,
	}
}

func toEntryResponses(entries []queue.Entry) []QueueEntryResponse {
	out := make([]QueueEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return out
}
