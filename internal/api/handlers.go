package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/hospital-queue-scheduling/internal/appointment"
	redisclient "github.com/hackgods/hospital-queue-scheduling/internal/redis"
	"github.com/hackgods/hospital-queue-scheduling/internal/slot"
)

// AppointmentService is the subset of appointment.Service the handlers use.
type AppointmentService interface {
	AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to appointment.AppointmentStatus, notes *string) (*appointment.Appointment, error)
	ListRules(ctx context.Context, doctorID uuid.UUID) ([]appointment.ScheduleRule, error)
	UpsertRule(ctx context.Context, doctorID uuid.UUID, rule slot.WeeklyRule) (*appointment.ScheduleRule, error)
	DeactivateRule(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*appointment.ScheduleRule, error)
	AddTimeOff(ctx context.Context, t appointment.TimeOff) (*appointment.TimeOff, error)
}

func availableSlotsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}

		date, err := slot.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			DoctorID: doctorID,
			Date:     slot.FormatDate(date),
			Slots:    slots,
		})
	}
}

func bookAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		var departmentID *uuid.UUID
		if req.DepartmentID != "" {
			id, err := uuid.Parse(req.DepartmentID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_department_id", "department_id must be a valid UUID")
				return
			}
			departmentID = &id
		}

		date, err := slot.ParseDate(req.AppointmentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			PatientID:    patientID,
			DoctorID:     doctorID,
			DepartmentID: departmentID,
			Date:         date,
			StartTime:    req.StartTime,
			Reason:       req.Reason,
		})
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f appointment.ListFilter

		if v := q.Get("doctor_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			f.DoctorID = &id
		}
		if v := q.Get("patient_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			f.PatientID = &id
		}
		if v := q.Get("date"); v != "" {
			d, err := slot.ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
				return
			}
			f.Date = &d
		}
		if v := q.Get("status"); v != "" {
			st := appointment.AppointmentStatus(v)
			if !st.Valid() {
				writeError(w, http.StatusBadRequest, "invalid_status", "unknown appointment status")
				return
			}
			f.Status = &st
		}
		f.Limit, _ = strconv.Atoi(q.Get("limit"))
		f.Offset, _ = strconv.Atoi(q.Get("offset"))

		appts, err := svc.ListAppointments(r.Context(), f)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		resp := ListAppointmentsResponse{
			Appointments: make([]AppointmentResponse, 0, len(appts)),
		}
		for i := range appts {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(&appts[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func updateAppointmentStatusHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "invalid_appointment_id")
		if !ok {
			return
		}

		var req UpdateAppointmentStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		to := appointment.AppointmentStatus(req.Status)
		if !to.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_status", "unknown appointment status")
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), id, to, req.Notes)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listScheduleHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}

		rules, err := svc.ListRules(r.Context(), doctorID)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		resp := make([]ScheduleRuleResponse, 0, len(rules))
		for i := range rules {
			resp = append(resp, toRuleResponse(&rules[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func upsertScheduleHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}
		day, ok := parseDayParam(w, r)
		if !ok {
			return
		}

		var req ScheduleRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		active := true
		if req.IsActive != nil {
			active = *req.IsActive
		}

		rule, err := svc.UpsertRule(r.Context(), doctorID, slot.WeeklyRule{
			DayOfWeek:           day,
			StartTime:           req.StartTime,
			EndTime:             req.EndTime,
			SlotDurationMinutes: req.SlotDurationMinutes,
			IsActive:            active,
		})
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRuleResponse(rule))
	}
}

func deactivateScheduleHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}
		day, ok := parseDayParam(w, r)
		if !ok {
			return
		}

		rule, err := svc.DeactivateRule(r.Context(), doctorID, day)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRuleResponse(rule))
	}
}

func addTimeOffHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}

		var req TimeOffRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		t := appointment.TimeOff{
			DoctorID: doctorID,
			Start:    req.StartDatetime,
			End:      req.EndDatetime,
		}
		if req.Reason != "" {
			reason := req.Reason
			t.Reason = &reason
		}

		saved, err := svc.AddTimeOff(r.Context(), t)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, TimeOffResponse{
			ID:            saved.ID,
			DoctorID:      saved.DoctorID,
			StartDatetime: saved.Start,
			EndDatetime:   saved.End,
			Reason:        saved.Reason,
		})
	}
}

func handleAppointmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, slot.ErrMalformedTime),
		errors.Is(err, slot.ErrMalformedDate):
		writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
	case errors.Is(err, slot.ErrInvalidRule):
		writeError(w, http.StatusBadRequest, "invalid_schedule_rule", err.Error())
	case errors.Is(err, appointment.ErrInvalidTimeOff):
		writeError(w, http.StatusBadRequest, "invalid_time_off", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, appointment.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "schedule_rule_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrNoAvailability):
		writeError(w, http.StatusUnprocessableEntity, "no_availability", err.Error())
	case errors.Is(err, appointment.ErrNotASlot):
		writeError(w, http.StatusUnprocessableEntity, "not_a_slot", err.Error())
	case errors.Is(err, appointment.ErrDoctorUnavailable):
		writeError(w, http.StatusConflict, "doctor_unavailable", err.Error())
	case errors.Is(err, appointment.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parseDayParam reads {day} as 0 (Sunday) through 6 (Saturday).
func parseDayParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil || day < 0 || day > 6 {
		writeError(w, http.StatusBadRequest, "invalid_day_of_week", "day must be 0 (Sunday) through 6 (Saturday)")
		return 0, false
	}
	return day, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
