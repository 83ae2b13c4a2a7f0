package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-queue-scheduling/internal/queue"
)

type QueueService interface {
	Join(ctx context.Context, req queue.JoinRequest) (*queue.Entry, error)
	Transition(ctx context.Context, id uuid.UUID, to queue.Status) (*queue.Entry, error)
	Board(ctx context.Context, departmentID uuid.UUID) (queue.Board, error)
}

func joinQueueHandler(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID, ok := parseUUIDParam(w, r, "id", "invalid_department_id")
		if !ok {
			return
		}

		var req JoinQueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		var doctorID *uuid.UUID
		if req.DoctorID != "" {
			id, err := uuid.Parse(req.DoctorID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			doctorID = &id
		}

		entry, err := svc.Join(r.Context(), queue.JoinRequest{
			DepartmentID: departmentID,
			PatientID:    patientID,
			DoctorID:     doctorID,
			Reason:       req.Reason,
		})
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toEntryResponse(*entry))
	}
}

// queueBoardHandler serves the live board. refresh_after_seconds tells
// polling clients when to fetch again.
func queueBoardHandler(svc QueueService, pollInterval time.Duration) http.HandlerFunc {
	// Round up so a partial second never advertises 0.
	refresh := int((pollInterval + time.Second - 1) / time.Second)
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID, ok := parseUUIDParam(w, r, "id", "invalid_department_id")
		if !ok {
			return
		}

		board, err := svc.Board(r.Context(), departmentID)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, QueueBoardResponse{
			DepartmentID:        departmentID,
			Waiting:             toEntryResponses(board.Waiting),
			Called:              toEntryResponses(board.Called),
			Serving:             toEntryResponses(board.Serving),
			RefreshAfterSeconds: refresh,
		})
	}
}

// queueTransitionHandler handles one of call, serve, complete and no-show.
func queueTransitionHandler(svc QueueService, to queue.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "invalid_queue_entry_id")
		if !ok {
			return
		}

		entry, err := svc.Transition(r.Context(), id, to)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toEntryResponse(*entry))
	}
}

func handleQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrInvalidJoin):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, queue.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "queue_entry_not_found", err.Error())
	case errors.Is(err, queue.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, queue.ErrDepartmentNotFound):
		writeError(w, http.StatusNotFound, "department_not_found", err.Error())
	case errors.Is(err, queue.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, queue.ErrInvalidTransition),
		errors.Is(err, queue.ErrStaleEntry):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, queue.ErrCounterFailure):
		writeError(w, http.StatusServiceUnavailable, "queue_number_unavailable", "could not assign a queue number, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
