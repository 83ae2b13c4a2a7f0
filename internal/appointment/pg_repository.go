package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/hospital-queue-scheduling/internal/slot"
)

const uniqueViolation = "23505"

const appointmentColumns = `id, patient_id, doctor_id, department_id, appointment_date,
	to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), status, reason, notes, created_at, updated_at`

const ruleColumns = `id, doctor_id, day_of_week, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	slot_duration_minutes, is_active, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.DepartmentID,
		&d.Specialization,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanRule(row pgx.Row) (*ScheduleRule, error) {
	var r ScheduleRule

	err := row.Scan(
		&r.ID,
		&r.DoctorID,
		&r.DayOfWeek,
		&r.StartTime,
		&r.EndTime,
		&r.SlotDurationMinutes,
		&r.IsActive,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	return &r, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.DepartmentID,
		&a.AppointmentDate,
		&a.StartTime,
		&a.EndTime,
		&status,
		&a.Reason,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = AppointmentStatus(status)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, department_id, specialization, is_active, created_at, updated_at
		FROM doctors
		WHERE id = $1 AND is_active
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListActiveRules(ctx context.Context, doctorID uuid.UUID) ([]ScheduleRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM doctor_schedules
		WHERE doctor_id = $1 AND is_active
		ORDER BY day_of_week
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpsertRule(ctx context.Context, doctorID uuid.UUID, rule slot.WeeklyRule) (*ScheduleRule, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO doctor_schedules (id, doctor_id, day_of_week, start_time, end_time, slot_duration_minutes, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4::time, $5::time, $6, $7, now(), now())
		ON CONFLICT (doctor_id, day_of_week) DO UPDATE
		SET start_time = EXCLUDED.start_time,
		    end_time = EXCLUDED.end_time,
		    slot_duration_minutes = EXCLUDED.slot_duration_minutes,
		    is_active = EXCLUDED.is_active,
		    updated_at = now()
		RETURNING `+ruleColumns,
		uuid.New(), doctorID, rule.DayOfWeek, rule.StartTime, rule.EndTime, rule.SlotDurationMinutes, rule.IsActive)

	return scanRule(row)
}

func (r *PgRepository) DeactivateRule(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*ScheduleRule, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE doctor_schedules
		SET is_active = false,
		    updated_at = now()
		WHERE doctor_id = $1
		  AND day_of_week = $2
		RETURNING `+ruleColumns,
		doctorID, dayOfWeek)

	return scanRule(row)
}

func (r *PgRepository) InsertTimeOff(ctx context.Context, t TimeOff) (*TimeOff, error) {
	var out TimeOff
	err := r.pool.QueryRow(ctx, `
		INSERT INTO doctor_time_off (id, doctor_id, start_datetime, end_datetime, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, doctor_id, start_datetime, end_datetime, reason, created_at
	`, t.ID, t.DoctorID, t.Start, t.End, t.Reason).Scan(
		&out.ID, &out.DoctorID, &out.Start, &out.End, &out.Reason, &out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *PgRepository) ListTimeOff(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeOff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, start_datetime, end_datetime, reason, created_at
		FROM doctor_time_off
		WHERE doctor_id = $1
		  AND start_datetime < $3
		  AND end_datetime > $2
		ORDER BY start_datetime
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimeOff
	for rows.Next() {
		var t TimeOff
		if err := rows.Scan(&t.ID, &t.DoctorID, &t.Start, &t.End, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListOccupyingAppointments(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND status NOT IN ('cancelled', 'no_show')
		ORDER BY start_time
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.DoctorID != nil {
		add("doctor_id = $%d", *f.DoctorID)
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.Date != nil {
		add("appointment_date = $%d", *f.Date)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY appointment_date, start_time LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, department_id, appointment_date, start_time, end_time,
			status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::time, $7::time, $8, $9, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.DoctorID, a.DepartmentID, a.AppointmentDate, a.StartTime, a.EndTime,
		string(a.Status), a.Reason)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotAlreadyBooked
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, notes *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    notes = COALESCE($4, notes),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, string(to), string(from), notes)

	return scanAppointment(row)
}
