package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entryColumns = `id, patient_id, department_id, doctor_id, queue_number, queue_date, status,
	check_in_time, called_time, completed_time, reason, estimated_wait_minutes, created_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var status string

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.DepartmentID,
		&e.DoctorID,
		&e.QueueNumber,
		&e.QueueDate,
		&status,
		&e.CheckInTime,
		&e.CalledTime,
		&e.CompletedTime,
		&e.Reason,
		&e.EstimatedWaitMinutes,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	e.Status = Status(status)
	return &e, nil
}

func (r *PgRepository) exists(ctx context.Context, query string, id uuid.UUID, notFound error) error {
	var ok bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return notFound
	}
	return nil
}

func (r *PgRepository) CheckPatient(ctx context.Context, id uuid.UUID) error {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id, ErrPatientNotFound)
}

func (r *PgRepository) CheckDepartment(ctx context.Context, id uuid.UUID) error {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM departments WHERE id = $1 AND is_active)`, id, ErrDepartmentNotFound)
}

func (r *PgRepository) CheckDoctor(ctx context.Context, id uuid.UUID) error {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1 AND is_active)`, id, ErrDoctorNotFound)
}

func (r *PgRepository) InsertEntry(ctx context.Context, e Entry) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO walk_in_queue (id, patient_id, department_id, doctor_id, queue_number, queue_date, status,
			check_in_time, reason, estimated_wait_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		RETURNING `+entryColumns,
		e.ID, e.PatientID, e.DepartmentID, e.DoctorID, e.QueueNumber, e.QueueDate, string(e.Status),
		e.CheckInTime, e.Reason, e.EstimatedWaitMinutes)

	return scanEntry(row)
}

func (r *PgRepository) GetEntryByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM walk_in_queue WHERE id = $1`, id)
	return scanEntry(row)
}

func (r *PgRepository) UpdateEntryStatus(ctx context.Context, from Status, next Entry) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE walk_in_queue
		SET status = $2,
		    called_time = $3,
		    completed_time = $4
		WHERE id = $1
		  AND status = $5
		RETURNING `+entryColumns,
		next.ID, string(next.Status), next.CalledTime, next.CompletedTime, string(from))

	e, err := scanEntry(row)
	if errors.Is(err, ErrEntryNotFound) {
		return nil, ErrStaleEntry
	}
	return e, err
}

func (r *PgRepository) ListActiveEntries(ctx context.Context, departmentID uuid.UUID, day time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM walk_in_queue
		WHERE department_id = $1
		  AND queue_date = $2
		  AND status IN ('waiting', 'called', 'serving')
		ORDER BY queue_number
	`, departmentID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// PgSequencer keeps per-department, per-day counters in the queue_counters
// table. The upsert takes a row lock, so concurrent callers are serialised by
// Postgres and each sees a distinct value.
type PgSequencer struct {
	pool *pgxpool.Pool
}

func NewPgSequencer(pool *pgxpool.Pool) *PgSequencer {
	return &PgSequencer{pool: pool}
}

func (s *PgSequencer) NextQueueNumber(ctx context.Context, departmentID uuid.UUID, day time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO queue_counters (department_id, queue_date, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (department_id, queue_date)
		DO UPDATE SET last_value = queue_counters.last_value + 1
		RETURNING last_value
	`, departmentID, day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment queue counter: %w", err)
	}
	return n, nil
}
