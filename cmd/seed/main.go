package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-queue-scheduling/internal/config"
	"github.com/hackgods/hospital-queue-scheduling/internal/db"
	"github.com/hackgods/hospital-queue-scheduling/internal/logging"
)

const (
	doctorsPerDepartment = 6
	patientCount         = 5000
)

var departments = []string{
	"General Practice",
	"Cardiology",
	"Dermatology",
	"Orthopedics",
	"Pediatrics",
	"Neurology",
	"Ophthalmology",
	"ENT",
}

// shift is a weekly working pattern handed out to seeded doctors.
type shift struct {
	days         []int
	start, end   string
	slotDuration int
}

var shifts = []shift{
	{days: []int{1, 2, 3, 4, 5}, start: "09:00", end: "17:00", slotDuration: 30},
	{days: []int{1, 3, 5}, start: "08:00", end: "12:00", slotDuration: 15},
	{days: []int{2, 4, 6}, start: "13:00", end: "19:00", slotDuration: 20},
	{days: []int{0, 6}, start: "10:00", end: "14:00", slotDuration: 30},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info", "seed")
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "seed")
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.ApplySchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("apply schema")
	}

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	deptIDs, err := seedDepartments(ctx, pool, faker, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed departments")
	}
	if err := seedDoctors(ctx, pool, faker, deptIDs, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(ctx, pool, faker, patientCount, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func seedDepartments(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, logger zerolog.Logger) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(departments))

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for i, name := range departments {
			id := uuid.New()
			location := fmt.Sprintf("Building %s, floor %d", faker.RandomString([]string{"A", "B", "C"}), i%4+1)

			_, err := tx.Exec(ctx, `
				INSERT INTO departments (id, name, location, is_active, created_at, updated_at)
				VALUES ($1, $2, $3, true, now(), now())
			`, id, name, location)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Int("count", len(ids)).Msg("departments seeded")
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, deptIDs []uuid.UUID, logger zerolog.Logger) error {
	count := 0

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for d, deptID := range deptIDs {
			for i := 0; i < doctorsPerDepartment; i++ {
				id := uuid.New()
				name := "Dr. " + faker.Name()

				_, err := tx.Exec(ctx, `
					INSERT INTO doctors (id, name, department_id, specialization, is_active, created_at, updated_at)
					VALUES ($1, $2, $3, $4, true, now(), now())
				`, id, name, deptID, departments[d])
				if err != nil {
					return err
				}

				sh := shifts[faker.Number(0, len(shifts)-1)]
				for _, day := range sh.days {
					_, err := tx.Exec(ctx, `
						INSERT INTO doctor_schedules (id, doctor_id, day_of_week, start_time, end_time, slot_duration_minutes, is_active, created_at, updated_at)
						VALUES ($1, $2, $3, $4::time, $5::time, $6, true, now(), now())
						ON CONFLICT (doctor_id, day_of_week) DO NOTHING
					`, uuid.New(), id, day, sh.start, sh.end, sh.slotDuration)
					if err != nil {
						return err
					}
				}
				count++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().Int("count", count).Msg("doctors and weekly schedules seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		rows := make([][]any, 0, end-offset)
		for i := offset; i < end; i++ {
			rows = append(rows, []any{uuid.New(), faker.Name(), faker.Email()})
		}

		_, err := pool.CopyFrom(ctx,
			pgx.Identifier{"patients"},
			[]string{"id", "name", "email"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return err
		}

		logger.Debug().Int("seeded", end).Int("total", count).Msg("patients batch")
	}

	logger.Info().Msg("patients seeded")
	return nil
}
