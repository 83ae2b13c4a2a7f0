package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-queue-scheduling/internal/api"
	"github.com/hackgods/hospital-queue-scheduling/internal/config"
	"github.com/hackgods/hospital-queue-scheduling/internal/db"
	"github.com/hackgods/hospital-queue-scheduling/internal/logging"
	"github.com/hackgods/hospital-queue-scheduling/internal/slot"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	QueueBurst      int
	BookingRacers   int
	PatientLimit    int
	SearchDaysAhead int
	PostgresDSN     string
}

type DataPool struct {
	Patients    []uuid.UUID
	Departments []uuid.UUID
	Doctors     []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	faker   *gofakeit.Faker
	log     zerolog.Logger
	metrics Metrics
}

var complaints = []string{"fever", "cough", "back pain", "rash", "headache", "sprained ankle", "follow-up", "sore throat"}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info", "simulate")
		boot.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.New(baseCfg.Env, baseCfg.LogLevel, "simulate")

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("queue_burst", cfg.QueueBurst).
		Int("booking_racers", cfg.BookingRacers).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("departments", len(dataPool.Departments)).
		Int("doctors", len(dataPool.Doctors)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		faker:  gofakeit.New(uint64(time.Now().UnixNano())),
		log:    logger,
	}

	failed := false
	if err := sim.QueueBurst(context.Background()); err != nil {
		logger.Error().Err(err).Msg("queue burst check failed")
		failed = true
	}
	if err := sim.BookingRace(context.Background()); err != nil {
		logger.Error().Err(err).Msg("booking race check failed")
		failed = true
	}

	sim.Run()
	sim.PrintReport()

	if failed {
		os.Exit(1)
	}
}

func loadConfig(base config.Config) SimConfig {
	return SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:"+base.HTTPPort),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		QueueBurst:      getInt("SIM_QUEUE_BURST", 50),
		BookingRacers:   getInt("SIM_BOOKING_RACERS", 20),
		PatientLimit:    getInt("SIM_PATIENT_LIMIT", 4000),
		SearchDaysAhead: getInt("SIM_SEARCH_DAYS", 14),
		PostgresDSN:     base.PostgresDSN,
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.QueueBurst <= 0 || cfg.BookingRacers <= 1 {
		return fmt.Errorf("SIM_QUEUE_BURST must be > 0 and SIM_BOOKING_RACERS > 1")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	var err error
	dataPool.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	dataPool.Departments, err = loadIDs(ctx, pool, `SELECT id FROM departments WHERE is_active LIMIT $1`, 100)
	if err != nil {
		return nil, fmt.Errorf("load departments: %w", err)
	}
	dataPool.Doctors, err = loadIDs(ctx, pool, `
		SELECT DISTINCT d.id
		FROM doctors d
		JOIN doctor_schedules s ON s.doctor_id = d.id AND s.is_active
		WHERE d.is_active
		LIMIT $1
	`, 500)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}

	if len(dataPool.Patients) < cfg.BookingRacers {
		return nil, fmt.Errorf("need at least %d patients, found %d", cfg.BookingRacers, len(dataPool.Patients))
	}
	if len(dataPool.Departments) == 0 {
		return nil, fmt.Errorf("no departments loaded")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no scheduled doctors loaded")
	}

	return dataPool, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// QueueBurst sends QueueBurst simultaneous walk-ins to one department and
// checks the numbers they receive.
func (s *Simulator) QueueBurst(ctx context.Context) error {
	deptID := s.pool.Departments[0]
	s.log.Info().Str("department_id", deptID.String()).Int("joins", s.config.QueueBurst).Msg("queue burst")

	var (
		mu      sync.Mutex
		numbers []int
		wg      sync.WaitGroup
		start   = make(chan struct{})
	)

	for i := 0; i < s.config.QueueBurst; i++ {
		patientID := s.pool.Patients[i%len(s.pool.Patients)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			entry, status, err := s.joinQueue(ctx, deptID, patientID, complaints[i%len(complaints)])
			if err != nil || status != http.StatusCreated {
				s.log.Warn().Err(err).Int("status", status).Msg("queue join failed")
				return
			}
			mu.Lock()
			numbers = append(numbers, entry.QueueNumber)
			mu.Unlock()
		}()
	}

	close(start)
	wg.Wait()

	if len(numbers) != s.config.QueueBurst {
		return fmt.Errorf("%d of %d joins failed", s.config.QueueBurst-len(numbers), s.config.QueueBurst)
	}
	if err := checkQueueNumbers(numbers); err != nil {
		return err
	}

	s.log.Info().Int("joins", len(numbers)).Msg("queue numbers distinct and gap-free")
	return nil
}

// BookingRace finds a free slot and has BookingRacers patients request it at
// the same moment.
func (s *Simulator) BookingRace(ctx context.Context) error {
	doctorID, date, startTime, err := s.findFreeSlot(ctx)
	if err != nil {
		return err
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Str("date", slot.FormatDate(date)).
		Str("start_time", startTime).
		Int("racers", s.config.BookingRacers).
		Msg("booking race")

	var (
		mu                         sync.Mutex
		created, conflicts, others int
		wg                         sync.WaitGroup
		start                      = make(chan struct{})
	)

	for i := 0; i < s.config.BookingRacers; i++ {
		patientID := s.pool.Patients[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			status, _, err := s.book(ctx, patientID, doctorID, date, startTime)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && status == http.StatusCreated:
				created++
			case err == nil && status == http.StatusConflict:
				conflicts++
			default:
				others++
			}
		}()
	}

	close(start)
	wg.Wait()

	s.log.Info().Int("created", created).Int("conflicts", conflicts).Int("other", others).Msg("booking race finished")
	return checkSingleWinner(created, others)
}

func (s *Simulator) findFreeSlot(ctx context.Context) (uuid.UUID, time.Time, string, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for _, doctorID := range s.pool.Doctors {
		for d := 1; d <= s.config.SearchDaysAhead; d++ {
			date := today.AddDate(0, 0, d)
			slots, _, err := s.availableSlots(ctx, doctorID, date)
			if err != nil {
				return uuid.Nil, time.Time{}, "", err
			}
			if len(slots) > 0 {
				return doctorID, date, slots[0], nil
			}
		}
	}
	return uuid.Nil, time.Time{}, "", fmt.Errorf("no free slot in the next %d days", s.config.SearchDaysAhead)
}

// Run drives mixed traffic until Duration elapses.
func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting mixed load")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch rng.Intn(5) {
		case 0:
			s.doJoin(ctx, rng)
		case 1:
			s.doBoard(ctx, rng)
		case 2:
			s.doBooking(ctx, rng)
		case 3:
			s.doSlotSearch(ctx, rng)
		case 4:
			s.doStatusChange(ctx, rng)
		}
	}
}

func (s *Simulator) doJoin(ctx context.Context, rng *rand.Rand) {
	deptID := s.pool.Departments[rng.Intn(len(s.pool.Departments))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	_, status, err := s.joinQueue(ctx, deptID, patientID, s.faker.RandomString(complaints))
	s.metrics.QueueJoin.Record(time.Since(start), err == nil && status == http.StatusCreated, false)
}

func (s *Simulator) doBoard(ctx context.Context, rng *rand.Rand) {
	deptID := s.pool.Departments[rng.Intn(len(s.pool.Departments))]

	start := time.Now()
	status, err := s.getJSON(ctx, fmt.Sprintf("/departments/%s/queue", deptID), nil)
	s.metrics.QueueBoard.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doSlotSearch(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	date := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1+rng.Intn(s.config.SearchDaysAhead))

	start := time.Now()
	_, status, err := s.availableSlots(ctx, doctorID, date)
	s.metrics.SlotSearch.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	date := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1+rng.Intn(s.config.SearchDaysAhead))

	slots, _, err := s.availableSlots(ctx, doctorID, date)
	if err != nil || len(slots) == 0 {
		return
	}

	start := time.Now()
	status, id, err := s.book(ctx, patientID, doctorID, date, slots[rng.Intn(len(slots))])
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success {
		s.pool.AddAppointment(id)
	}
	s.metrics.Booking.Record(latency, success, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doStatusChange(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	next := []string{"checked_in", "cancelled", "no_show", "in_progress", "completed"}[rng.Intn(5)]

	start := time.Now()
	status, err := s.postJSON(ctx, fmt.Sprintf("/appointments/%s/status", apptID),
		api.UpdateAppointmentStatusRequest{Status: next}, nil)
	latency := time.Since(start)

	s.metrics.StatusChange.Record(latency, err == nil && status == http.StatusOK, err == nil && status == http.StatusConflict)
}

func (s *Simulator) joinQueue(ctx context.Context, deptID, patientID uuid.UUID, reason string) (*api.QueueEntryResponse, int, error) {
	var entry api.QueueEntryResponse
	status, err := s.postJSON(ctx, fmt.Sprintf("/departments/%s/queue", deptID),
		api.JoinQueueRequest{PatientID: patientID.String(), Reason: reason}, &entry)
	if err != nil {
		return nil, 0, err
	}
	return &entry, status, nil
}

func (s *Simulator) availableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, int, error) {
	var resp api.SlotsResponse
	status, err := s.getJSON(ctx, fmt.Sprintf("/doctors/%s/slots?date=%s", doctorID, slot.FormatDate(date)), &resp)
	if err != nil {
		return nil, 0, err
	}
	return resp.Slots, status, nil
}

func (s *Simulator) book(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, startTime string) (int, uuid.UUID, error) {
	var resp api.AppointmentResponse
	status, err := s.postJSON(ctx, "/appointments", api.BookAppointmentRequest{
		PatientID:       patientID.String(),
		DoctorID:        doctorID.String(),
		AppointmentDate: slot.FormatDate(date),
		StartTime:       startTime,
		Reason:          s.faker.RandomString(complaints),
	}, &resp)
	return status, resp.ID, err
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return 0, err
	}
	return s.do(req, out)
}

func (s *Simulator) postJSON(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, out)
}

// do decodes 2xx bodies into out and drains everything else.
func (s *Simulator) do(req *http.Request, out any) (int, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Queue join", &s.metrics.QueueJoin)
	printOperationReport("Queue board", &s.metrics.QueueBoard)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Slot search", &s.metrics.SlotSearch)
	printOperationReport("Status change", &s.metrics.StatusChange)
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
