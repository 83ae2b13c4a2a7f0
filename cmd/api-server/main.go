package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-queue-scheduling/internal/api"
	"github.com/hackgods/hospital-queue-scheduling/internal/appointment"
	"github.com/hackgods/hospital-queue-scheduling/internal/config"
	"github.com/hackgods/hospital-queue-scheduling/internal/db"
	"github.com/hackgods/hospital-queue-scheduling/internal/eventlog"
	"github.com/hackgods/hospital-queue-scheduling/internal/logging"
	"github.com/hackgods/hospital-queue-scheduling/internal/queue"
	redisclient "github.com/hackgods/hospital-queue-scheduling/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info", "api-server")
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "api-server")
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("queue_sequencer", cfg.QueueSequencer).
		Str("timezone", cfg.Location.String()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	schemaCtx, cancelSchema := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.ApplySchema(schemaCtx, pgPool)
	cancelSchema()
	if err != nil {
		logger.Fatal().Err(err).Msg("schema apply error")
	}
	logger.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	events := eventlog.NewRecorder(eventlog.NewPgWriter(pgPool), logger)

	apptSvc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		redisclient.NewRedisLocker(rdb, cfg.LockTTL),
		cfg,
		events,
		logger,
	)

	var seq queue.Sequencer
	switch cfg.QueueSequencer {
	case config.SequencerPostgres:
		seq = queue.NewPgSequencer(pgPool)
	default:
		seq = redisclient.NewQueueCounter(rdb, cfg.QueueCounterTTL)
	}

	queueSvc := queue.NewService(
		queue.NewPgRepository(pgPool),
		seq,
		queue.FixedRate{MinutesPerPatient: cfg.QueueMinutesPerPatient},
		logger,
		queue.WithLocation(cfg.Location),
		queue.WithEvents(events),
	)

	router := api.NewRouter(api.RouterConfig{
		Appointments: apptSvc,
		Queue:        queueSvc,
		Postgres:     api.PostgresPinger(pgPool),
		Redis:        api.RedisPinger(rdb),
		Logger:       logger,
		PollInterval: cfg.QueuePollInterval,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	shutdown(srv, cfg.ShutdownTimeout, logger)
}

func shutdown(srv *http.Server, timeout time.Duration, logger zerolog.Logger) {
	logger.Info().Dur("timeout", timeout).Msg("shutting down api-server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
