package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-queue-scheduling/internal/queue"
)

type RouterConfig struct {
	Appointments AppointmentService
	Queue        QueueService
	Postgres     Pinger
	Redis        Pinger
	Logger       zerolog.Logger
	PollInterval time.Duration
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Doctor schedules and slots
	r.Route("/doctors/{id}", func(r chi.Router) {
		r.Get("/schedule", listScheduleHandler(cfg.Appointments))
		r.Put("/schedule/{day}", upsertScheduleHandler(cfg.Appointments))
		r.Delete("/schedule/{day}", deactivateScheduleHandler(cfg.Appointments))
		r.Post("/time-off", addTimeOffHandler(cfg.Appointments))
		r.Get("/slots", availableSlotsHandler(cfg.Appointments))
	})

	// Appointments
	r.Post("/appointments", bookAppointmentHandler(cfg.Appointments))
	r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/status", updateAppointmentStatusHandler(cfg.Appointments))

	// Walk-in queue
	r.Post("/departments/{id}/queue", joinQueueHandler(cfg.Queue))
	r.Get("/departments/{id}/queue", queueBoardHandler(cfg.Queue, cfg.PollInterval))
	r.Post("/queue/{id}/call", queueTransitionHandler(cfg.Queue, queue.StatusCalled))
	r.Post("/queue/{id}/serve", queueTransitionHandler(cfg.Queue, queue.StatusServing))
	r.Post("/queue/{id}/complete", queueTransitionHandler(cfg.Queue, queue.StatusCompleted))
	r.Post("/queue/{id}/no-show", queueTransitionHandler(cfg.Queue, queue.StatusCancelled))

	return r
}
