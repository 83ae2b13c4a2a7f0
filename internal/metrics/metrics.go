// Package metrics holds the Prometheus collectors shared by the services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueJoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hospital_queue_joins_total",
		Help: "Walk-in patients that received a queue number.",
	})

	QueueTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hospital_queue_transitions_total",
		Help: "Queue status changes by target status and outcome.",
	}, []string{"to", "outcome"})

	QueueCounterFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hospital_queue_counter_failures_total",
		Help: "Failed requests to the atomic queue-number counter.",
	})

	Bookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hospital_appointment_bookings_total",
		Help: "Appointment booking attempts by outcome.",
	}, []string{"outcome"})

	SlotQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hospital_slot_query_duration_seconds",
		Help:    "Time to compute available slots for a doctor and date.",
		Buckets: prometheus.DefBuckets,
	})
)
