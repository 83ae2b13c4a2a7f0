package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	EntityAppointment = "appointment"
	EntityQueueEntry  = "queue_entry"
	EntityWeeklyRule  = "weekly_rule"
)

type Event struct {
	ID         int64
	EventType  string
	EntityType string
	EntityID   *uuid.UUID
	Payload    []byte
	CreatedAt  time.Time
}

type Writer interface {
	InsertEvent(ctx context.Context, ev Event) error
}

// Recorder writes audit events on a best-effort basis. A failed write is
// logged and otherwise ignored so it never fails the operation it describes.
type Recorder struct {
	w   Writer
	log zerolog.Logger
}

func NewRecorder(w Writer, log zerolog.Logger) *Recorder {
	return &Recorder{w: w, log: log}
}

func (r *Recorder) Record(ctx context.Context, entityType string, entityID uuid.UUID, eventType string, payload map[string]any) {
	if r == nil || r.w == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	id := entityID
	ev := Event{
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   &id,
		Payload:    data,
		CreatedAt:  time.Now(),
	}

	if err := r.w.InsertEvent(ctx, ev); err != nil {
		r.log.Error().Err(err).
			Str("event_type", eventType).
			Str("entity_id", entityID.String()).
			Msg("failed to insert event log")
	}
}

type PgWriter struct {
	pool *pgxpool.Pool
}

func NewPgWriter(pool *pgxpool.Pool) *PgWriter {
	return &PgWriter{pool: pool}
}

func (w *PgWriter) InsertEvent(ctx context.Context, ev Event) error {
	_, err := w.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, entity_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.EntityType, ev.EntityID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
