package allocation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgEventSink appends engine events to the event_logs table. It is an audit
// trail only; engine state is never rebuilt from it.
type PgEventSink struct {
	pool *pgxpool.Pool
}

func NewPgEventSink(pool *pgxpool.Pool) *PgEventSink {
	return &PgEventSink{pool: pool}
}

// EnsureSchema creates event_logs if it does not exist yet.
func (r *PgEventSink) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS event_logs (
			id          BIGSERIAL PRIMARY KEY,
			event_type  TEXT        NOT NULL,
			doctor_id   UUID        NOT NULL,
			token_id    UUID,
			payload     JSONB,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS event_logs_doctor_created_idx
			ON event_logs (doctor_id, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("ensure event_logs schema: %w", err)
	}
	return nil
}

func (r *PgEventSink) Publish(ctx context.Context, ev Event) error {
	var data []byte
	if ev.Payload != nil {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		data = b
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, doctor_id, token_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.DoctorID, ev.TokenID, data, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// Prune deletes events recorded before the cutoff and reports how many rows
// went.
func (r *PgEventSink) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM event_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune event logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgEventSink) RecentEvents(ctx context.Context, doctorID uuid.UUID, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	rows, err := r.pool.Query(ctx, `
		SELECT event_type, doctor_id, token_id, payload, created_at
		FROM event_logs
		WHERE doctor_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, doctorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query event logs: %w", err)
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanEvent(row pgx.Row) (*Event, error) {
	var (
		ev      Event
		tokenID *uuid.UUID
		payload []byte
	)
	if err := row.Scan(&ev.EventType, &ev.DoctorID, &tokenID, &payload, &ev.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}
	ev.TokenID = tokenID
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
	}
	return &ev, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
