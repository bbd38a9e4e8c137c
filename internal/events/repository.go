// Package events records the timeline of a service request.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	TypeRequestCreated  = "REQUEST_CREATED"
	TypeStatusChanged   = "STATUS_CHANGED"
	TypePriorityChanged = "PRIORITY_CHANGED"
)

type Event struct {
	ID         string         `json:"id"`
	RequestID  string         `json:"requestId"`
	EventType  string         `json:"eventType"`
	Summary    string         `json:"summary"`
	Actor      string         `json:"actor"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func Insert(ctx context.Context, tx pgx.Tx, requestID, eventType, summary, actor string, occurredAt time.Time, data any) error {
	var s *string
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		str := string(b)
		s = &str
	}
	const q = `
INSERT INTO request_events (request_id, event_type, summary, actor, occurred_at, data)
VALUES ($1, $2, $3, $4, $5, CAST($6 AS jsonb))
`
	_, err := tx.Exec(ctx, q, requestID, eventType, summary, actor, occurredAt, s)
	return err
}

func (r *Repository) ListByRequest(ctx context.Context, requestID string) ([]Event, error) {
	const q = `
SELECT id, request_id, event_type, summary, actor, occurred_at, COALESCE(data, '{}'::jsonb)
FROM request_events
WHERE request_id = $1
ORDER BY occurred_at ASC, created_at ASC
`
	rows, err := r.db.Query(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RequestID, &e.EventType, &e.Summary, &e.Actor, &e.OccurredAt, &e.Data); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
