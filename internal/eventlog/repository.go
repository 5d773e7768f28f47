package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
)

type Repository interface {
	Append(ctx context.Context, orderID int64, processID, eventType, message string, payload json.RawMessage) error
	ListByOrder(ctx context.Context, orderID int64, limit int) ([]Entry, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Append(ctx context.Context, orderID int64, processID, eventType, message string, payload json.RawMessage) error {
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO gateway_events (order_id, process_id, event_type, message, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, orderID, processID, eventType, message, []byte(payload))
	return err
}

// ListByOrder returns the newest entries first, for the admin order view.
func (r *repository) ListByOrder(ctx context.Context, orderID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, process_id, event_type, message, payload, created_at
		FROM gateway_events
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, orderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.OrderID, &e.ProcessID, &e.EventType, &e.Message, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
