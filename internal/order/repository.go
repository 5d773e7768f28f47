package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	SetPaymentSession(ctx context.Context, id int64, processID, token, environment string) error
	MarkPaid(ctx context.Context, id int64, transactionID, authNumber string, raw json.RawMessage) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	AddNote(ctx context.Context, id int64, note string) error
	GetNotes(ctx context.Context, id int64) ([]Note, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	if o.PaymentMethod == "" {
		o.PaymentMethod = PaymentMethodBancardVPOS
	}
	if o.Status == "" {
		o.Status = StatusCreated
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO orders (amount, currency, description, payment_method, status, promotion_codes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`,
		o.Amount, o.Currency, o.Description, o.PaymentMethod, o.Status, pq.Array(o.PromotionCodes),
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, amount, currency, description, payment_method, status, promotion_codes,
		       process_id, request_token, environment, transaction_id, authorization_number,
		       last_notification, created_at, updated_at, paid_at
		FROM orders WHERE id = $1
	`, id)

	var o Order
	var lastNotification []byte
	err := row.Scan(
		&o.ID, &o.Amount, &o.Currency, &o.Description, &o.PaymentMethod, &o.Status,
		pq.Array(&o.PromotionCodes),
		&o.ProcessID, &o.RequestToken, &o.Environment, &o.TransactionID, &o.AuthorizationNumber,
		&lastNotification, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("loading order %d: %w", id, err)
	}
	o.LastNotification = json.RawMessage(lastNotification)
	return &o, nil
}

// SetPaymentSession stores a new Bancard session on the order and moves it to
// PENDING. A re-initiated payment overwrites the previous session; an order
// holds at most one active process id.
func (r *repository) SetPaymentSession(ctx context.Context, id int64, processID, token, environment string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET process_id = $2, request_token = $3, environment = $4,
		    status = $5, updated_at = now()
		WHERE id = $1
	`, id, processID, token, environment, StatusPending)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkPaid persists the transaction identifiers and the raw notification, then
// completes payment at most once. The returned bool is true only for the call
// that actually completed the order; a duplicate delivery gets false.
func (r *repository) MarkPaid(ctx context.Context, id int64, transactionID, authNumber string, raw json.RawMessage) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if raw == nil {
		raw = json.RawMessage(`{}`)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET transaction_id = $2, authorization_number = $3, last_notification = $4,
		    updated_at = now()
		WHERE id = $1
	`, id, transactionID, authNumber, []byte(raw))
	if err != nil {
		return false, err
	}
	if err := requireRow(res); err != nil {
		return false, err
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, paid_at = now(), updated_at = now()
		WHERE id = $1 AND status <> $2
	`, id, StatusPaid)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *repository) AddNote(ctx context.Context, id int64, note string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_notes (order_id, note) VALUES ($1, $2)
	`, id, note)
	return err
}

func (r *repository) GetNotes(ctx context.Context, id int64) ([]Note, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, note, created_at
		FROM order_notes WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Note, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}
