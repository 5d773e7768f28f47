package order

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusCreated  Status = "CREATED"
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusOnHold   Status = "ON_HOLD"
	StatusFailed   Status = "FAILED"
	StatusRefunded Status = "REFUNDED"
)

// PaymentMethodBancardVPOS is the only method this service processes; webhook
// deliveries for orders carrying any other method are rejected.
const PaymentMethodBancardVPOS = "bancard_vpos"

type Order struct {
	ID             int64    `json:"id"`
	Amount         float64  `json:"amount"`
	Currency       string   `json:"currency"`
	Description    string   `json:"description"`
	PaymentMethod  string   `json:"payment_method"`
	Status         Status   `json:"status"`
	PromotionCodes []string `json:"promotion_codes,omitempty"`

	// Bancard metadata, written by the payment initiator and the webhook
	ProcessID           string          `json:"process_id,omitempty"`
	RequestToken        string          `json:"-"`
	Environment         string          `json:"environment,omitempty"`
	TransactionID       string          `json:"transaction_id,omitempty"`
	AuthorizationNumber string          `json:"authorization_number,omitempty"`
	LastNotification    json.RawMessage `json:"-"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

// Paid reports whether payment completion already ran for this order.
func (o *Order) Paid() bool {
	return o.Status == StatusPaid
}

// Note is an append-only annotation on an order's history.
type Note struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}
