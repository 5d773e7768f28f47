package eventlog

import (
	"encoding/json"
	"time"
)

// Event kinds recorded over a payment's lifetime.
const (
	EventRequest         = "request"
	EventResponse        = "response"
	EventSuccess         = "success"
	EventError           = "error"
	EventWebhookReceived = "webhook_received"
	EventWebhookError    = "webhook_error"
	EventPaymentSuccess  = "payment_success"
	EventPaymentPending  = "payment_pending"
	EventPaymentFailed   = "payment_failed"
	EventConfirmation    = "confirmation"
	EventRollback        = "rollback"
)

// Entry is one immutable diagnostic record. Entries are only ever appended;
// nothing in the payment logic reads them back.
type Entry struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProcessID string          `json:"process_id,omitempty"`
	EventType string          `json:"event_type"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
