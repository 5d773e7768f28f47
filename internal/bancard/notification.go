package bancard

import (
	"encoding/json"
	"errors"
	"strconv"
)

var (
	ErrBadPayload      = errors.New("bancard: invalid notification payload")
	ErrMissingOrderRef = errors.New("bancard: notification missing shop_process_id")
)

// Notification is the normalized form of Bancard's payment callback. Bancard
// delivers either {"operation": {...}} or the same fields at the top level;
// both shapes funnel through ParseNotification before any business logic runs.
type Notification struct {
	ShopProcessID       int64           `json:"shop_process_id"`
	Token               string          `json:"-"`
	Response            string          `json:"response,omitempty"`
	ResponseCode        string          `json:"response_code,omitempty"`
	ResponseDescription string          `json:"response_description,omitempty"`
	Amount              string          `json:"amount,omitempty"`
	Currency            string          `json:"currency,omitempty"`
	TicketNumber        string          `json:"ticket_number,omitempty"`
	AuthorizationNumber string          `json:"authorization_number,omitempty"`
	ProcessID           string          `json:"process_id,omitempty"`
	Raw                 json.RawMessage `json:"-"`
}

// Paid reports whether the notification carries an approval.
// Bancard signals success either with response_code "00" or response flag "S".
func (n *Notification) Paid() bool {
	return n.ResponseCode == "00" || n.Response == "S"
}

// Pending reports a deferred authorization (response_code "01").
func (n *Notification) Pending() bool {
	return n.ResponseCode == "01" && !n.Paid()
}

// Reason returns the processor-supplied decline text, if any.
func (n *Notification) Reason() string {
	return n.ResponseDescription
}

// flexString accepts a JSON string or number; Bancard is not consistent about
// which one it sends for ids, amounts and tickets.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type wireOperation struct {
	Token               string     `json:"token"`
	ShopProcessID       flexString `json:"shop_process_id"`
	Response            string     `json:"response"`
	ResponseCode        flexString `json:"response_code"`
	ResponseDescription string     `json:"response_description"`
	ExtendedDescription string     `json:"extended_response_description"`
	Amount              flexString `json:"amount"`
	Currency            string     `json:"currency"`
	TicketNumber        flexString `json:"ticket_number"`
	Ticket              flexString `json:"ticket"`
	AuthorizationNumber flexString `json:"authorization_number"`
	ProcessID           flexString `json:"process_id"`
}

// ParseNotification decodes a webhook body in either of Bancard's two shapes.
// Returns ErrBadPayload for bodies that are not JSON objects and
// ErrMissingOrderRef when no order reference can be resolved.
func ParseNotification(body []byte) (*Notification, error) {
	var envelope struct {
		Operation json.RawMessage `json:"operation"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, ErrBadPayload
	}

	opBody := body
	if len(envelope.Operation) > 0 && string(envelope.Operation) != "null" {
		opBody = envelope.Operation
	}

	var op wireOperation
	if err := json.Unmarshal(opBody, &op); err != nil {
		return nil, ErrBadPayload
	}

	if op.ShopProcessID == "" {
		return nil, ErrMissingOrderRef
	}
	shopID, err := strconv.ParseInt(string(op.ShopProcessID), 10, 64)
	if err != nil {
		return nil, ErrMissingOrderRef
	}

	// ticket_number and ticket are the same field under two names
	ticket := string(op.TicketNumber)
	if ticket == "" {
		ticket = string(op.Ticket)
	}

	desc := op.ResponseDescription
	if desc == "" {
		desc = op.ExtendedDescription
	}

	return &Notification{
		ShopProcessID:       shopID,
		Token:               op.Token,
		Response:            op.Response,
		ResponseCode:        string(op.ResponseCode),
		ResponseDescription: desc,
		Amount:              string(op.Amount),
		Currency:            op.Currency,
		TicketNumber:        ticket,
		AuthorizationNumber: string(op.AuthorizationNumber),
		ProcessID:           string(op.ProcessID),
		Raw:                 json.RawMessage(body),
	}, nil
}
