package order

import (
	"context"
	"encoding/json"
	"fmt"

	"vpos-gateway/internal/logger"

	"go.uber.org/zap"
)

type CreateInput struct {
	Amount         float64  `json:"amount"`
	Currency       string   `json:"currency"`
	Description    string   `json:"description"`
	PromotionCodes []string `json:"promotion_codes"`
}

type Service interface {
	Create(ctx context.Context, in CreateInput) (*Order, error)
	Get(ctx context.Context, id int64) (*Order, error)
	GetNotes(ctx context.Context, id int64) ([]Note, error)
	AttachSession(ctx context.Context, id int64, processID, token, environment string) error
	MarkAsPaid(ctx context.Context, id int64, transactionID, authNumber string, raw json.RawMessage) (bool, error)
	MarkAsOnHold(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64, reason string) error
	MarkAsRefunded(ctx context.Context, id int64) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
	}
	if in.Currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrInvalidOrder)
	}

	o := &Order{
		Amount:         in.Amount,
		Currency:       in.Currency,
		Description:    in.Description,
		PromotionCodes: in.PromotionCodes,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}
	return o, nil
}

func (s *service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetNotes(ctx context.Context, id int64) ([]Note, error) {
	return s.repo.GetNotes(ctx, id)
}

func (s *service) AttachSession(ctx context.Context, id int64, processID, token, environment string) error {
	if err := s.repo.SetPaymentSession(ctx, id, processID, token, environment); err != nil {
		return err
	}
	s.addNote(ctx, id, "Esperando pago de Bancard VPOS")
	return nil
}

// MarkAsPaid completes payment exactly once. Transaction identifiers and the
// raw notification are persisted on every verified delivery, but the
// completion note is only written by the call that flipped the status.
func (s *service) MarkAsPaid(ctx context.Context, id int64, transactionID, authNumber string, raw json.RawMessage) (bool, error) {
	completed, err := s.repo.MarkPaid(ctx, id, transactionID, authNumber, raw)
	if err != nil {
		return false, err
	}
	if completed {
		note := "Pago completado exitosamente via Bancard VPOS."
		if transactionID != "" {
			note += fmt.Sprintf(" Transaction ID: %s", transactionID)
		}
		if authNumber != "" {
			note += fmt.Sprintf(" Authorization: %s", authNumber)
		}
		s.addNote(ctx, id, note)
	}
	return completed, nil
}

func (s *service) MarkAsOnHold(ctx context.Context, id int64) error {
	if err := s.repo.UpdateStatus(ctx, id, StatusOnHold); err != nil {
		return err
	}
	s.addNote(ctx, id, "Pago pendiente en Bancard VPOS")
	return nil
}

func (s *service) MarkAsFailed(ctx context.Context, id int64, reason string) error {
	if reason == "" {
		reason = "Pago rechazado"
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusFailed); err != nil {
		return err
	}
	s.addNote(ctx, id, fmt.Sprintf("Pago fallido: %s", reason))
	return nil
}

func (s *service) MarkAsRefunded(ctx context.Context, id int64) error {
	if err := s.repo.UpdateStatus(ctx, id, StatusRefunded); err != nil {
		return err
	}
	s.addNote(ctx, id, "Pago reversado via Bancard VPOS")
	return nil
}

// notes are best-effort annotations; a failed insert must not fail the
// status transition that already happened
func (s *service) addNote(ctx context.Context, id int64, note string) {
	if err := s.repo.AddNote(ctx, id, note); err != nil {
		logger.FromCtx(ctx).Warn("failed to add order note",
			zap.Int64("order_id", id),
			zap.Error(err),
		)
	}
}
