package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"vpos-gateway/internal/bancard"
	"vpos-gateway/internal/eventlog"
	"vpos-gateway/internal/logger"
	"vpos-gateway/internal/order"
	"vpos-gateway/internal/settings"

	"go.uber.org/zap"
)

var (
	// ErrGatewayUnavailable means the gateway is disabled or the credentials
	// are not configured; it never reaches the payment logic.
	ErrGatewayUnavailable = errors.New("payment gateway not available")

	// ErrProcessorUnreachable wraps transport failures on the single outbound
	// attempt. The shopper may retry; the order was not touched.
	ErrProcessorUnreachable = errors.New("payment processor unreachable")
)

// GatewayClient is the slice of the Bancard client the checkout flow uses.
type GatewayClient interface {
	SingleBuy(ctx context.Context, in bancard.SingleBuyInput) (*bancard.SingleBuyResult, error)
	Confirmation(ctx context.Context, shopProcessID int64) (*bancard.Notification, error)
	Rollback(ctx context.Context, shopProcessID int64) (json.RawMessage, error)
}

// ClientFactory builds a gateway client for the settings in force at call
// time. Settings are read on every operation, so the client is constructed per
// request rather than held.
type ClientFactory func(cfg bancard.Config) GatewayClient

func defaultClientFactory(cfg bancard.Config) GatewayClient {
	return bancard.NewClient(cfg)
}

type Service struct {
	settings  settings.Service
	orders    order.Service
	events    eventlog.Repository
	newClient ClientFactory
	baseURL   string
}

func NewService(st settings.Service, orders order.Service, events eventlog.Repository, baseURL string) *Service {
	return &Service{
		settings:  st,
		orders:    orders,
		events:    events,
		newClient: defaultClientFactory,
		baseURL:   baseURL,
	}
}

// WithClientFactory overrides how gateway clients are built (tests).
func (s *Service) WithClientFactory(f ClientFactory) *Service {
	s.newClient = f
	return s
}

type InitiateResult struct {
	ProcessID   string `json:"process_id"`
	RedirectURL string `json:"redirect"`
}

// InitiatePayment opens a Bancard session for the order. On success the order
// holds the new process id and is PENDING; on any error path the order is left
// completely unmodified.
func (s *Service) InitiatePayment(ctx context.Context, orderID int64) (*InitiateResult, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading gateway settings: %w", err)
	}
	if !cfg.Available() {
		return nil, ErrGatewayUnavailable
	}

	ord, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.PaymentMethod != order.PaymentMethodBancardVPOS {
		return nil, order.ErrWrongPaymentMethod
	}

	description := ord.Description
	if description == "" {
		description = fmt.Sprintf("Orden #%d", ord.ID)
	}

	in := bancard.SingleBuyInput{
		ShopProcessID:  ord.ID,
		Amount:         ord.Amount,
		Currency:       ord.Currency,
		Description:    description,
		ReturnURL:      fmt.Sprintf("%s/pay/%d/return", s.baseURL, ord.ID),
		CancelURL:      fmt.Sprintf("%s/pay/%d/cancel", s.baseURL, ord.ID),
		PromotionCodes: ord.PromotionCodes,
	}

	s.logEvent(ctx, ord.ID, "", eventlog.EventRequest, "Enviando solicitud a Bancard", map[string]interface{}{
		"shop_process_id": ord.ID,
		"amount":          bancard.FormatAmount(ord.Amount),
		"currency":        ord.Currency,
		"environment":     cfg.Environment,
	})

	client := s.newClient(bancard.Config{
		Environment: cfg.Environment,
		PublicKey:   cfg.PublicKey,
		PrivateKey:  cfg.PrivateKey,
	})

	res, err := client.SingleBuy(ctx, in)
	if err != nil {
		var apiErr *bancard.APIError
		if errors.As(err, &apiErr) {
			s.logEvent(ctx, ord.ID, "", eventlog.EventError, "Error de Bancard: "+apiErr.Message, apiErr.Raw)
			return nil, err
		}
		s.logEvent(ctx, ord.ID, "", eventlog.EventError, "Error en API: "+err.Error(), nil)
		return nil, fmt.Errorf("%w: %v", ErrProcessorUnreachable, err)
	}

	s.logEvent(ctx, ord.ID, res.ProcessID, eventlog.EventResponse, "Respuesta de Bancard", res.Raw)

	if err := s.orders.AttachSession(ctx, ord.ID, res.ProcessID, res.Token, cfg.Environment); err != nil {
		return nil, fmt.Errorf("storing payment session: %w", err)
	}

	s.logEvent(ctx, ord.ID, res.ProcessID, eventlog.EventSuccess, "Process ID obtenido exitosamente", nil)

	return &InitiateResult{
		ProcessID:   res.ProcessID,
		RedirectURL: fmt.Sprintf("%s/pay/%d", s.baseURL, ord.ID),
	}, nil
}

// PageData is everything the hosted-form page needs. The private key is never
// part of it.
type PageData struct {
	OrderID   int64
	ProcessID string
	ScriptURL string
	Title     string
	Amount    string
	Currency  string
	Status    order.Status
}

func (s *Service) PaymentPage(ctx context.Context, orderID int64) (*PageData, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	ord, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// A completed order must never remount the live form.
	if ord.Paid() {
		return nil, order.ErrAlreadyPaid
	}
	if ord.ProcessID == "" {
		return nil, order.ErrNoSession
	}

	env := ord.Environment
	if env == "" {
		env = cfg.Environment
	}

	return &PageData{
		OrderID:   ord.ID,
		ProcessID: ord.ProcessID,
		ScriptURL: bancard.CheckoutScriptURL(env),
		Title:     cfg.Title,
		Amount:    bancard.FormatAmount(ord.Amount),
		Currency:  ord.Currency,
		Status:    ord.Status,
	}, nil
}

// ClientConfig is the shopper-facing configuration payload. It exposes the
// public credential and environment only; the private key stays server-side.
type ClientConfig struct {
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	Enabled           bool              `json:"enabled"`
	Supports          []string          `json:"supports"`
	Environment       string            `json:"environment"`
	PublicKey         string            `json:"public_key"`
	CheckoutScriptURL string            `json:"checkout_script_url"`
	Debug             bool              `json:"debug"`
	Messages          map[string]string `json:"messages"`
}

func (s *Service) ClientConfig(ctx context.Context) (*ClientConfig, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	return &ClientConfig{
		Title:             cfg.Title,
		Description:       cfg.Description,
		Enabled:           cfg.Available(),
		Supports:          []string{"products", "refunds"},
		Environment:       cfg.Environment,
		PublicKey:         cfg.PublicKey,
		CheckoutScriptURL: bancard.CheckoutScriptURL(cfg.Environment),
		Debug:             cfg.Debug,
		Messages: map[string]string{
			"processing":       "Procesando pago...",
			"redirecting":      "Redirigiendo a Bancard...",
			"error":            "Error en el procesamiento del pago",
			"complete_payment": "Completa tu pago en el formulario seguro de Bancard",
			"secure_payment":   "Pago seguro con Bancard VPOS",
		},
	}, nil
}

// Rollback voids the order's Bancard operation and marks the order refunded.
func (s *Service) Rollback(ctx context.Context, orderID int64) error {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !cfg.Available() {
		return ErrGatewayUnavailable
	}

	ord, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if ord.ProcessID == "" {
		return order.ErrNoSession
	}

	client := s.newClient(bancard.Config{
		Environment: cfg.Environment,
		PublicKey:   cfg.PublicKey,
		PrivateKey:  cfg.PrivateKey,
	})

	raw, err := client.Rollback(ctx, ord.ID)
	if err != nil {
		var apiErr *bancard.APIError
		if errors.As(err, &apiErr) {
			s.logEvent(ctx, ord.ID, ord.ProcessID, eventlog.EventError, "Rollback rechazado: "+apiErr.Message, apiErr.Raw)
			return err
		}
		s.logEvent(ctx, ord.ID, ord.ProcessID, eventlog.EventError, "Error en rollback: "+err.Error(), nil)
		return fmt.Errorf("%w: %v", ErrProcessorUnreachable, err)
	}

	s.logEvent(ctx, ord.ID, ord.ProcessID, eventlog.EventRollback, "Operación reversada en Bancard", raw)
	return s.orders.MarkAsRefunded(ctx, ord.ID)
}

// Confirm asks Bancard for the operation's final state and reconciles the
// order if an approval was missed (for example a dropped webhook).
func (s *Service) Confirm(ctx context.Context, orderID int64) (*bancard.Notification, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Available() {
		return nil, ErrGatewayUnavailable
	}

	ord, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	client := s.newClient(bancard.Config{
		Environment: cfg.Environment,
		PublicKey:   cfg.PublicKey,
		PrivateKey:  cfg.PrivateKey,
	})

	n, err := client.Confirmation(ctx, ord.ID)
	if err != nil {
		var apiErr *bancard.APIError
		if errors.As(err, &apiErr) {
			s.logEvent(ctx, ord.ID, ord.ProcessID, eventlog.EventError, "Confirmación rechazada: "+apiErr.Message, apiErr.Raw)
			return nil, err
		}
		s.logEvent(ctx, ord.ID, ord.ProcessID, eventlog.EventError, "Error en confirmación: "+err.Error(), nil)
		return nil, fmt.Errorf("%w: %v", ErrProcessorUnreachable, err)
	}

	s.logEvent(ctx, ord.ID, n.ProcessID, eventlog.EventConfirmation, "Confirmación recibida de Bancard", n.Raw)

	if n.Paid() && !ord.Paid() {
		if _, err := s.orders.MarkAsPaid(ctx, ord.ID, n.TicketNumber, n.AuthorizationNumber, n.Raw); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// logEvent appends a diagnostic record; failures are logged and swallowed so
// diagnostics never break a payment.
func (s *Service) logEvent(ctx context.Context, orderID int64, processID, kind, message string, payload interface{}) {
	var raw json.RawMessage
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		raw = p
	default:
		raw, _ = json.Marshal(p)
	}
	if err := s.events.Append(ctx, orderID, processID, kind, message, raw); err != nil {
		logger.FromCtx(ctx).Warn("failed to append gateway event",
			zap.Int64("order_id", orderID),
			zap.String("event_type", kind),
			zap.Error(err),
		)
	}
}
