package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"vpos-gateway/internal/bancard"
	"vpos-gateway/internal/logger"
	"vpos-gateway/internal/order"
	"vpos-gateway/internal/utils"

	"go.uber.org/zap"
)

type Handler struct {
	svc    *Service
	orders order.Service
}

func NewHandler(svc *Service, orders order.Service) *Handler {
	return &Handler{svc: svc, orders: orders}
}

// CreateOrder handles POST /api/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var in order.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ord, err := h.orders.Create(r.Context(), in)
	if err != nil {
		if errors.Is(err, order.ErrInvalidOrder) {
			utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.FromCtx(r.Context()).Error("failed to create order", zap.Error(err))
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, ord)
}

type payRequest struct {
	OrderID int64 `json:"order_id"`
}

// Pay handles POST /api/checkout/pay.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID <= 0 {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.InitiatePayment(r.Context(), req.OrderID)
	if err != nil {
		h.writePaymentError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, res)
}

// Config handles GET /api/checkout/config.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.ClientConfig(r.Context())
	if err != nil {
		logger.FromCtx(r.Context()).Error("failed to load checkout config", zap.Error(err))
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, cfg)
}

func (h *Handler) writePaymentError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromCtx(r.Context())

	var apiErr *bancard.APIError
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		utils.WriteJSONError(w, "order not found", http.StatusNotFound)
	case errors.Is(err, order.ErrWrongPaymentMethod):
		utils.WriteJSONError(w, "order is not payable with Bancard VPOS", http.StatusBadRequest)
	case errors.Is(err, ErrGatewayUnavailable):
		utils.WriteJSONError(w, "El método de pago no está disponible", http.StatusServiceUnavailable)
	case errors.As(err, &apiErr):
		utils.WriteJSONError(w, apiErr.Message, http.StatusUnprocessableEntity)
	case errors.Is(err, ErrProcessorUnreachable):
		log.Error("payment processor unreachable", zap.Error(err))
		utils.WriteJSONError(w, "Error de conexión con Bancard. Por favor intenta nuevamente.", http.StatusBadGateway)
	default:
		log.Error("failed to initiate payment", zap.Error(err))
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
