package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"vpos-gateway/internal/bancard"
	"vpos-gateway/internal/checkout"
	"vpos-gateway/internal/eventlog"
	"vpos-gateway/internal/logger"
	"vpos-gateway/internal/order"
	"vpos-gateway/internal/settings"
	"vpos-gateway/internal/utils"

	"go.uber.org/zap"
)

// Handler exposes the operator surface: login, gateway settings, order
// inspection and the manual rollback/confirmation actions.
type Handler struct {
	auth     *Auth
	settings settings.Service
	orders   order.Service
	events   eventlog.Repository
	checkout *checkout.Service
}

func NewHandler(auth *Auth, st settings.Service, orders order.Service, events eventlog.Repository, co *checkout.Service) *Handler {
	return &Handler{auth: auth, settings: st, orders: orders, events: events, checkout: co}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/admin/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			utils.WriteJSONError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		logger.FromCtx(r.Context()).Error("login failed", zap.Error(err))
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

// settingsResponse is the admin view of the gateway settings: the private key
// is rendered masked, never in full.
type settingsResponse struct {
	Enabled     bool   `json:"enabled"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Environment string `json:"environment"`
	PublicKey   string `json:"public_key"`
	PrivateKey  string `json:"private_key"`
	Debug       bool   `json:"debug"`
}

func maskedSettings(s *settings.Settings) settingsResponse {
	return settingsResponse{
		Enabled:     s.Enabled,
		Title:       s.Title,
		Description: s.Description,
		Environment: s.Environment,
		PublicKey:   s.PublicKey,
		PrivateKey:  settings.MaskedPrivateKey(s.PrivateKey),
		Debug:       s.Debug,
	}
}

// GetSettings handles GET /api/admin/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		logger.FromCtx(r.Context()).Error("failed to load settings", zap.Error(err))
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, maskedSettings(s))
}

// UpdateSettings handles PUT /api/admin/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in settings.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s, err := h.settings.Update(r.Context(), in)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidEnvironment) {
			utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.FromCtx(r.Context()).Error("failed to update settings", zap.Error(err))
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, maskedSettings(s))
}

type orderDetail struct {
	Order  *order.Order     `json:"order"`
	Notes  []order.Note     `json:"notes"`
	Events []eventlog.Entry `json:"events"`
}

// GetOrder handles GET /api/admin/orders/{id}: the order plus its notes and
// gateway event trail, newest events first.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	ord, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	notes, err := h.orders.GetNotes(r.Context(), id)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	events, err := h.events.ListByOrder(r.Context(), id, 0)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, orderDetail{Order: ord, Notes: notes, Events: events})
}

// Rollback handles POST /api/admin/orders/{id}/rollback.
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	if err := h.checkout.Rollback(r.Context(), id); err != nil {
		h.writeGatewayError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "refunded"})
}

// Confirm handles POST /api/admin/orders/{id}/confirmation: asks Bancard for
// the operation's state and reconciles the order.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	n, err := h.checkout.Confirm(r.Context(), id)
	if err != nil {
		h.writeGatewayError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, n)
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteJSONError(w, "invalid order id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, order.ErrOrderNotFound) {
		utils.WriteJSONError(w, "order not found", http.StatusNotFound)
		return
	}
	logger.FromCtx(r.Context()).Error("admin order lookup failed", zap.Error(err))
	utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
}

func (h *Handler) writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *bancard.APIError
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		utils.WriteJSONError(w, "order not found", http.StatusNotFound)
	case errors.Is(err, order.ErrNoSession):
		utils.WriteJSONError(w, "order has no payment session", http.StatusConflict)
	case errors.Is(err, checkout.ErrGatewayUnavailable):
		utils.WriteJSONError(w, "gateway is not configured", http.StatusServiceUnavailable)
	case errors.As(err, &apiErr):
		utils.WriteJSONError(w, apiErr.Message, http.StatusUnprocessableEntity)
	case errors.Is(err, checkout.ErrProcessorUnreachable):
		logger.FromCtx(r.Context()).Error("processor unreachable", zap.Error(err))
		utils.WriteJSONError(w, "payment processor unreachable", http.StatusBadGateway)
	default:
		logger.FromCtx(r.Context()).Error("admin gateway action failed", zap.Error(err))
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
