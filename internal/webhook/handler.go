package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"vpos-gateway/internal/bancard"
	"vpos-gateway/internal/eventlog"
	"vpos-gateway/internal/logger"
	"vpos-gateway/internal/order"
	"vpos-gateway/internal/settings"
	"vpos-gateway/internal/utils"

	"go.uber.org/zap"
)

// maxBodySize caps notification bodies; Bancard's payloads are tiny.
const maxBodySize = 1 << 20

// Handler receives Bancard's server-to-server payment confirmations. This is
// the only place payment state is decided: shopper-facing redirects never
// change an order.
type Handler struct {
	settings settings.Service
	orders   order.Service
	events   eventlog.Repository
}

func NewHandler(st settings.Service, orders order.Service, events eventlog.Repository) *Handler {
	return &Handler{settings: st, orders: orders, events: events}
}

// ServeHTTP handles POST /webhook/bancard.
//
// Response contract: 200 with {"status":"success"} acknowledges the delivery
// (including replays), 400 rejects malformed payloads, 403 rejects bad
// tokens, 404 rejects unknown orders. Rejections carry empty bodies so the
// processor retries.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Warn("failed to read webhook body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	n, err := bancard.ParseNotification(body)
	if err != nil {
		log.Warn("rejected malformed webhook payload",
			zap.Error(err),
			zap.Int("body_size", len(body)),
		)
		// order id 0: the payload carried no usable order reference
		h.logEvent(ctx, 0, "", eventlog.EventWebhookError, "Notificación con formato inválido", rawOrNil(body))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logEvent(ctx, n.ShopProcessID, n.ProcessID, eventlog.EventWebhookReceived, "Notificación recibida de Bancard", body)

	cfg, err := h.settings.Get(ctx)
	if err != nil {
		log.Error("failed to load gateway settings", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	ord, err := h.orders.Get(ctx, n.ShopProcessID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			log.Warn("webhook for unknown order", zap.Int64("shop_process_id", n.ShopProcessID))
			h.logEvent(ctx, n.ShopProcessID, n.ProcessID, eventlog.EventWebhookError, "Notificación para orden desconocida", body)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		log.Error("failed to load order", zap.Int64("shop_process_id", n.ShopProcessID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if ord.PaymentMethod != order.PaymentMethodBancardVPOS {
		log.Warn("webhook for order with another payment method",
			zap.Int64("order_id", ord.ID),
			zap.String("payment_method", ord.PaymentMethod),
		)
		h.logEvent(ctx, ord.ID, n.ProcessID, eventlog.EventWebhookError, "Notificación para orden de otro método de pago", body)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !bancard.VerifyNotificationToken(cfg.PrivateKey, n) {
		log.Warn("webhook token verification failed", zap.Int64("order_id", ord.ID))
		h.logEvent(ctx, ord.ID, n.ProcessID, eventlog.EventWebhookError, "Token de notificación inválido", body)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	switch {
	case n.Paid():
		completed, err := h.orders.MarkAsPaid(ctx, ord.ID, n.TicketNumber, n.AuthorizationNumber, n.Raw)
		if err != nil {
			log.Error("failed to mark order paid", zap.Int64("order_id", ord.ID), zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if completed {
			h.logEvent(ctx, ord.ID, n.ProcessID, eventlog.EventPaymentSuccess, "Pago aprobado", nil)
		} else {
			log.Info("duplicate approval acknowledged", zap.Int64("order_id", ord.ID))
		}

	case n.Pending():
		if err := h.orders.MarkAsOnHold(ctx, ord.ID); err != nil {
			log.Error("failed to mark order on hold", zap.Int64("order_id", ord.ID), zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		h.logEvent(ctx, ord.ID, n.ProcessID, eventlog.EventPaymentPending, "Pago pendiente de confirmación", nil)

	default:
		if err := h.orders.MarkAsFailed(ctx, ord.ID, n.Reason()); err != nil {
			log.Error("failed to mark order failed", zap.Int64("order_id", ord.ID), zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		h.logEvent(ctx, ord.ID, n.ProcessID, eventlog.EventPaymentFailed, "Pago rechazado: "+n.Reason(), nil)
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// rawOrNil keeps a rejected body for the event trail. Bodies that are not
// valid JSON are wrapped in a JSON string so the payload column accepts them.
func rawOrNil(body []byte) []byte {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return body
	}
	wrapped, err := json.Marshal(map[string]string{"raw": string(body)})
	if err != nil {
		return nil
	}
	return wrapped
}

func (h *Handler) logEvent(ctx context.Context, orderID int64, processID, kind, message string, payload []byte) {
	if err := h.events.Append(ctx, orderID, processID, kind, message, payload); err != nil {
		logger.FromCtx(ctx).Warn("failed to append gateway event",
			zap.Int64("order_id", orderID),
			zap.String("event_type", kind),
			zap.Error(err),
		)
	}
}
