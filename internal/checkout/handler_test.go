package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vpos-gateway/internal/bancard"
	"vpos-gateway/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newHandlerFixture(t *testing.T, client GatewayClient) (*Handler, *MockSettings, *MockOrders, *MockEvents) {
	t.Helper()
	st := new(MockSettings)
	orders := new(MockOrders)
	events := new(MockEvents)
	svc := newTestService(st, orders, events, client)
	return NewHandler(svc, orders), st, orders, events
}

func TestHandler_CreateOrder(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		h, _, orders, _ := newHandlerFixture(t, &stubClient{})
		orders.On("Create", mock.Anything, mock.Anything).Return(&order.Order{
			ID:            42,
			Amount:        150000,
			Currency:      "PYG",
			PaymentMethod: order.PaymentMethodBancardVPOS,
			Status:        order.StatusCreated,
		}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/orders",
			strings.NewReader(`{"amount":150000,"currency":"PYG","description":"Compra"}`))
		rr := httptest.NewRecorder()
		h.CreateOrder(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var got order.Order
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, int64(42), got.ID)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		h, _, _, _ := newHandlerFixture(t, &stubClient{})
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("{not json"))
		rr := httptest.NewRecorder()
		h.CreateOrder(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("ValidationError", func(t *testing.T) {
		h, _, orders, _ := newHandlerFixture(t, &stubClient{})
		orders.On("Create", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: amount must be positive", order.ErrInvalidOrder))

		req := httptest.NewRequest(http.MethodPost, "/api/orders",
			strings.NewReader(`{"amount":0,"currency":"PYG"}`))
		rr := httptest.NewRecorder()
		h.CreateOrder(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandler_Pay(t *testing.T) {
	payReq := func(body string) *http.Request {
		return httptest.NewRequest(http.MethodPost, "/api/checkout/pay", strings.NewReader(body))
	}

	t.Run("Success", func(t *testing.T) {
		client := &stubClient{
			singleBuy: func(ctx context.Context, in bancard.SingleBuyInput) (*bancard.SingleBuyResult, error) {
				return &bancard.SingleBuyResult{ProcessID: "abc-123", Token: "tok"}, nil
			},
		}
		h, st, orders, events := newHandlerFixture(t, client)
		st.On("Get", mock.Anything).Return(configuredSettings(), nil)
		orders.On("Get", mock.Anything, int64(42)).Return(pendingTestOrder(), nil)
		orders.On("AttachSession", mock.Anything, int64(42), mock.Anything, mock.Anything, mock.Anything).Return(nil)
		events.On("Append", mock.Anything, int64(42), mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		rr := httptest.NewRecorder()
		h.Pay(rr, payReq(`{"order_id":42}`))

		require.Equal(t, http.StatusOK, rr.Code)
		var res InitiateResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		assert.Equal(t, "abc-123", res.ProcessID)
		assert.Equal(t, "https://shop.example.com/pay/42", res.RedirectURL)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		h, _, _, _ := newHandlerFixture(t, &stubClient{})
		rr := httptest.NewRecorder()
		h.Pay(rr, payReq(`{"order_id":0}`))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("OrderNotFound", func(t *testing.T) {
		h, st, orders, _ := newHandlerFixture(t, &stubClient{})
		st.On("Get", mock.Anything).Return(configuredSettings(), nil)
		orders.On("Get", mock.Anything, int64(99)).Return(nil, order.ErrOrderNotFound)

		rr := httptest.NewRecorder()
		h.Pay(rr, payReq(`{"order_id":99}`))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("GatewayUnavailable", func(t *testing.T) {
		h, st, _, _ := newHandlerFixture(t, &stubClient{})
		disabled := configuredSettings()
		disabled.Enabled = false
		st.On("Get", mock.Anything).Return(disabled, nil)

		rr := httptest.NewRecorder()
		h.Pay(rr, payReq(`{"order_id":42}`))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "no está disponible")
	})

	t.Run("DeclineCarriesGatewayMessage", func(t *testing.T) {
		client := &stubClient{
			singleBuy: func(ctx context.Context, in bancard.SingleBuyInput) (*bancard.SingleBuyResult, error) {
				return nil, &bancard.APIError{Status: "error", Message: "Transacción rechazada por el emisor"}
			},
		}
		h, st, orders, events := newHandlerFixture(t, client)
		st.On("Get", mock.Anything).Return(configuredSettings(), nil)
		orders.On("Get", mock.Anything, int64(42)).Return(pendingTestOrder(), nil)
		events.On("Append", mock.Anything, int64(42), mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		rr := httptest.NewRecorder()
		h.Pay(rr, payReq(`{"order_id":42}`))

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "Transacción rechazada por el emisor")
	})

	t.Run("TransportErrorIsRetryable", func(t *testing.T) {
		client := &stubClient{
			singleBuy: func(ctx context.Context, in bancard.SingleBuyInput) (*bancard.SingleBuyResult, error) {
				return nil, errors.New("context deadline exceeded")
			},
		}
		h, st, orders, events := newHandlerFixture(t, client)
		st.On("Get", mock.Anything).Return(configuredSettings(), nil)
		orders.On("Get", mock.Anything, int64(42)).Return(pendingTestOrder(), nil)
		events.On("Append", mock.Anything, int64(42), mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		rr := httptest.NewRecorder()
		h.Pay(rr, payReq(`{"order_id":42}`))

		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Contains(t, rr.Body.String(), "intenta nuevamente")
	})
}

func TestHandler_Config(t *testing.T) {
	h, st, _, _ := newHandlerFixture(t, &stubClient{})
	st.On("Get", mock.Anything).Return(configuredSettings(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/checkout/config", nil)
	rr := httptest.NewRecorder()
	h.Config(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var cfg ClientConfig
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cfg))
	assert.Equal(t, "pub-key", cfg.PublicKey)
	assert.NotContains(t, rr.Body.String(), "priv-key")
}
