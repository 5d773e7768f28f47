package bancard

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vpos-gateway/internal/logger"

	"go.uber.org/zap"
)

const (
	EnvProduction = "production"
	EnvStaging    = "staging"

	apiBaseProduction = "https://vpos.infonet.com.py"
	apiBaseStaging    = "https://vpos.infonet.com.py:8888"

	singleBuyPath      = "/vpos/api/0.3/single_buy"
	confirmationPath   = "/vpos/api/0.3/confirmation"
	rollbackPath       = "/vpos/api/0.3/rollback"
	checkoutScriptPath = "/checkout/javascript/dist/bancard-checkout-4.0.0.js"

	userAgent = "vpos-gateway/2.0"
)

func ValidEnvironment(env string) bool {
	return env == EnvProduction || env == EnvStaging
}

// CheckoutScriptURL returns the hosted-form script for the given environment.
func CheckoutScriptURL(env string) string {
	if env == EnvProduction {
		return apiBaseProduction + checkoutScriptPath
	}
	return apiBaseStaging + checkoutScriptPath
}

// Config carries the per-request gateway credentials. It is injected by the
// caller on every operation; the client holds no ambient settings state.
type Config struct {
	Environment string
	PublicKey   string
	PrivateKey  string
	// BaseURL overrides the environment endpoint (tests, proxies).
	BaseURL string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	transport := &http.Transport{}
	if cfg.Environment != EnvProduction {
		// staging terminates TLS with a lab certificate
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (c *Client) baseURL() string {
	if c.cfg.BaseURL != "" {
		return c.cfg.BaseURL
	}
	if c.cfg.Environment == EnvProduction {
		return apiBaseProduction
	}
	return apiBaseStaging
}

// APIError is a business-level rejection reported by Bancard with a 200-class
// response. Transport and non-200 failures are returned as plain errors.
type APIError struct {
	Status  string
	Message string
	Raw     json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bancard: %s", e.Message)
}

// Operation is the signed payload inside every VPOS request.
type Operation struct {
	Token          string `json:"token"`
	ShopProcessID  int64  `json:"shop_process_id"`
	Currency       string `json:"currency,omitempty"`
	Amount         string `json:"amount,omitempty"`
	Description    string `json:"description,omitempty"`
	ReturnURL      string `json:"return_url,omitempty"`
	CancelURL      string `json:"cancel_url,omitempty"`
	AdditionalData string `json:"additional_data,omitempty"`
}

type apiRequest struct {
	PublicKey string    `json:"public_key"`
	Operation Operation `json:"operation"`
}

type SingleBuyInput struct {
	ShopProcessID  int64
	Amount         float64
	Currency       string
	Description    string
	ReturnURL      string
	CancelURL      string
	PromotionCodes []string
}

type SingleBuyResult struct {
	ProcessID string
	Token     string
	Amount    string
	Raw       json.RawMessage
}

// SingleBuy opens a payment session for an order. On success Bancard returns a
// process id that the hosted form is mounted with.
func (c *Client) SingleBuy(ctx context.Context, in SingleBuyInput) (*SingleBuyResult, error) {
	amount := FormatAmount(in.Amount)
	op := Operation{
		Token:         SingleBuyToken(c.cfg.PrivateKey, in.ShopProcessID, amount, in.Currency),
		ShopProcessID: in.ShopProcessID,
		Currency:      in.Currency,
		Amount:        amount,
		Description:   in.Description,
		ReturnURL:     in.ReturnURL,
		CancelURL:     in.CancelURL,
	}

	// additional_data only carries special cases (promotions); Bancard
	// rejects it when present but empty
	if len(in.PromotionCodes) > 0 {
		extra, err := json.Marshal(map[string]string{
			"promotion_code": strings.Join(in.PromotionCodes, ","),
		})
		if err != nil {
			return nil, err
		}
		op.AdditionalData = string(extra)
	}

	raw, err := c.post(ctx, singleBuyPath, apiRequest{PublicKey: c.cfg.PublicKey, Operation: op})
	if err != nil {
		return nil, err
	}

	var res struct {
		Status    string     `json:"status"`
		ProcessID flexString `json:"process_id"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("bancard: decoding single_buy response: %w", err)
	}

	// current API answers {"status":"success","process_id":...}; older
	// revisions answered with a bare process_id
	if (res.Status == "success" || res.Status == "") && res.ProcessID != "" {
		return &SingleBuyResult{
			ProcessID: string(res.ProcessID),
			Token:     op.Token,
			Amount:    amount,
			Raw:       raw,
		}, nil
	}

	return nil, &APIError{Status: res.Status, Message: extractErrorMessage(raw), Raw: raw}
}

// Confirmation asks Bancard for the final state of a single_buy. Used for
// manual reconciliation when a webhook was missed.
func (c *Client) Confirmation(ctx context.Context, shopProcessID int64) (*Notification, error) {
	op := Operation{
		Token:         ConfirmationToken(c.cfg.PrivateKey, shopProcessID),
		ShopProcessID: shopProcessID,
	}

	raw, err := c.post(ctx, confirmationPath, apiRequest{PublicKey: c.cfg.PublicKey, Operation: op})
	if err != nil {
		return nil, err
	}

	var res struct {
		Status       string          `json:"status"`
		Confirmation json.RawMessage `json:"confirmation"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("bancard: decoding confirmation response: %w", err)
	}
	if res.Status != "success" || len(res.Confirmation) == 0 {
		return nil, &APIError{Status: res.Status, Message: extractErrorMessage(raw), Raw: raw}
	}

	n, err := ParseNotification(res.Confirmation)
	if err != nil {
		return nil, fmt.Errorf("bancard: decoding confirmation operation: %w", err)
	}
	n.Raw = raw
	return n, nil
}

// Rollback voids a pending or captured single_buy.
func (c *Client) Rollback(ctx context.Context, shopProcessID int64) (json.RawMessage, error) {
	op := Operation{
		Token:         RollbackToken(c.cfg.PrivateKey, shopProcessID),
		ShopProcessID: shopProcessID,
	}

	raw, err := c.post(ctx, rollbackPath, apiRequest{PublicKey: c.cfg.PublicKey, Operation: op})
	if err != nil {
		return nil, err
	}

	var res struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("bancard: decoding rollback response: %w", err)
	}
	if res.Status != "success" {
		return nil, &APIError{Status: res.Status, Message: extractErrorMessage(raw), Raw: raw}
	}
	return raw, nil
}

// post sends one JSON request. Single attempt, no retries; a failure here is
// surfaced to the caller immediately.
func (c *Client) post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.L().Error("Bancard request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("bancard: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bancard: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.L().Error("Bancard returned non-200 status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBody),
		)
		return nil, fmt.Errorf("bancard: http %d: %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// extractErrorMessage pulls a human-readable message from whichever of
// Bancard's known error shapes is present.
func extractErrorMessage(raw json.RawMessage) string {
	var data struct {
		Messages    json.RawMessage `json:"messages"`
		Message     string          `json:"message"`
		Status      string          `json:"status"`
		Description string          `json:"description"`
		ProcessID   flexString      `json:"process_id"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return "Respuesta inválida del servidor de pagos"
	}

	if len(data.Messages) > 0 {
		// messages is either a list of strings or of {key,level,dsc} objects
		var plain []string
		if err := json.Unmarshal(data.Messages, &plain); err == nil && len(plain) > 0 {
			return strings.Join(plain, ". ")
		}
		var structured []struct {
			Key string `json:"key"`
			Dsc string `json:"dsc"`
		}
		if err := json.Unmarshal(data.Messages, &structured); err == nil && len(structured) > 0 {
			parts := make([]string, 0, len(structured))
			for _, m := range structured {
				if m.Dsc != "" {
					parts = append(parts, m.Dsc)
				} else if m.Key != "" {
					parts = append(parts, m.Key)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, ". ")
			}
		}
	}

	if data.Message != "" {
		return data.Message
	}
	if data.Status != "" && data.Status != "success" {
		if data.Description != "" {
			return data.Description
		}
		return fmt.Sprintf("Error en la respuesta: %s", data.Status)
	}
	if data.ProcessID == "" && data.Status == "" {
		return "Respuesta inválida del servidor de pagos"
	}
	return "Error desconocido en el procesamiento del pago"
}
