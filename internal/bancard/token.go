package bancard

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"strconv"
)

// FormatAmount normalizes a monetary amount to the fixed two-decimal string
// Bancard expects in operation payloads and token digests. An order total of
// 1000 and 1000.00 both normalize to "1000.00".
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Bancard's token scheme is md5-based; the digest authenticates requests
// against the shop's private key, it is not a password hash.
func digest(parts ...string) string {
	h := md5.New()
	for _, p := range parts {
		_, _ = io.WriteString(h, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SingleBuyToken signs an outbound single_buy request.
func SingleBuyToken(privateKey string, shopProcessID int64, amount, currency string) string {
	return digest(privateKey, strconv.FormatInt(shopProcessID, 10), amount, currency)
}

// ConfirmationToken signs a confirmation (status lookup) request.
func ConfirmationToken(privateKey string, shopProcessID int64) string {
	return digest(privateKey, strconv.FormatInt(shopProcessID, 10), "get_confirmation")
}

// RollbackToken signs a rollback request. Rollback always signs a zeroed amount.
func RollbackToken(privateKey string, shopProcessID int64) string {
	return digest(privateKey, strconv.FormatInt(shopProcessID, 10), "rollback", "0.00")
}

// VerifyNotificationToken checks a webhook token against every digest formula
// Bancard has used across API revisions. The processor documentation does not
// pin a single input ordering, so every known candidate is tried before
// rejecting, and each comparison is constant time.
func VerifyNotificationToken(privateKey string, n *Notification) bool {
	if n == nil || n.Token == "" {
		return false
	}

	shopID := strconv.FormatInt(n.ShopProcessID, 10)
	amount := n.Amount
	if amount != "" {
		if f, err := strconv.ParseFloat(amount, 64); err == nil {
			amount = FormatAmount(f)
		}
	}

	candidates := []string{
		// classic: private_key + shop_process_id + amount + currency
		digest(privateKey, shopID, amount, n.Currency),
		// single buy confirm: private_key + shop_process_id + "confirm" + amount + currency
		digest(privateKey, shopID, "confirm", amount, n.Currency),
	}
	if n.Response != "" {
		candidates = append(candidates,
			digest(privateKey, shopID, amount, n.Currency, n.Response),
			digest(privateKey, n.Response, shopID, amount, n.Currency),
		)
	}
	if n.ResponseCode != "" {
		candidates = append(candidates,
			digest(privateKey, shopID, amount, n.Currency, n.ResponseCode),
			digest(privateKey, n.ResponseCode, shopID, amount, n.Currency),
		)
	}

	received := []byte(n.Token)
	ok := false
	for _, c := range candidates {
		if subtle.ConstantTimeCompare([]byte(c), received) == 1 {
			ok = true
		}
	}
	return ok
}
