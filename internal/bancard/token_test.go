package bancard

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1000.00", FormatAmount(1000))
	assert.Equal(t, "1000.00", FormatAmount(1000.00))
	assert.Equal(t, "1000.50", FormatAmount(1000.5))
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "123456.78", FormatAmount(123456.78))
}

func TestSingleBuyToken(t *testing.T) {
	got := SingleBuyToken("priv", 41, "1000.00", "PYG")
	assert.Equal(t, md5hex("priv411000.00PYG"), got)
}

func TestConfirmationAndRollbackTokens(t *testing.T) {
	assert.Equal(t, md5hex("priv41get_confirmation"), ConfirmationToken("priv", 41))
	assert.Equal(t, md5hex("priv41rollback0.00"), RollbackToken("priv", 41))
}

func TestVerifyNotificationToken(t *testing.T) {
	const priv = "secret-key"

	base := func() *Notification {
		return &Notification{
			ShopProcessID: 77,
			Amount:        "1500.00",
			Currency:      "PYG",
			Response:      "S",
			ResponseCode:  "00",
		}
	}

	candidates := map[string]string{
		"classic":                md5hex(priv + "77" + "1500.00" + "PYG"),
		"confirm_infix":          md5hex(priv + "77" + "confirm" + "1500.00" + "PYG"),
		"response_suffix":        md5hex(priv + "77" + "1500.00" + "PYG" + "S"),
		"response_prefix":        md5hex(priv + "S" + "77" + "1500.00" + "PYG"),
		"response_code_suffix":   md5hex(priv + "77" + "1500.00" + "PYG" + "00"),
		"response_code_prefix":   md5hex(priv + "00" + "77" + "1500.00" + "PYG"),
	}

	for name, token := range candidates {
		t.Run("Accepts_"+name, func(t *testing.T) {
			n := base()
			n.Token = token
			assert.True(t, VerifyNotificationToken(priv, n))
		})
	}

	t.Run("Rejects_unknown_token", func(t *testing.T) {
		n := base()
		n.Token = md5hex("something-else")
		assert.False(t, VerifyNotificationToken(priv, n))
	})

	t.Run("Rejects_missing_token", func(t *testing.T) {
		n := base()
		n.Token = ""
		assert.False(t, VerifyNotificationToken(priv, n))
	})

	t.Run("Rejects_nil", func(t *testing.T) {
		assert.False(t, VerifyNotificationToken(priv, nil))
	})

	t.Run("Rejects_wrong_private_key", func(t *testing.T) {
		n := base()
		n.Token = md5hex("other-key" + "77" + "1500.00" + "PYG")
		assert.False(t, VerifyNotificationToken(priv, n))
	})
}

// A callback signed over the integer rendering of the amount must still verify
// after normalization, and vice versa.
func TestVerifyNotificationToken_AmountNormalization(t *testing.T) {
	const priv = "secret-key"

	for _, wire := range []string{"1000", "1000.00", "1000.0"} {
		t.Run(fmt.Sprintf("wire_amount_%s", wire), func(t *testing.T) {
			n := &Notification{
				ShopProcessID: 12,
				Amount:        wire,
				Currency:      "PYG",
				Token:         md5hex(priv + "12" + "1000.00" + "PYG"),
			}
			assert.True(t, VerifyNotificationToken(priv, n))
		})
	}
}
