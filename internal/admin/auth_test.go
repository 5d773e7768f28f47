package admin

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, CheckPasswordHash("s3cret", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("s3cret", "not-a-hash"))
}

func TestAuth_Login(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	auth := NewAuth("jwt-secret", "admin", hash)

	t.Run("Success", func(t *testing.T) {
		token, err := auth.Login("admin", "s3cret")
		require.NoError(t, err)

		claims, err := auth.ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Username)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := auth.Login("admin", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("WrongUsername", func(t *testing.T) {
		_, err := auth.Login("root", "s3cret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuth_ParseToken(t *testing.T) {
	auth := NewAuth("jwt-secret", "admin", "")

	t.Run("Garbage", func(t *testing.T) {
		_, err := auth.ParseToken("not-a-jwt")
		assert.Error(t, err)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewAuth("other-secret", "admin", "")
		token, err := other.GenerateToken("admin")
		require.NoError(t, err)

		_, err = auth.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("Expired", func(t *testing.T) {
		claims := Claims{
			Username: "admin",
			Role:     "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("jwt-secret"))
		require.NoError(t, err)

		_, err = auth.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("WrongAlgorithm", func(t *testing.T) {
		// alg=none tokens must never validate.
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "admin"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = auth.ParseToken(token)
		assert.Error(t, err)
	})
}
