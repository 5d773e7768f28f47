package admin

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Auth issues and validates the tokens protecting the admin surface. A single
// operator account is configured through the environment.
type Auth struct {
	secret       []byte
	username     string
	passwordHash string
	ttl          time.Duration
}

func NewAuth(secret, username, passwordHash string) *Auth {
	return &Auth{
		secret:       []byte(secret),
		username:     username,
		passwordHash: passwordHash,
		ttl:          24 * time.Hour,
	}
}

// Login validates the operator credentials and returns a signed token.
func (a *Auth) Login(username, password string) (string, error) {
	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	if !CheckPasswordHash(password, a.passwordHash) || !usernameOK {
		return "", ErrInvalidCredentials
	}
	return a.GenerateToken(username)
}

func (a *Auth) GenerateToken(username string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("JWT secret is not set")
	}

	claims := Claims{
		Username: username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return a.secret, nil
		},
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
