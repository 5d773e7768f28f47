package settings

import (
	"context"
	"errors"
	"strings"

	"vpos-gateway/internal/bancard"
)

var ErrInvalidEnvironment = errors.New("environment must be staging or production")

// UpdateInput carries an admin settings submission. Pointer fields are
// optional: nil keeps the stored value. An empty private key also keeps the
// stored one, since the admin form renders it masked.
type UpdateInput struct {
	Enabled     *bool   `json:"enabled"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Environment *string `json:"environment"`
	PublicKey   *string `json:"public_key"`
	PrivateKey  *string `json:"private_key"`
	Debug       *bool   `json:"debug"`
}

type Service interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, in UpdateInput) (*Settings, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Load(ctx)
}

func (s *service) Update(ctx context.Context, in UpdateInput) (*Settings, error) {
	current, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	if in.Enabled != nil {
		current.Enabled = *in.Enabled
	}
	if in.Title != nil {
		current.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		current.Description = strings.TrimSpace(*in.Description)
	}
	if in.Environment != nil {
		env := strings.TrimSpace(*in.Environment)
		if !bancard.ValidEnvironment(env) {
			return nil, ErrInvalidEnvironment
		}
		current.Environment = env
	}
	if in.PublicKey != nil {
		current.PublicKey = strings.TrimSpace(*in.PublicKey)
	}
	if in.PrivateKey != nil {
		key := strings.TrimSpace(*in.PrivateKey)
		// An empty value or an echo of the masked form keeps the stored key;
		// the mask rune never appears in a real credential.
		if key != "" && !strings.ContainsRune(key, maskRune) {
			current.PrivateKey = key
		}
	}
	if in.Debug != nil {
		current.Debug = *in.Debug
	}

	if err := s.repo.Save(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

const maskRune = '•'

// MaskedPrivateKey renders the stored private key for the admin form without
// exposing it: only the last four characters survive.
func MaskedPrivateKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat(string(maskRune), len(key))
	}
	return strings.Repeat(string(maskRune), len(key)-4) + key[len(key)-4:]
}
