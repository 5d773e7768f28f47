package settings

import "vpos-gateway/internal/bancard"

// Settings is the gateway configuration singleton. It is read on every
// operation and written only through the admin settings surface.
type Settings struct {
	Enabled     bool   `json:"enabled"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Environment string `json:"environment"`
	PublicKey   string `json:"public_key"`
	PrivateKey  string `json:"-"`
	Debug       bool   `json:"debug"`
}

// Defaults mirror the install-time configuration: staging, enabled, no keys.
func Defaults() *Settings {
	return &Settings{
		Enabled:     true,
		Title:       "Tarjeta de Crédito/Débito",
		Description: "Pagar de forma segura con tu tarjeta a través de Bancard VPOS",
		Environment: bancard.EnvStaging,
		PublicKey:   "",
		PrivateKey:  "",
		Debug:       false,
	}
}

// Available reports whether the gateway can be offered to shoppers: it must be
// enabled and both credentials must be configured.
func (s *Settings) Available() bool {
	return s.Enabled && s.PublicKey != "" && s.PrivateKey != ""
}

// setting keys as stored in gateway_settings
const (
	keyEnabled     = "enabled"
	keyTitle       = "title"
	keyDescription = "description"
	keyEnvironment = "environment"
	keyPublicKey   = "public_key"
	keyPrivateKey  = "private_key"
	keyDebug       = "debug"
)
