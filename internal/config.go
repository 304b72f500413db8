package internal

import (
	"strings"
	"time"

	"duochat/domain"
)

type Config struct {
	Host              string        `env:"HOST"`
	Port              int           `env:"PORT,default=3000"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	SecretPhraseHash  string        `env:"SECRET_PHRASE_HASH,required=true"`
	JWTSigningKey     string        `env:"JWT_SIGNING_KEY,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	Whitelist         string        `env:"WHITELIST,required=true"`
	AllowLegacyJoin   bool          `env:"ALLOW_LEGACY_JOIN,default=false"`
	HealthInterval    time.Duration `env:"HEALTH_INTERVAL,default=5s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Identities parses the comma-separated whitelist. Blank entries are
// skipped so a trailing comma cannot whitelist the empty identity.
func (c Config) Identities() []domain.Identity {
	var identities []domain.Identity
	for _, raw := range strings.Split(c.Whitelist, ",") {
		if name := strings.TrimSpace(raw); name != "" {
			identities = append(identities, domain.Identity(name))
		}
	}
	return identities
}
