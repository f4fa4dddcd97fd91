package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/filestore-backup-manager/internal/config"
)

// CloudPlatformScope is the OAuth2 scope required by the Filestore API.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

var (
	ErrNoToken = errors.New("no access token available for gcp auth")
)

// Provider yields an HTTP client that signs every request it sends.
// Implementations never cache the client across calls.
type Provider interface {
	Client(ctx context.Context) (*http.Client, error)
}

// New selects the provider based on cfg.GCP.AuthMethod.
// NOTE: This package never initializes logging; main() does via logx.InitFromEnv().
func New(cfg config.Config) (Provider, error) {
	method := strings.ToLower(strings.TrimSpace(cfg.GCP.AuthMethod))
	timeout := cfg.RequestTimeout
	switch method {
	case "", "adc":
		log.Debug().
			Str("action", "auth_new").
			Str("method", "adc").
			Msg("auth provider selected")
		return &adcProvider{timeout: timeout}, nil

	case "keyfile":
		log.Debug().
			Str("action", "auth_new").
			Str("method", "keyfile").
			Str("path", cfg.GCP.CredentialsFile).
			Msg("auth provider selected")
		return newKeyfileProvider(cfg.GCP.CredentialsFile, timeout)

	case "token":
		log.Debug().
			Str("action", "auth_new").
			Str("method", "token").
			Msg("auth provider selected")
		return &tokenProvider{token: strings.TrimSpace(cfg.GCP.AccessToken), timeout: timeout}, nil

	default:
		return nil, errors.New("unsupported auth method: " + method)
	}
}

// withTimeout bounds every request the signed client makes.
func withTimeout(c *http.Client, d time.Duration) *http.Client {
	if d > 0 {
		c.Timeout = d
	}
	return c
}
