package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// adcProvider uses Application Default Credentials: the metadata server on
// Cloud Run/Functions/GCE, or the gcloud user credentials locally.
type adcProvider struct {
	timeout time.Duration
}

func (p *adcProvider) Client(ctx context.Context) (*http.Client, error) {
	c, err := google.DefaultClient(ctx, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("application default credentials: %w", err)
	}
	log.Debug().
		Str("action", "auth_acquire").
		Str("method", "adc").
		Msg("default credentials client ready")
	return withTimeout(c, p.timeout), nil
}

// keyfileProvider loads a service account key from disk on every call so a
// rotated key is picked up without a restart.
type keyfileProvider struct {
	path    string
	timeout time.Duration
}

func newKeyfileProvider(path string, timeout time.Duration) (*keyfileProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("keyfile auth requires a credentials path")
	}
	return &keyfileProvider{path: path, timeout: timeout}, nil
}

func (p *keyfileProvider) Client(ctx context.Context) (*http.Client, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", p.path, err)
	}
	log.Debug().
		Str("action", "auth_acquire").
		Str("method", "keyfile").
		Str("project", creds.ProjectID).
		Msg("service account client ready")
	return withTimeout(oauth2.NewClient(ctx, creds.TokenSource), p.timeout), nil
}
