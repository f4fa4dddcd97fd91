package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// tokenProvider signs requests with a pre-issued OAuth2 access token.
type tokenProvider struct {
	token   string
	timeout time.Duration
}

func (p *tokenProvider) Client(ctx context.Context) (*http.Client, error) {
	// Never log the token content.
	if p.token == "" {
		log.Debug().
			Str("action", "auth_acquire").
			Str("method", "token").
			Msg("missing token")
		return nil, ErrNoToken
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.token, TokenType: "Bearer"})
	log.Debug().
		Str("action", "auth_acquire").
		Str("method", "token").
		Msg("token client ready")
	return withTimeout(oauth2.NewClient(ctx, src), p.timeout), nil
}
