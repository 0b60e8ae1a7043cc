// Package auth exchanges service account credentials for OAuth2 bearer tokens.
package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/book-expert/tts-proxy/internal/core"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

// ExchangeObserver is notified after every token exchange with its outcome.
type ExchangeObserver func(err error)

// JWTProvider signs a JWT assertion with the service account key and exchanges
// it at the token endpoint. Every call performs a fresh exchange.
type JWTProvider struct {
	httpClient *http.Client
	tokenURL   string
	observe    ExchangeObserver
}

// JWTOption configures a JWTProvider.
type JWTOption func(*JWTProvider)

// WithHTTPClient sets the client used to reach the token endpoint.
func WithHTTPClient(client *http.Client) JWTOption {
	return func(p *JWTProvider) {
		p.httpClient = client
	}
}

// WithTokenURL overrides the token endpoint for credentials that carry no token_uri.
func WithTokenURL(tokenURL string) JWTOption {
	return func(p *JWTProvider) {
		p.tokenURL = tokenURL
	}
}

// WithObserver registers a callback invoked after each exchange.
func WithObserver(observe ExchangeObserver) JWTOption {
	return func(p *JWTProvider) {
		p.observe = observe
	}
}

// NewJWTProvider creates a JWTProvider. The token endpoint defaults to Google's.
func NewJWTProvider(opts ...JWTOption) *JWTProvider {
	provider := &JWTProvider{
		httpClient: http.DefaultClient,
		tokenURL:   google.JWTTokenURL,
		observe:    nil,
	}

	for _, opt := range opts {
		opt(provider)
	}

	return provider
}

// Token implements core.TokenProvider.
func (p *JWTProvider) Token(ctx context.Context, creds core.ServiceCredentials) (*oauth2.Token, error) {
	tokenURL := creds.TokenURI
	if tokenURL == "" {
		tokenURL = p.tokenURL
	}

	cfg := &jwt.Config{
		Email:        creds.ClientEmail,
		PrivateKey:   []byte(creds.PrivateKey),
		PrivateKeyID: creds.PrivateKeyID,
		Scopes:       creds.Scopes,
		TokenURL:     tokenURL,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := cfg.TokenSource(ctx).Token()
	if p.observe != nil {
		p.observe(err)
	}

	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", core.ErrAuth, creds.ClientEmail, err)
	}

	return token, nil
}
