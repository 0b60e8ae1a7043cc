package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/tts-proxy/internal/core"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// DefaultExpirySkew is how long before its expiry a cached token is refreshed.
const DefaultExpirySkew = 60 * time.Second

// CachingProvider reuses tokens from an underlying provider until they are
// close to expiry. Concurrent misses for the same account share one exchange.
type CachingProvider struct {
	next   core.TokenProvider
	skew   time.Duration
	now    func() time.Time
	group  singleflight.Group
	mu     sync.Mutex
	tokens map[string]*oauth2.Token
}

// CacheOption configures a CachingProvider.
type CacheOption func(*CachingProvider)

// WithExpirySkew sets the refresh margin before token expiry.
func WithExpirySkew(skew time.Duration) CacheOption {
	return func(p *CachingProvider) {
		p.skew = skew
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(p *CachingProvider) {
		p.now = now
	}
}

// NewCachingProvider wraps next with a token cache.
func NewCachingProvider(next core.TokenProvider, opts ...CacheOption) *CachingProvider {
	provider := &CachingProvider{
		next:   next,
		skew:   DefaultExpirySkew,
		now:    time.Now,
		tokens: make(map[string]*oauth2.Token),
	}

	for _, opt := range opts {
		opt(provider)
	}

	return provider
}

// Token implements core.TokenProvider.
func (p *CachingProvider) Token(ctx context.Context, creds core.ServiceCredentials) (*oauth2.Token, error) {
	key := accountKey(creds)

	token := p.lookup(key)
	if token != nil {
		return token, nil
	}

	// The exchange outlives any single caller; each caller only waits for it.
	shared := context.WithoutCancel(ctx)

	results := p.group.DoChan(key, func() (any, error) {
		cached := p.lookup(key)
		if cached != nil {
			return cached, nil
		}

		fresh, exchangeErr := p.next.Token(shared, creds)
		if exchangeErr != nil {
			return nil, exchangeErr
		}

		p.store(key, fresh)

		return fresh, nil
	})

	var result singleflight.Result

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", core.ErrAuth, context.Cause(ctx))
	case result = <-results:
	}

	if result.Err != nil {
		return nil, result.Err
	}

	token, _ = result.Val.(*oauth2.Token)

	return token, nil
}

func (p *CachingProvider) lookup(key string) *oauth2.Token {
	p.mu.Lock()
	defer p.mu.Unlock()

	token, ok := p.tokens[key]
	if !ok {
		return nil
	}

	if !p.now().Add(p.skew).Before(token.Expiry) {
		delete(p.tokens, key)

		return nil
	}

	return token
}

func (p *CachingProvider) store(key string, token *oauth2.Token) {
	// Without an expiry there is no safe reuse window.
	if token.Expiry.IsZero() {
		return
	}

	p.mu.Lock()
	p.tokens[key] = token
	p.mu.Unlock()
}

func accountKey(creds core.ServiceCredentials) string {
	return creds.ClientEmail + "|" + creds.PrivateKeyID + "|" + strings.Join(creds.Scopes, " ")
}
