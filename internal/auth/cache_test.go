package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/tts-proxy/internal/auth"
	"github.com/book-expert/tts-proxy/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var errMockExchange = errors.New("mock exchange error")

// mockTokenProvider is a mock implementation of the TokenProvider interface.
type mockTokenProvider struct {
	exchangeShouldFail bool
	release            chan struct{}
	calls              atomic.Int32
	expiry             time.Time
}

func (m *mockTokenProvider) Token(_ context.Context, _ core.ServiceCredentials) (*oauth2.Token, error) {
	m.calls.Add(1)

	if m.release != nil {
		<-m.release
	}

	if m.exchangeShouldFail {
		return nil, errMockExchange
	}

	return &oauth2.Token{AccessToken: "cached-token", Expiry: m.expiry}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCachingProvider_ReusesToken(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	next := &mockTokenProvider{expiry: clock.Now().Add(time.Hour)}
	provider := auth.NewCachingProvider(next, auth.WithClock(clock.Now))

	for range 3 {
		token, err := provider.Token(context.Background(), testCredentials(""))
		require.NoError(t, err)
		assert.Equal(t, "cached-token", token.AccessToken)
	}

	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachingProvider_RefreshesNearExpiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	next := &mockTokenProvider{expiry: clock.Now().Add(time.Hour)}
	provider := auth.NewCachingProvider(next, auth.WithClock(clock.Now), auth.WithExpirySkew(time.Minute))

	_, err := provider.Token(context.Background(), testCredentials(""))
	require.NoError(t, err)

	clock.Advance(58 * time.Minute)

	_, err = provider.Token(context.Background(), testCredentials(""))
	require.NoError(t, err)
	assert.Equal(t, int32(1), next.calls.Load())

	clock.Advance(90 * time.Second)

	_, err = provider.Token(context.Background(), testCredentials(""))
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachingProvider_SingleFlight(t *testing.T) {
	t.Parallel()

	next := &mockTokenProvider{
		release: make(chan struct{}),
		expiry:  time.Now().Add(time.Hour),
	}
	provider := auth.NewCachingProvider(next)

	var waitGroup sync.WaitGroup

	for range 10 {
		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			token, err := provider.Token(context.Background(), testCredentials(""))
			assert.NoError(t, err)
			assert.Equal(t, "cached-token", token.AccessToken)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(next.release)
	waitGroup.Wait()

	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachingProvider_ErrorNotCached(t *testing.T) {
	t.Parallel()

	next := &mockTokenProvider{exchangeShouldFail: true, expiry: time.Now().Add(time.Hour)}
	provider := auth.NewCachingProvider(next)

	_, err := provider.Token(context.Background(), testCredentials(""))
	require.ErrorIs(t, err, errMockExchange)

	next.exchangeShouldFail = false

	_, err = provider.Token(context.Background(), testCredentials(""))
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachingProvider_ZeroExpiryNotCached(t *testing.T) {
	t.Parallel()

	next := &mockTokenProvider{}
	provider := auth.NewCachingProvider(next)

	for range 2 {
		_, err := provider.Token(context.Background(), testCredentials(""))
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachingProvider_CallerLeavesWhenContextEnds(t *testing.T) {
	t.Parallel()

	next := &mockTokenProvider{release: make(chan struct{}), expiry: time.Now().Add(time.Hour)}
	provider := auth.NewCachingProvider(next)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		_, err := provider.Token(ctx, core.ServiceCredentials{ClientEmail: "proxy@example.com"})
		errChan <- err
	}()

	require.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()

	select {
	case err := <-errChan:
		require.ErrorIs(t, err, context.Canceled)
		require.ErrorIs(t, err, core.ErrAuth)
	case <-time.After(time.Second):
		t.Fatal("Token did not return after its context was cancelled")
	}

	// The detached exchange still completes and fills the cache.
	close(next.release)

	require.Eventually(t, func() bool {
		token, err := provider.Token(context.Background(), core.ServiceCredentials{ClientEmail: "proxy@example.com"})

		return err == nil && token.AccessToken == "cached-token"
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), next.calls.Load())
}
