package cache

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-proxy/internal/core"
	"github.com/book-expert/tts-proxy/internal/tts"
)

// DefaultTTL is how long a synthesized response stays cached.
const DefaultTTL = 24 * time.Hour

// Lookup results reported to a LookupObserver.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

// LookupObserver is told the result of each cache lookup.
type LookupObserver func(result string)

// Producer builds a fresh response on a cache miss.
type Producer func(ctx context.Context) (*Response, error)

// ResponseCache fronts a Producer with a core.ObjectStore. The cache is best
// effort: store failures are logged and treated as misses.
type ResponseCache struct {
	store     core.ObjectStore
	log       *logger.Logger
	ttl       time.Duration
	normalize bool
	observe   LookupObserver
}

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithTTL sets the max-age advertised on fresh responses. It should match the
// expiry of the underlying store.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResponseCache) {
		c.ttl = ttl
	}
}

// WithNormalizedKeys derives keys from the resolved request instead of the raw
// URL, so parameter order and explicit defaults do not cause misses.
func WithNormalizedKeys(normalize bool) Option {
	return func(c *ResponseCache) {
		c.normalize = normalize
	}
}

// WithLookupObserver registers a callback for lookup results.
func WithLookupObserver(observe LookupObserver) Option {
	return func(c *ResponseCache) {
		c.observe = observe
	}
}

// New creates a ResponseCache over store. A nil store disables caching.
func New(store core.ObjectStore, log *logger.Logger, opts ...Option) *ResponseCache {
	responseCache := &ResponseCache{
		store:     store,
		log:       log,
		ttl:       DefaultTTL,
		normalize: false,
		observe:   nil,
	}

	for _, opt := range opts {
		opt(responseCache)
	}

	return responseCache
}

// Key returns the cache key for r. By default it is the host plus the raw
// request URI, so two URLs that differ only in parameter order are distinct.
func (c *ResponseCache) Key(r *http.Request) string {
	if c.normalize {
		return r.Host + r.URL.Path + "?" + tts.CanonicalQuery(tts.ResolveRequest(tts.ParseQuery(r.URL.RawQuery)))
	}

	return r.Host + r.URL.RequestURI()
}

// CacheControl is the header value attached to fresh responses.
func (c *ResponseCache) CacheControl() string {
	return "public, max-age=" + strconv.Itoa(int(c.ttl.Seconds()))
}

// Fetch returns the stored response for key, or runs produce, stores a copy of
// its successful result and returns the original. The boolean reports a hit.
func (c *ResponseCache) Fetch(ctx context.Context, key string, produce Producer) (*Response, bool, error) {
	cached := c.lookup(ctx, key)
	if cached != nil {
		return cached, true, nil
	}

	fresh, err := produce(ctx)
	if err != nil {
		return nil, false, err
	}

	fresh.Header.Set("Cache-Control", c.CacheControl())

	if fresh.StatusCode == http.StatusOK {
		c.save(ctx, key, fresh.Clone())
	}

	return fresh, false, nil
}

func (c *ResponseCache) lookup(ctx context.Context, key string) *Response {
	if c.store == nil {
		return nil
	}

	data, err := c.store.Download(ctx, key)
	if err != nil {
		if errors.Is(err, core.ErrObjectNotFound) {
			c.report(LookupMiss)

			return nil
		}

		c.report(LookupError)
		c.log.Warn("Cache lookup failed for '%s', treating as miss: %v", key, err)

		return nil
	}

	cached, err := decodeResponse(data)
	if err != nil {
		c.report(LookupError)
		c.log.Warn("Discarding unreadable cache entry '%s': %v", key, err)

		return nil
	}

	c.report(LookupHit)

	return cached
}

func (c *ResponseCache) save(ctx context.Context, key string, snapshot *Response) {
	if c.store == nil {
		return
	}

	data, err := encodeResponse(snapshot)
	if err != nil {
		c.log.Warn("Not caching '%s': %v", key, err)

		return
	}

	// Stored even when the caller has disconnected.
	err = c.store.Upload(context.WithoutCancel(ctx), key, data)
	if err != nil {
		c.log.Warn("Cache store failed for '%s': %v", key, err)
	}
}

func (c *ResponseCache) report(result string) {
	if c.observe != nil {
		c.observe(result)
	}
}
