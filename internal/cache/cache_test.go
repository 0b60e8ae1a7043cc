// Package cache_test tests the response cache and its stores.
package cache_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-proxy/internal/cache"
	"github.com/book-expert/tts-proxy/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errMockDownload = errors.New("mock download error")
	errMockUpload   = errors.New("mock upload error")
	errMockProduce  = errors.New("mock produce error")
)

// mockObjectStore is a mock implementation of the ObjectStore interface.
type mockObjectStore struct {
	downloadShouldFail bool
	uploadShouldFail   bool
	data               map[string][]byte
	uploads            int
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{data: make(map[string][]byte)}
}

func (m *mockObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	if m.downloadShouldFail {
		return nil, errMockDownload
	}

	data, ok := m.data[key]
	if !ok {
		return nil, core.ErrObjectNotFound
	}

	return data, nil
}

func (m *mockObjectStore) Upload(_ context.Context, key string, data []byte) error {
	if m.uploadShouldFail {
		return errMockUpload
	}

	m.uploads++
	m.data[key] = data

	return nil
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "cache-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = testLogger.Close() })

	return testLogger
}

type countingProducer struct {
	calls int
	body  []byte
	err   error
}

func (p *countingProducer) produce(_ context.Context) (*cache.Response, error) {
	p.calls++

	if p.err != nil {
		return nil, p.err
	}

	return cache.NewResponse("audio/mp3", p.body), nil
}

func TestResponseCache_MissThenHit(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()

	var lookups []string

	responseCache := cache.New(store, newTestLogger(t),
		cache.WithLookupObserver(func(result string) { lookups = append(lookups, result) }))
	producer := &countingProducer{body: []byte("audio-bytes")}

	first, hit, err := responseCache.Fetch(context.Background(), "k", producer.produce)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "public, max-age=86400", first.Header.Get("Cache-Control"))

	second, hit, err := responseCache.Fetch(context.Background(), "k", producer.produce)
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, 1, producer.calls)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, first.Header, second.Header)
	assert.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, []string{cache.LookupMiss, cache.LookupHit}, lookups)
}

func TestResponseCache_StoresCopy(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	responseCache := cache.New(store, newTestLogger(t))
	producer := &countingProducer{body: []byte("original")}

	fresh, _, err := responseCache.Fetch(context.Background(), "k", producer.produce)
	require.NoError(t, err)

	// Mutating what the caller got must not alter the stored entry.
	fresh.Body[0] = 'X'
	fresh.Header.Set("X-Test", "mutated")

	cached, hit, err := responseCache.Fetch(context.Background(), "k", producer.produce)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "original", string(cached.Body))
	assert.Empty(t, cached.Header.Get("X-Test"))
}

func TestResponseCache_ErrorsNotCached(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	responseCache := cache.New(store, newTestLogger(t))
	producer := &countingProducer{err: errMockProduce}

	_, _, err := responseCache.Fetch(context.Background(), "k", producer.produce)
	require.ErrorIs(t, err, errMockProduce)
	assert.Equal(t, 0, store.uploads)
}

func TestResponseCache_StoreFailuresAreNotFatal(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	store.downloadShouldFail = true
	store.uploadShouldFail = true

	var lookups []string

	responseCache := cache.New(store, newTestLogger(t),
		cache.WithLookupObserver(func(result string) { lookups = append(lookups, result) }))
	producer := &countingProducer{body: []byte("audio")}

	for range 2 {
		response, hit, err := responseCache.Fetch(context.Background(), "k", producer.produce)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, "audio", string(response.Body))
	}

	assert.Equal(t, 2, producer.calls)
	assert.Equal(t, []string{cache.LookupError, cache.LookupError}, lookups)
}

func TestResponseCache_CorruptEntryIsMiss(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	store.data["k"] = []byte("not json")

	responseCache := cache.New(store, newTestLogger(t))
	producer := &countingProducer{body: []byte("audio")}

	_, hit, err := responseCache.Fetch(context.Background(), "k", producer.produce)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, producer.calls)
}

func TestResponseCache_NilStoreDisablesCaching(t *testing.T) {
	t.Parallel()

	responseCache := cache.New(nil, newTestLogger(t), cache.WithTTL(time.Hour))
	producer := &countingProducer{body: []byte("audio")}

	for range 2 {
		response, hit, err := responseCache.Fetch(context.Background(), "k", producer.produce)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, "public, max-age=3600", response.Header.Get("Cache-Control"))
	}

	assert.Equal(t, 2, producer.calls)
}

func TestResponseCache_Key(t *testing.T) {
	t.Parallel()

	raw := cache.New(nil, newTestLogger(t))
	normalized := cache.New(nil, newTestLogger(t), cache.WithNormalizedKeys(true))

	first := httptest.NewRequest(http.MethodGet, "http://tts.example/speak?text=Hi&encoding=ogg", nil)
	second := httptest.NewRequest(http.MethodGet, "http://tts.example/speak?encoding=ogg&text=Hi", nil)
	third := httptest.NewRequest(http.MethodGet, "http://tts.example/speak?text=Hi&encoding=ogg&name=en-US-Standard-A", nil)

	assert.Equal(t, "tts.example/speak?text=Hi&encoding=ogg", raw.Key(first))
	assert.NotEqual(t, raw.Key(first), raw.Key(second))

	assert.Equal(t, normalized.Key(first), normalized.Key(second))
	assert.Equal(t, normalized.Key(first), normalized.Key(third))
}
