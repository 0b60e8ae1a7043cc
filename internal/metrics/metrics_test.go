// Package metrics_test tests the Prometheus instrumentation.
package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/tts-proxy/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	m.ObserveRequest(metrics.OutcomeOK)
	m.ObserveRequest(metrics.OutcomeOK)
	m.ObserveRequest(metrics.OutcomeNetworkError)
	m.ObserveCacheLookup("hit")
	m.ObserveTokenExchange(nil)
	m.ObserveTokenExchange(errors.New("boom"))
	m.ObserveSynthesis(150*time.Millisecond, nil)

	count, err := testutil.GatherAndCount(registry,
		"tts_proxy_requests_total", "tts_proxy_token_exchanges_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	count, err = testutil.GatherAndCount(registry, "tts_proxy_synthesis_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	m.ObserveCacheLookup("miss")

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(recorder.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, string(body), `tts_proxy_cache_lookups_total{result="miss"} 1`)
}
