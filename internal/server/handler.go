// Package server implements the HTTP front door of the proxy.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-proxy/internal/cache"
	"github.com/book-expert/tts-proxy/internal/core"
	"github.com/book-expert/tts-proxy/internal/credentials"
	"github.com/book-expert/tts-proxy/internal/metrics"
	"github.com/book-expert/tts-proxy/internal/tts"
	"github.com/google/uuid"
)

// FaviconPath is answered with a redirect instead of a synthesis.
const FaviconPath = "/favicon.ico"

// HeaderRequestID carries the id used to correlate a response with the logs.
const HeaderRequestID = "X-Request-Id"

// Log formats.
const (
	logFmtServed      = "[%s] %s served %d bytes of %s (cache hit: %t) in %s"
	logFmtFailed      = "[%s] %s failed with %d: %v"
	logFmtWriteFailed = "[%s] failed to write response: %v"
)

// Handler routes every inbound request: the favicon path is redirected, all
// other paths are synthesis requests described by their query string.
type Handler struct {
	synthesizer core.Synthesizer
	credentials core.CredentialSource
	cache       *cache.ResponseCache
	faviconURL  string
	log         *logger.Logger
	metrics     *metrics.Metrics
}

// NewHandler creates a Handler. metrics may be nil.
func NewHandler(
	synthesizer core.Synthesizer,
	source core.CredentialSource,
	responseCache *cache.ResponseCache,
	faviconURL string,
	log *logger.Logger,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		synthesizer: synthesizer,
		credentials: source,
		cache:       responseCache,
		faviconURL:  faviconURL,
		log:         log,
		metrics:     m,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set(HeaderRequestID, requestID)

	if r.URL.Path == FaviconPath {
		h.observe(metrics.OutcomeFavicon)
		http.Redirect(w, r, h.faviconURL, http.StatusFound)

		return
	}

	started := time.Now()

	// Credentials are checked before anything touches the network.
	creds, err := credentials.Load(h.credentials)
	if err != nil {
		h.fail(w, r, requestID, err)

		return
	}

	req := tts.ResolveRequest(tts.ParseQuery(r.URL.RawQuery))

	response, hit, err := h.cache.Fetch(r.Context(), h.cache.Key(r), func(ctx context.Context) (*cache.Response, error) {
		audio, synthErr := h.synthesizer.Synthesize(ctx, creds, req)
		if synthErr != nil {
			return nil, synthErr
		}

		return cache.NewResponse(audio.ContentType, audio.Data), nil
	})
	if err != nil {
		h.fail(w, r, requestID, err)

		return
	}

	h.observe(metrics.OutcomeOK)

	err = response.Serve(w)
	if err != nil {
		h.log.Warn(logFmtWriteFailed, requestID, err)

		return
	}

	h.log.Info(logFmtServed, requestID, r.URL.RequestURI(), len(response.Body),
		response.Header.Get("Content-Type"), hit, time.Since(started))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, requestID string, err error) {
	status := StatusFor(err)

	h.observe(OutcomeFor(err))
	h.log.Error(logFmtFailed, requestID, r.URL.RequestURI(), status, err)

	http.Error(w, MessageFor(err), status)
}

func (h *Handler) observe(outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveRequest(outcome)
	}
}
