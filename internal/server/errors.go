package server

import (
	"errors"
	"net/http"

	"github.com/book-expert/tts-proxy/internal/core"
	"github.com/book-expert/tts-proxy/internal/metrics"
	"github.com/book-expert/tts-proxy/internal/tts"
)

// Response bodies for failures that do not carry upstream detail.
const (
	msgMissingCredentials = "missing service account credentials"
	msgInvalidCredentials = "invalid service account credentials"
	msgInternalError      = "internal error"
)

// StatusFor maps an error from the synthesis pipeline to an HTTP status.
// Transport failures reaching the provider are 503; everything else is 500.
func StatusFor(err error) int {
	if errors.Is(err, core.ErrNetwork) {
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}

// MessageFor returns the plain-text body sent to the caller for err.
func MessageFor(err error) string {
	var upstreamErr *tts.UpstreamError

	switch {
	case errors.Is(err, core.ErrMissingCredentials):
		return msgMissingCredentials
	case errors.Is(err, core.ErrCredentialParse):
		return msgInvalidCredentials
	case errors.As(err, &upstreamErr):
		return "TTS API error: " + upstreamErr.Body
	case errors.Is(err, core.ErrUpstream):
		return "TTS API error: " + err.Error()
	case errors.Is(err, core.ErrNetwork):
		return "TTS API unreachable: " + err.Error()
	case errors.Is(err, core.ErrAuth):
		return "auth error: " + err.Error()
	case errors.Is(err, core.ErrDecode):
		return err.Error()
	default:
		return msgInternalError
	}
}

// OutcomeFor classifies err for the request metrics.
func OutcomeFor(err error) string {
	switch {
	case errors.Is(err, core.ErrMissingCredentials), errors.Is(err, core.ErrCredentialParse):
		return metrics.OutcomeConfigError
	case errors.Is(err, core.ErrNetwork):
		return metrics.OutcomeNetworkError
	case errors.Is(err, core.ErrUpstream):
		return metrics.OutcomeUpstreamError
	case errors.Is(err, core.ErrAuth):
		return metrics.OutcomeAuthError
	case errors.Is(err, core.ErrDecode):
		return metrics.OutcomeDecodeError
	default:
		return metrics.OutcomeInternalError
	}
}
