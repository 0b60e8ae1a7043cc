// Package tts provides the synthesis pipeline of the proxy: request parameter
// resolution, the provider HTTP client, and audio decoding.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/tts-proxy/internal/core"
)

// DefaultSynthesizeURL is the provider's REST synthesis endpoint.
const DefaultSynthesizeURL = "https://texttospeech.googleapis.com/v1/text:synthesize"

// HTTP headers.
const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	contentTypeJSON     = "application/json"
	bearerPrefix        = "Bearer "
)

// Error messages.
const (
	errFmtEmptyAudioContent = "%w: response has no audioContent"
	errFmtMalformedResponse = "%w: malformed response body: %w"
)

// UpstreamError reports a non-success status returned by the provider.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tts provider returned status %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match core.ErrUpstream.
func (e *UpstreamError) Unwrap() error {
	return core.ErrUpstream
}

// NetworkError reports a transport failure reaching the provider.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes both core.ErrNetwork and the transport error.
func (e *NetworkError) Unwrap() []error {
	return []error{core.ErrNetwork, e.Err}
}

// synthesizeRequest is the JSON payload accepted by the synthesis endpoint.
type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceSelection `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
}

type audioConfig struct {
	AudioEncoding string `json:"audioEncoding"`
}

// synthesizeResponse carries the base64 audio on success.
type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Client talks to the provider's synthesis endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

// NewClient creates a Client for endpoint. A zero timeout leaves the transport
// default in place.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultSynthesizeURL
	}

	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClientWithHTTPClient creates a Client with an injected *http.Client.
func NewClientWithHTTPClient(endpoint string, httpClient *http.Client) *Client {
	client := NewClient(endpoint, 0)
	client.httpClient = httpClient

	return client
}

// Synthesize issues a single synthesis call and returns the base64 audio content.
func (c *Client) Synthesize(ctx context.Context, req core.SynthesisRequest, token string) (string, error) {
	payload := synthesizeRequest{
		Input: synthesisInput{Text: req.Text},
		Voice: voiceSelection{
			LanguageCode: req.LanguageCode,
			Name:         req.VoiceName,
		},
		AudioConfig: audioConfig{AudioEncoding: req.AudioEncoding()},
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerAuthorization, bearerPrefix+token)
	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &NetworkError{Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var decoded synthesizeResponse

	err = parseJSON(body, &decoded)
	if err != nil {
		return "", fmt.Errorf(errFmtMalformedResponse, core.ErrUpstream, err)
	}

	if strings.TrimSpace(decoded.AudioContent) == "" {
		return "", fmt.Errorf(errFmtEmptyAudioContent, core.ErrUpstream)
	}

	return decoded.AudioContent, nil
}

// unwrapURLError drops the *url.Error envelope so the message names the cause
// rather than repeating the method and endpoint.
func unwrapURLError(err error) error {
	var urlErr *url.Error

	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}

	return err
}
