// Package cache stores synthesized HTTP responses so identical requests are
// answered without another provider call.
package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is a snapshot of an HTTP response: status, headers and body.
type Response struct {
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
}

// NewResponse builds a 200 response carrying audio of the given content type.
func NewResponse(contentType string, body []byte) *Response {
	header := make(http.Header)
	header.Set("Content-Type", contentType)

	return &Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       body,
	}
}

// Clone returns a deep copy so that stored and served snapshots never share buffers.
func (r *Response) Clone() *Response {
	return &Response{
		StatusCode: r.StatusCode,
		Header:     r.Header.Clone(),
		Body:       bytes.Clone(r.Body),
	}
}

// Serve sends the snapshot to w.
func (r *Response) Serve(w http.ResponseWriter) error {
	for key, values := range r.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	w.WriteHeader(r.StatusCode)

	_, err := w.Write(r.Body)
	if err != nil {
		return fmt.Errorf("failed to write response body: %w", err)
	}

	return nil
}

func encodeResponse(r *Response) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cached response: %w", err)
	}

	return data, nil
}

func decodeResponse(data []byte) (*Response, error) {
	var r Response

	err := json.Unmarshal(data, &r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cached response: %w", err)
	}

	return &r, nil
}
