package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-proxy/internal/core"
)

// DurationObserver receives the wall time of each synthesis and its outcome.
type DurationObserver func(elapsed time.Duration, err error)

// Service implements core.Synthesizer by chaining token acquisition, the
// provider call and audio decoding. Steps run strictly in order.
type Service struct {
	tokens  core.TokenProvider
	client  *Client
	log     *logger.Logger
	observe DurationObserver
}

// New creates a new Service.
func New(tokens core.TokenProvider, client *Client, log *logger.Logger) *Service {
	return &Service{
		tokens:  tokens,
		client:  client,
		log:     log,
		observe: nil,
	}
}

// WithDurationObserver attaches an observer and returns the Service.
func (s *Service) WithDurationObserver(observe DurationObserver) *Service {
	s.observe = observe

	return s
}

// Synthesize implements core.Synthesizer.
func (s *Service) Synthesize(
	ctx context.Context,
	creds core.ServiceCredentials,
	req core.SynthesisRequest,
) (*core.SynthesizedAudio, error) {
	started := time.Now()

	audio, err := s.synthesize(ctx, creds, req)

	elapsed := time.Since(started)
	if s.observe != nil {
		s.observe(elapsed, err)
	}

	if err != nil {
		s.log.Warn("Synthesis failed after %s (voice=%s, encoding=%s): %v", elapsed, req.VoiceName, req.Encoding, err)

		return nil, err
	}

	s.log.Info("Synthesized %d bytes of %s in %s (voice=%s)", len(audio.Data), audio.ContentType, elapsed, req.VoiceName)

	return audio, nil
}

func (s *Service) synthesize(
	ctx context.Context,
	creds core.ServiceCredentials,
	req core.SynthesisRequest,
) (*core.SynthesizedAudio, error) {
	token, err := s.tokens.Token(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire token: %w", err)
	}

	encoded, err := s.client.Synthesize(ctx, req, token.AccessToken)
	if err != nil {
		return nil, err
	}

	data, err := DecodeAudio(encoded)
	if err != nil {
		return nil, err
	}

	return &core.SynthesizedAudio{
		Data:        data,
		ContentType: req.ContentType(),
	}, nil
}
