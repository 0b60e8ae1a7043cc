// Package worker provides a NATS worker that synthesizes processed text pages
// published by the rest of the pipeline.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/tts-proxy/internal/core"
	"github.com/book-expert/tts-proxy/internal/credentials"
	"github.com/book-expert/tts-proxy/internal/tts"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 30 * time.Second

// ErrEmptyText indicates that the downloaded text object has no content.
var ErrEmptyText = errors.New("text object is empty")

// Settings are the synthesis parameters the event does not carry.
type Settings struct {
	LanguageCode string
	Encoding     core.Encoding
}

// NatsWorker listens for processed text on a NATS subject and answers each
// request with the key of the synthesized audio.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	synthesizer    core.Synthesizer
	credentials    core.CredentialSource
	settings       Settings
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	synthesizer core.Synthesizer,
	source core.CredentialSource,
	settings Settings,
	log *logger.Logger,
) *NatsWorker {
	if settings.LanguageCode == "" {
		settings.LanguageCode = tts.DefaultLanguageCode
	}

	if settings.Encoding == "" {
		settings.Encoding = core.EncodingMP3
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		synthesizer:    synthesizer,
		credentials:    source,
		settings:       settings,
		log:            log,
	}
}

// Run starts the worker and blocks until ctx is done.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Worker listening on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse event: %v", err)

		return
	}

	audioKey, err := w.synthesizePage(ctx, event)
	if err != nil {
		w.log.Error("Failed to synthesize page %d of workflow %s: %v",
			event.PageNumber, event.Header.WorkflowID, err)

		return
	}

	replyEvent := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   audioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = publishReply(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)

		return
	}

	w.log.Info("Page %d/%d of workflow %s stored as %s",
		event.PageNumber, event.TotalPages, event.Header.WorkflowID, audioKey)
}

// synthesizePage downloads the page text, synthesizes it and uploads the audio.
func (w *NatsWorker) synthesizePage(ctx context.Context, event *events.TextProcessedEvent) (string, error) {
	creds, err := credentials.Load(w.credentials)
	if err != nil {
		return "", err
	}

	textData, err := w.store.Download(ctx, event.TextKey)
	if err != nil {
		return "", fmt.Errorf("failed to download text data for key '%s': %w", event.TextKey, err)
	}

	text := strings.TrimSpace(string(textData))
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyText, event.TextKey)
	}

	req := w.requestFor(event, text)

	audio, err := w.synthesizer.Synthesize(ctx, creds, req)
	if err != nil {
		return "", fmt.Errorf("failed to synthesize text: %w", err)
	}

	audioKey := uuid.NewString() + req.Extension()

	err = w.store.Upload(ctx, audioKey, audio.Data)
	if err != nil {
		return "", fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, err)
	}

	return audioKey, nil
}

func (w *NatsWorker) requestFor(event *events.TextProcessedEvent, text string) core.SynthesisRequest {
	voice := event.Voice
	if voice == "" {
		voice = tts.DefaultVoiceName
	}

	return core.SynthesisRequest{
		Text:         text,
		LanguageCode: w.settings.LanguageCode,
		VoiceName:    voice,
		Encoding:     w.settings.Encoding,
	}
}

func publishReply(msg *nats.Msg, replyEvent *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func parseEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &event, nil
}
