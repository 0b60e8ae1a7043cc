// main package for the tts-client, a command line caller of the tts-proxy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/book-expert/tts-proxy/internal/tts"
)

// Flag descriptions.
const (
	flagProxyDesc    = "Base URL of the tts-proxy"
	flagTextDesc     = "Text to convert to speech"
	flagLanguageDesc = "BCP-47 language code"
	flagVoiceDesc    = "Provider voice name"
	flagEncodingDesc = "Audio encoding: mp3 or ogg"
	flagOutputDesc   = "Output file path (defaults to output.mp3 or output.ogg)"
	flagTimeoutDesc  = "Request timeout"
)

// Flag names.
const (
	flagProxy    = "proxy"
	flagText     = "text"
	flagLanguage = "language"
	flagVoice    = "voice"
	flagEncoding = "encoding"
	flagOutput   = "output"
	flagTimeout  = "timeout"
)

// Defaults.
const (
	defaultProxyURL   = "http://localhost:8080/"
	defaultTimeout    = 30 * time.Second
	defaultOutputBase = "output"
	outputFileMode    = 0o644
)

// Error messages.
const (
	errTextRequired      = "--text must be provided"
	errFmtUnexpectedCode = "proxy returned %d: %s"
)

var (
	// ErrTextRequired is returned when no text is given.
	ErrTextRequired = errors.New(errTextRequired)
	// ErrUnexpectedStatus is returned when the proxy does not answer 200.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	proxy    string
	text     string
	language string
	voice    string
	encoding string
	output   string
	timeout  time.Duration
}

func main() {
	err := run(os.Args[1:])
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	if flags.text == "" {
		return ErrTextRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	target, err := requestURL(flags)
	if err != nil {
		return err
	}

	audio, contentType, err := fetch(ctx, http.DefaultClient, target)
	if err != nil {
		return err
	}

	outputPath := flags.output
	if outputPath == "" {
		outputPath = defaultOutputBase + extensionFor(contentType)
	}

	err = os.WriteFile(outputPath, audio, outputFileMode)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	fmt.Printf("Generated: %s (%d bytes, %s)\n", outputPath, len(audio), contentType)

	return nil
}

// parseFlags parses args into appFlags.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("tts-client", flag.ContinueOnError)
	flagSet.StringVar(&flags.proxy, flagProxy, defaultProxyURL, flagProxyDesc)
	flagSet.StringVar(&flags.text, flagText, "", flagTextDesc)
	flagSet.StringVar(&flags.language, flagLanguage, "", flagLanguageDesc)
	flagSet.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flagSet.StringVar(&flags.encoding, flagEncoding, "", flagEncodingDesc)
	flagSet.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flagSet.DurationVar(&flags.timeout, flagTimeout, defaultTimeout, flagTimeoutDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}

// requestURL builds the proxy URL. Unset flags are omitted so the proxy
// applies its own defaults.
func requestURL(flags appFlags) (string, error) {
	base, err := url.Parse(flags.proxy)
	if err != nil {
		return "", fmt.Errorf("invalid proxy URL %q: %w", flags.proxy, err)
	}

	query := url.Values{}
	query.Set(tts.ParamText, flags.text)

	if flags.language != "" {
		query.Set(tts.ParamLanguageCode, flags.language)
	}

	if flags.voice != "" {
		query.Set(tts.ParamVoiceName, flags.voice)
	}

	if flags.encoding != "" {
		query.Set(tts.ParamEncoding, flags.encoding)
	}

	base.RawQuery = query.Encode()

	return base.String(), nil
}

// fetch GETs target and returns the body and its content type.
func fetch(ctx context.Context, client *http.Client, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: "+errFmtUnexpectedCode, ErrUnexpectedStatus,
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func extensionFor(contentType string) string {
	if contentType == "audio/ogg" {
		return ".ogg"
	}

	return ".mp3"
}
