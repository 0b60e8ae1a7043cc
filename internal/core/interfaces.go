// Package core defines the core types, interfaces and error kinds shared by the
// tts-proxy components.
package core

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

var (
	// ErrObjectNotFound is returned by an ObjectStore when the key has no value.
	ErrObjectNotFound = errors.New("object not found")
	// ErrMissingCredentials indicates that no service account secret is configured.
	ErrMissingCredentials = errors.New("missing service account credentials")
	// ErrCredentialParse indicates that the service account secret is malformed.
	ErrCredentialParse = errors.New("malformed service account credentials")
	// ErrAuth indicates that the token exchange was rejected or failed.
	ErrAuth = errors.New("token exchange failed")
	// ErrNetwork indicates a transport-level failure reaching the provider.
	ErrNetwork = errors.New("tts provider unreachable")
	// ErrUpstream indicates that the provider answered with a failure.
	ErrUpstream = errors.New("tts provider error")
	// ErrDecode indicates that the provider returned audio that is not valid base64.
	ErrDecode = errors.New("invalid audio content")
)

// ObjectStore defines the interface for interacting with a key-value blob store.
// Download returns ErrObjectNotFound (possibly wrapped) for absent or expired keys.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Encoding is the audio container requested by the caller.
type Encoding string

const (
	// EncodingMP3 selects MP3 output.
	EncodingMP3 Encoding = "mp3"
	// EncodingOGG selects OGG/Opus output.
	EncodingOGG Encoding = "ogg"
)

// SynthesisRequest fully determines the provider payload and the cache identity.
type SynthesisRequest struct {
	Text         string
	LanguageCode string
	VoiceName    string
	Encoding     Encoding
}

// AudioEncoding returns the provider's audioEncoding value.
func (r SynthesisRequest) AudioEncoding() string {
	if r.Encoding == EncodingOGG {
		return "OGG_OPUS"
	}

	return "MP3"
}

// ContentType returns the MIME type of the synthesized audio.
func (r SynthesisRequest) ContentType() string {
	if r.Encoding == EncodingOGG {
		return "audio/ogg"
	}

	return "audio/mp3"
}

// Extension returns the file extension used when the audio is stored as a blob.
func (r SynthesisRequest) Extension() string {
	if r.Encoding == EncodingOGG {
		return ".ogg"
	}

	return ".mp3"
}

// SynthesizedAudio is the decoded provider output.
type SynthesizedAudio struct {
	Data        []byte
	ContentType string
}

// ServiceCredentials holds the fields of a service account key used to sign
// token assertions.
type ServiceCredentials struct {
	ClientEmail  string
	PrivateKey   string
	PrivateKeyID string
	TokenURI     string
	Scopes       []string
}

// CredentialSource yields the raw service account secret.
type CredentialSource interface {
	Load() ([]byte, error)
}

// TokenProvider exchanges service account credentials for a bearer token.
type TokenProvider interface {
	Token(ctx context.Context, creds ServiceCredentials) (*oauth2.Token, error)
}

// Synthesizer converts a SynthesisRequest into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, creds ServiceCredentials, req SynthesisRequest) (*SynthesizedAudio, error)
}
