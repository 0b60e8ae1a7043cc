// Package credentials loads Google service account keys from their JSON form.
package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/book-expert/tts-proxy/internal/core"
)

// CloudPlatformScope is the scope requested for every token assertion.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// DefaultEnvName is the environment variable that carries the secret.
const DefaultEnvName = "SHEETS_SERVICE_KEY_JSON"

// serviceAccountKey mirrors the subset of the service account JSON we consume.
type serviceAccountKey struct {
	Type         string `json:"type"`
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
}

// Parse decodes a service account key. The returned credentials are scoped to
// the cloud-platform scope.
func Parse(raw []byte) (core.ServiceCredentials, error) {
	var key serviceAccountKey

	err := json.Unmarshal(raw, &key)
	if err != nil {
		return core.ServiceCredentials{}, fmt.Errorf("%w: %w", core.ErrCredentialParse, err)
	}

	if key.ClientEmail == "" {
		return core.ServiceCredentials{}, fmt.Errorf("%w: client_email is empty", core.ErrCredentialParse)
	}

	if key.PrivateKey == "" {
		return core.ServiceCredentials{}, fmt.Errorf("%w: private_key is empty", core.ErrCredentialParse)
	}

	return core.ServiceCredentials{
		ClientEmail:  key.ClientEmail,
		PrivateKey:   key.PrivateKey,
		PrivateKeyID: key.PrivateKeyID,
		TokenURI:     key.TokenURI,
		Scopes:       []string{CloudPlatformScope},
	}, nil
}

// EnvSource reads the secret from a process environment variable on every Load,
// so a rotated secret is picked up without a restart.
type EnvSource struct {
	Name string
}

// NewEnvSource returns an EnvSource for name, or for DefaultEnvName when name is empty.
func NewEnvSource(name string) EnvSource {
	if name == "" {
		name = DefaultEnvName
	}

	return EnvSource{Name: name}
}

// Load implements core.CredentialSource.
func (s EnvSource) Load() ([]byte, error) {
	value, ok := os.LookupEnv(s.Name)
	if !ok || strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("%w: %s is not set", core.ErrMissingCredentials, s.Name)
	}

	return []byte(value), nil
}

// StaticSource serves a fixed secret; an empty secret behaves like a missing one.
type StaticSource []byte

// Load implements core.CredentialSource.
func (s StaticSource) Load() ([]byte, error) {
	if len(s) == 0 {
		return nil, core.ErrMissingCredentials
	}

	return s, nil
}

// Load reads the secret from source and parses it.
func Load(source core.CredentialSource) (core.ServiceCredentials, error) {
	raw, err := source.Load()
	if err != nil {
		return core.ServiceCredentials{}, err
	}

	return Parse(raw)
}
