// Package config provides the configuration structure for the tts-proxy.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNATS   = "nats"
	CacheBackendNone   = "none"
)

// Defaults applied to zero-valued settings.
const (
	DefaultListenAddr        = ":8080"
	DefaultFaviconURL        = "https://jacklehamster.github.io/tts-worker/icon.png"
	DefaultCredentialsEnv    = "SHEETS_SERVICE_KEY_JSON"
	DefaultSynthesizeURL     = "https://texttospeech.googleapis.com/v1/text:synthesize"
	DefaultCacheTTLSeconds   = 86400
	DefaultCacheMaxEntries   = 10000
	DefaultTimeoutSeconds    = 30
	DefaultReadTimeoutSecs   = 10
	DefaultWriteTimeoutSecs  = 60
	DefaultRedisPrefix       = "tts-proxy"
	DefaultCacheBucket       = "TTS_RESPONSE_CACHE"
	DefaultAudioBucket       = "AUDIO_FILES"
	DefaultWorkerEncoding    = "mp3"
	defaultTokenExpirySkewMs = 60000
)

// ServerConfig holds the HTTP front door settings.
type ServerConfig struct {
	ListenAddr          string `toml:"listen_addr"`
	MetricsAddr         string `toml:"metrics_addr"`
	FaviconURL          string `toml:"favicon_url"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

// GoogleConfig holds the provider and credential settings.
type GoogleConfig struct {
	CredentialsEnv    string `toml:"credentials_env"`
	SynthesizeURL     string `toml:"synthesize_url"`
	TokenURL          string `toml:"token_url"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	TokenCache        *bool  `toml:"token_cache"`
	TokenExpirySkewMs int    `toml:"token_expiry_skew_ms"`
}

// CacheConfig holds the response cache settings.
type CacheConfig struct {
	Backend       string `toml:"backend"`
	TTLSeconds    int    `toml:"ttl_seconds"`
	NormalizeKeys bool   `toml:"normalize_keys"`
	MaxEntries    int    `toml:"max_entries"`
}

// RedisConfig holds the Redis connection for the redis cache backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	CacheBucket            string `toml:"cache_bucket"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
	TextProcessedSubject   string `toml:"text_processed_subject"`
	WorkerEnabled          bool   `toml:"worker_enabled"`
	WorkerEncoding         string `toml:"worker_encoding"`
	WorkerLanguageCode     string `toml:"worker_language_code"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig `toml:"server"`
	Google GoogleConfig `toml:"google"`
	Cache  CacheConfig  `toml:"cache"`
	Redis  RedisConfig  `toml:"redis"`
	NATS   NATSConfig   `toml:"nats"`
	Paths  PathsConfig  `toml:"paths"`
}

// Load loads the configuration for the tts-proxy and fills in defaults.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults replaces zero values with their defaults.
func (c *Config) ApplyDefaults() {
	setDefault(&c.Server.ListenAddr, DefaultListenAddr)
	setDefault(&c.Server.FaviconURL, DefaultFaviconURL)
	setDefaultInt(&c.Server.ReadTimeoutSeconds, DefaultReadTimeoutSecs)
	setDefaultInt(&c.Server.WriteTimeoutSeconds, DefaultWriteTimeoutSecs)

	setDefault(&c.Google.CredentialsEnv, DefaultCredentialsEnv)
	setDefault(&c.Google.SynthesizeURL, DefaultSynthesizeURL)
	setDefaultInt(&c.Google.TimeoutSeconds, DefaultTimeoutSeconds)
	setDefaultInt(&c.Google.TokenExpirySkewMs, defaultTokenExpirySkewMs)

	if c.Google.TokenCache == nil {
		enabled := true
		c.Google.TokenCache = &enabled
	}

	setDefault(&c.Cache.Backend, CacheBackendMemory)
	setDefaultInt(&c.Cache.TTLSeconds, DefaultCacheTTLSeconds)
	setDefaultInt(&c.Cache.MaxEntries, DefaultCacheMaxEntries)

	setDefault(&c.Redis.Prefix, DefaultRedisPrefix)

	setDefault(&c.NATS.CacheBucket, DefaultCacheBucket)
	setDefault(&c.NATS.AudioObjectStoreBucket, DefaultAudioBucket)
	setDefault(&c.NATS.WorkerEncoding, DefaultWorkerEncoding)

	setDefault(&c.Paths.BaseLogsDir, filepath.Join(os.TempDir(), "tts-proxy"))
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendNone:
	case CacheBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: cache backend redis requires redis.addr", ErrInvalidConfig)
		}
	case CacheBackendNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("%w: cache backend nats requires nats.url", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend '%s'", ErrInvalidConfig, c.Cache.Backend)
	}

	if c.NATS.WorkerEncoding != "mp3" && c.NATS.WorkerEncoding != "ogg" {
		return fmt.Errorf("%w: nats.worker_encoding must be mp3 or ogg, got '%s'", ErrInvalidConfig, c.NATS.WorkerEncoding)
	}

	if c.NATS.WorkerEnabled && (c.NATS.URL == "" || c.NATS.TextProcessedSubject == "") {
		return fmt.Errorf("%w: the nats worker requires nats.url and nats.text_processed_subject", ErrInvalidConfig)
	}

	return nil
}

// CacheTTL returns the cache time-to-live.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// ProviderTimeout returns the timeout applied to provider and token calls.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Google.TimeoutSeconds) * time.Second
}

// TokenExpirySkew returns how long before expiry a cached token is refreshed.
func (c *Config) TokenExpirySkew() time.Duration {
	return time.Duration(c.Google.TokenExpirySkewMs) * time.Millisecond
}

// TokenCacheEnabled reports whether tokens are reused across requests.
func (c *Config) TokenCacheEnabled() bool {
	return c.Google.TokenCache == nil || *c.Google.TokenCache
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setDefaultInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}
