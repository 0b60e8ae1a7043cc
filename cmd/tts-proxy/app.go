package main

import (
	"fmt"
	"net/http"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-proxy/internal/auth"
	"github.com/book-expert/tts-proxy/internal/cache"
	"github.com/book-expert/tts-proxy/internal/config"
	"github.com/book-expert/tts-proxy/internal/core"
	"github.com/book-expert/tts-proxy/internal/credentials"
	"github.com/book-expert/tts-proxy/internal/metrics"
	"github.com/book-expert/tts-proxy/internal/objectstore"
	"github.com/book-expert/tts-proxy/internal/server"
	"github.com/book-expert/tts-proxy/internal/tts"
	"github.com/book-expert/tts-proxy/internal/worker"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// app holds the wired components and the connections they share.
type app struct {
	handler *server.Handler
	metrics *metrics.Metrics
	worker  *worker.NatsWorker
	closers []func()
}

func newApp(cfg *config.Config, log *logger.Logger) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	application := &app{metrics: metrics.New(registry)}

	synthesizer := newSynthesizer(cfg, log, application.metrics)
	source := credentials.NewEnvSource(cfg.Google.CredentialsEnv)

	var natsConnection *nats.Conn

	if cfg.NATS.URL != "" && (cfg.Cache.Backend == config.CacheBackendNATS || cfg.NATS.WorkerEnabled) {
		conn, err := nats.Connect(cfg.NATS.URL, nats.Name("tts-proxy"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
		}

		natsConnection = conn
		application.closers = append(application.closers, conn.Close)
	}

	store, err := application.newCacheStore(cfg, natsConnection)
	if err != nil {
		application.close()

		return nil, err
	}

	responseCache := cache.New(store, log,
		cache.WithTTL(cfg.CacheTTL()),
		cache.WithNormalizedKeys(cfg.Cache.NormalizeKeys),
		cache.WithLookupObserver(application.metrics.ObserveCacheLookup),
	)

	application.handler = server.NewHandler(
		synthesizer, source, responseCache, cfg.Server.FaviconURL, log, application.metrics,
	)

	if cfg.NATS.WorkerEnabled {
		application.worker, err = newWorker(cfg, natsConnection, synthesizer, source, log)
		if err != nil {
			application.close()

			return nil, err
		}
	}

	log.Info("Cache backend: %s (ttl %s), token cache: %t, worker: %t",
		cfg.Cache.Backend, cfg.CacheTTL(), cfg.TokenCacheEnabled(), cfg.NATS.WorkerEnabled)

	return application, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newSynthesizer(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *tts.Service {
	client := tts.NewClient(cfg.Google.SynthesizeURL, cfg.ProviderTimeout())

	jwtOpts := []auth.JWTOption{
		auth.WithObserver(m.ObserveTokenExchange),
		auth.WithHTTPClient(&http.Client{Timeout: cfg.ProviderTimeout()}),
	}
	if cfg.Google.TokenURL != "" {
		jwtOpts = append(jwtOpts, auth.WithTokenURL(cfg.Google.TokenURL))
	}

	var tokens core.TokenProvider = auth.NewJWTProvider(jwtOpts...)
	if cfg.TokenCacheEnabled() {
		tokens = auth.NewCachingProvider(tokens, auth.WithExpirySkew(cfg.TokenExpirySkew()))
	}

	return tts.New(tokens, client, log).WithDurationObserver(m.ObserveSynthesis)
}

// newCacheStore returns the configured backend, or nil when caching is off.
func (a *app) newCacheStore(cfg *config.Config, natsConnection *nats.Conn) (core.ObjectStore, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		return cache.NewMemoryStore(cfg.CacheTTL(), cfg.Cache.MaxEntries), nil
	case config.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() { _ = client.Close() })

		return cache.NewRedisStore(client, cache.WithRedisTTL(cfg.CacheTTL()), cache.WithRedisPrefix(cfg.Redis.Prefix)), nil
	case config.CacheBackendNATS:
		jetstreamContext, err := natsConnection.JetStream()
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}

		store, err := objectstore.New(jetstreamContext, cfg.NATS.CacheBucket, cfg.CacheTTL())
		if err != nil {
			return nil, fmt.Errorf("failed to open cache bucket: %w", err)
		}

		return store, nil
	default:
		return nil, nil
	}
}

func newWorker(
	cfg *config.Config,
	natsConnection *nats.Conn,
	synthesizer core.Synthesizer,
	source core.CredentialSource,
	log *logger.Logger,
) (*worker.NatsWorker, error) {
	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio bucket: %w", err)
	}

	settings := worker.Settings{
		LanguageCode: cfg.NATS.WorkerLanguageCode,
		Encoding:     core.Encoding(cfg.NATS.WorkerEncoding),
	}

	return worker.NewNatsWorker(natsConnection, cfg.NATS.TextProcessedSubject, store, synthesizer, source, settings, log), nil
}
