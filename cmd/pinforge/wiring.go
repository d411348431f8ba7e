package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/TobiSchelling/PinForge/internal/database"
	"github.com/TobiSchelling/PinForge/internal/dispatch"
	"github.com/TobiSchelling/PinForge/internal/imagestore"
	"github.com/TobiSchelling/PinForge/internal/keywords"
	"github.com/TobiSchelling/PinForge/internal/metrics"
	"github.com/TobiSchelling/PinForge/internal/pinterest"
	"github.com/TobiSchelling/PinForge/internal/provider"
	"github.com/TobiSchelling/PinForge/internal/suggest"
)

// app holds the wired dependencies of one command invocation.
type app struct {
	db         *database.DB
	registry   *provider.Registry
	dispatcher *dispatch.Dispatcher
	keywords   *keywords.Engine
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	closers    []func() error
}

func newApp(ctx context.Context) (*app, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a := &app{db: db, metrics: metrics.New(reg), gatherer: reg, closers: []func() error{db.Close}}

	blobs, err := newImageStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = newRegistry(blobs)

	textKind, err := provider.ParseTextKind(cfg.Generation.TextProvider)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.dispatcher = dispatch.New(a.registry, db, dispatch.Config{
		TextKind:          textKind,
		CallTimeout:       cfg.Generation.CallTimeout,
		MaxRetries:        cfg.Generation.MaxRetries,
		RetryDelay:        cfg.Generation.RetryDelay,
		MaxConcurrency:    cfg.Generation.MaxConcurrency,
		RequestsPerSecond: cfg.Generation.RequestsPerSecond,
		MaxTokens:         cfg.Generation.MaxTokens,
	}, logger, a.metrics)

	a.keywords = keywords.NewEngine(a.pinterestSource(ctx), db, keywords.Config{
		Ceilings:    cfg.Keywords.Ceilings,
		SearchLimit: cfg.Keywords.SearchLimit,
		TrackDomain: cfg.Keywords.TrackDomain,
		Concurrency: cfg.Keywords.Concurrency,
	}, logger, a.metrics)
	return a, nil
}

// Close releases everything newApp opened, last opened first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Close failed", zap.Error(err))
		}
	}
}

func newImageStore(ctx context.Context) (imagestore.Store, error) {
	if cfg.Storage.Driver == "minio" {
		access, secret := cfg.MinIOCredentials()
		return imagestore.NewMinIO(ctx, imagestore.MinIOConfig{
			Endpoint:  cfg.Storage.MinIO.Endpoint,
			AccessKey: access,
			SecretKey: secret,
			UseSSL:    cfg.Storage.MinIO.UseSSL,
			Bucket:    cfg.Storage.MinIO.Bucket,
			PublicURL: cfg.Storage.MinIO.PublicURL,
		})
	}
	publicURL := cfg.Storage.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("http://localhost:%d/images", cfg.Server.Port)
	}
	return imagestore.NewFS(cfg.ImageDir(), publicURL)
}

func newRegistry(blobs imagestore.Store) *provider.Registry {
	g := cfg.Generation
	r := &provider.Registry{
		OpenAIText:    provider.NewOpenAIText(g.TextModel, g.OpenAIBaseURL),
		AnthropicText: provider.NewAnthropicText(g.AnthropicModel, g.AnthropicBaseURL),
		DallE:         provider.NewDallE(g.ImageModel, g.OpenAIBaseURL),
		Stability:     provider.NewStability(g.StabilityBaseURL, blobs),
		ImageFX:       provider.NewImageFX(g.ImageFXBaseURL),
	}
	// Midjourney has no official API; it stays unset without a proxy URL.
	if g.MidjourneyBaseURL != "" {
		r.Midjourney = provider.NewMidjourney(g.MidjourneyBaseURL)
	}
	return r
}

// pinterestSource returns the Pinterest client, behind the redis cache when
// one is configured and reachable.
func (a *app) pinterestSource(ctx context.Context) keywords.Source {
	client := pinterest.NewClient(cfg.Pinterest.BaseURL, cfg.PinterestToken())
	if cfg.Cache.RedisAddr == "" {
		return client
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rdb, err := pinterest.Dial(dialCtx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	if err != nil {
		logger.Warn("Pinterest cache unavailable, querying the API directly", zap.Error(err))
		return client
	}
	a.closers = append(a.closers, rdb.Close)
	return pinterest.NewCache(client, rdb, cfg.Cache.TTL, logger, a.metrics)
}

// newSuggester builds a Suggester on the configured text provider.
func (a *app) newSuggester() (*suggest.Suggester, error) {
	kind, err := provider.ParseTextKind(cfg.Generation.TextProvider)
	if err != nil {
		return nil, err
	}
	c, p, err := a.registry.Completer(kind)
	if err != nil {
		return nil, err
	}
	key, err := cfg.ProviderConfig().Require(p)
	if err != nil {
		return nil, err
	}

	feeds := make([]suggest.Feed, len(cfg.Suggest.Feeds))
	for i, f := range cfg.Suggest.Feeds {
		feeds[i] = suggest.Feed{URL: f.URL, Name: f.Name}
	}
	reader := suggest.NewFeedReader(feeds, cfg.Suggest.MaxItems, logger)
	return suggest.New(c, key, reader, suggest.NewPageFetcher(30*time.Second), logger), nil
}
