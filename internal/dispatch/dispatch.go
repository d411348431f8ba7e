// Package dispatch orchestrates article generation: one text call, a bounded
// fan-out of image calls, and assembly of the result.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/TobiSchelling/PinForge/internal/article"
	"github.com/TobiSchelling/PinForge/internal/assemble"
	"github.com/TobiSchelling/PinForge/internal/metrics"
	"github.com/TobiSchelling/PinForge/internal/provider"
	"github.com/TobiSchelling/PinForge/internal/settings"
)

// Config tunes the dispatcher.
type Config struct {
	TextKind          provider.TextKind
	CallTimeout       time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	MaxConcurrency    int
	RequestsPerSecond float64
	MaxTokens         int
}

func (c *Config) setDefaults() {
	if c.TextKind == "" {
		c.TextKind = provider.TextOpenAI
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 120 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
}

// Token is a best-effort cancellation handle. Cancelling it does not stop
// in-flight provider calls; it only prevents the result from being persisted.
type Token struct {
	cancelled atomic.Bool
}

// NewToken creates an uncancelled token.
func NewToken() *Token { return &Token{} }

// Cancel marks the token cancelled.
func (t *Token) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether Cancel was called.
func (t *Token) Cancelled() bool { return t != nil && t.cancelled.Load() }

type dispatchOptions struct {
	token *Token
}

// Option configures a single Dispatch call.
type Option func(*dispatchOptions)

// WithToken attaches a cancellation token.
func WithToken(t *Token) Option {
	return func(o *dispatchOptions) { o.token = t }
}

// Result is a generated article and the slots its images came from.
type Result struct {
	Article    *article.Article             `json:"article"`
	ImageSlots []int                        `json:"imageSlots"`
	Partial    *article.PartialImageFailure `json:"partialFailure,omitempty"`
}

// Dispatcher runs generation requests against the provider adapters.
type Dispatcher struct {
	registry  *provider.Registry
	store     article.Store
	assembler *assemble.Assembler
	cfg       Config
	limiter   *rate.Limiter
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New creates a Dispatcher. logger and m may be nil.
func New(registry *provider.Registry, store article.Store, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	cfg.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Dispatcher{
		registry:  registry,
		store:     store,
		assembler: assemble.New(store, logger),
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, cfg.MaxConcurrency),
		logger:    logger,
		metrics:   m,
	}
}

// Dispatch generates, assembles and persists one article.
//
// Errors: *article.ValidationError and *article.ConfigurationError before any
// network call, *article.GenerationError when the text call fails, and
// article.ErrDiscarded when the token was cancelled. A
// *article.PersistenceError is returned together with the in-memory result.
func (d *Dispatcher) Dispatch(ctx context.Context, req article.Request, keys settings.ProviderConfig, opts ...Option) (*Result, error) {
	var o dispatchOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := req.Validate(); err != nil {
		d.metrics.Generation("invalid")
		return nil, err
	}
	req = req.Normalized()

	textGen, textProvider, err := d.registry.Text(d.cfg.TextKind)
	if err != nil {
		d.metrics.Generation("unconfigured")
		return nil, err
	}
	imageGen, imageProvider, err := d.registry.Image(req.Model)
	if err != nil {
		d.metrics.Generation("unconfigured")
		return nil, err
	}
	textKey, err := keys.Require(textProvider)
	if err != nil {
		d.metrics.Generation("unconfigured")
		return nil, err
	}
	imageKey, err := keys.Require(imageProvider)
	if err != nil {
		d.metrics.Generation("unconfigured")
		return nil, err
	}

	log := d.logger.With(zap.String("title", req.Title), zap.String("model", string(req.Model)))
	log.Info("Generating article", zap.Int("sections", len(req.Sections)), zap.Int("images", req.ImageCount))

	text, err := d.generateText(ctx, textGen, textProvider, textKey, req)
	if err != nil {
		d.metrics.Generation("text_failed")
		log.Warn("Text generation failed", zap.Error(err))
		return nil, &article.GenerationError{Provider: textProvider.DisplayName(), Err: err}
	}

	images := d.generateImages(ctx, imageGen, imageProvider, imageKey, req)

	if o.token.Cancelled() {
		d.metrics.Generation("discarded")
		log.Info("Generation cancelled, discarding result")
		return nil, article.ErrDiscarded
	}

	out, err := d.assembler.Assemble(ctx, req, text, images)
	res := &Result{Article: out.Article, ImageSlots: out.ImageSlots, Partial: out.Partial}
	if err != nil {
		d.metrics.Generation("persist_failed")
		return res, err
	}

	d.metrics.Generation(string(out.Article.Status))
	if out.Partial != nil {
		log.Warn("Some images failed",
			zap.Ints("failed_slots", out.Partial.Slots()),
			zap.Int("kept", len(out.Article.Images)))
	}
	return res, nil
}

func (d *Dispatcher) generateText(ctx context.Context, gen provider.TextGenerator, p settings.Provider, key string, req article.Request) ([]string, error) {
	treq := provider.TextRequest{
		Title:      req.Title,
		Sections:   req.SectionTitles(),
		TextPrompt: req.TextPrompt,
		Keywords:   req.Keywords,
		MaxTokens:  d.cfg.MaxTokens,
	}

	var text []string
	err := d.call(ctx, p.DisplayName(), "text", func(ctx context.Context) error {
		var err error
		text, err = gen.GenerateText(ctx, key, treq)
		return err
	})
	return text, err
}

// generateImages runs one call per slot and waits for all of them to settle.
// Failures are recorded per slot and never cancel sibling calls.
func (d *Dispatcher) generateImages(ctx context.Context, gen provider.ImageGenerator, p settings.Provider, key string, req article.Request) []provider.ImageResult {
	results := make([]provider.ImageResult, req.ImageCount)
	prompt := req.EffectiveImagePrompt()

	var g errgroup.Group
	g.SetLimit(d.cfg.MaxConcurrency)
	for slot := 0; slot < req.ImageCount; slot++ {
		g.Go(func() error {
			ireq := provider.ImageRequest{
				Prompt:    prompt,
				Size:      req.ImageSize,
				Reference: req.ReferenceImage,
				Slot:      slot,
			}
			var url string
			err := d.call(ctx, p.DisplayName(), "image", func(ctx context.Context) error {
				var err error
				url, err = gen.GenerateImage(ctx, key, ireq)
				return err
			})
			if err == nil && url == "" {
				err = &provider.Failure{Provider: p.DisplayName(), Reason: "empty image URL"}
			}
			if err != nil {
				d.logger.Debug("Image slot failed", zap.Int("slot", slot), zap.Error(err))
				err = provider.AsFailure(p.DisplayName(), err)
			}
			results[slot] = provider.ImageResult{Slot: slot, URL: url, Err: err}
			d.metrics.ImageCall(string(req.Model), err == nil)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// RegenerateImage replaces the image at index with a freshly generated one.
// index == len(images) appends when the article has a free slot. The result
// is discarded if the article was deleted while generating.
func (d *Dispatcher) RegenerateImage(ctx context.Context, id string, index int, customPrompt string, keys settings.ProviderConfig) (*article.Article, error) {
	a, err := d.store.GetArticle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading article: %w", err)
	}
	if a == nil {
		return nil, article.ErrNotFound
	}
	if err := checkIndex(a, index); err != nil {
		return nil, err
	}

	gen, p, err := d.registry.Image(a.Options.Model)
	if err != nil {
		return nil, err
	}
	key, err := keys.Require(p)
	if err != nil {
		return nil, err
	}

	prompt := customPrompt
	if prompt == "" {
		r := article.Request{Title: a.Title, ImagePrompt: a.Options.ImagePrompt}
		prompt = r.EffectiveImagePrompt()
	}

	var url string
	err = d.call(ctx, p.DisplayName(), "image", func(ctx context.Context) error {
		var err error
		url, err = gen.GenerateImage(ctx, key, provider.ImageRequest{
			Prompt: prompt,
			Size:   a.Options.ImageSize,
			Slot:   index,
		})
		return err
	})
	d.metrics.ImageCall(string(a.Options.Model), err == nil)
	if err != nil {
		return nil, fmt.Errorf("regenerating image %d: %w", index, err)
	}

	cur, err := d.store.GetArticle(ctx, id)
	if err != nil {
		return nil, &article.PersistenceError{Op: "reload", Err: err}
	}
	if cur == nil {
		d.logger.Info("Article deleted during regeneration, discarding image", zap.String("id", id))
		return nil, article.ErrDiscarded
	}
	if err := checkIndex(cur, index); err != nil {
		return nil, err
	}

	images := append([]string(nil), cur.Images...)
	if index == len(images) {
		images = append(images, url)
	} else {
		images[index] = url
	}
	patch := article.Patch{Images: images}
	// A draft has no images yet; the first regenerated one completes it.
	if cur.Status == article.StatusDraft {
		patch.Status = article.Ptr(article.StatusCompleted)
	}
	if err := d.store.UpdateArticle(ctx, id, patch); err != nil {
		return nil, &article.PersistenceError{Op: "update images", Err: err}
	}

	cur.Images = images
	if patch.Status != nil {
		cur.Status = *patch.Status
	}
	d.logger.Info("Image regenerated", zap.String("id", id), zap.Int("index", index))
	return cur, nil
}

func checkIndex(a *article.Article, index int) error {
	if index < 0 || index > len(a.Images) || (index == len(a.Images) && a.MissingImages() == 0) {
		return &article.ValidationError{
			Field:  "index",
			Reason: fmt.Sprintf("image index %d out of range (have %d of %d)", index, len(a.Images), a.Options.ImageCount),
		}
	}
	return nil
}

// MarkWordPressDraft records that a WordPress draft was created for the article.
func (d *Dispatcher) MarkWordPressDraft(ctx context.Context, id, postID, url string) (*article.Article, error) {
	err := d.store.UpdateArticle(ctx, id, article.Patch{
		WordPressDraft:  article.Ptr(true),
		WordPressPostID: article.Ptr(postID),
		WordPressURL:    article.Ptr(url),
	})
	if errors.Is(err, article.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, &article.PersistenceError{Op: "update wordpress", Err: err}
	}

	a, err := d.store.GetArticle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading article: %w", err)
	}
	if a == nil {
		return nil, article.ErrNotFound
	}
	return a, nil
}
