package keywords

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/TobiSchelling/PinForge/internal/database"
	"github.com/TobiSchelling/PinForge/internal/metrics"
)

var (
	// ErrAlreadyTracked is returned when tracking a keyword twice.
	ErrAlreadyTracked = errors.New("keyword already tracked")
	// ErrEmptyKeyword is returned for a blank keyword.
	ErrEmptyKeyword = errors.New("keyword is empty")
)

// Source supplies raw Pinterest data.
type Source interface {
	SearchByKeyword(ctx context.Context, term string, limit int) ([]Pin, error)
	Trending(ctx context.Context, category string) ([]string, error)
}

// Store persists tracked keywords.
type Store interface {
	InsertKeyword(ctx context.Context, k *database.Keyword) (string, error)
	UpdateKeywordMetrics(ctx context.Context, k *database.Keyword) error
	GetKeyword(ctx context.Context, id string) (*database.Keyword, error)
	ListKeywords(ctx context.Context, filter string) ([]database.Keyword, error)
	DeleteKeyword(ctx context.Context, id string) error
}

// Config tunes the engine.
type Config struct {
	Ceilings    Ceilings
	SearchLimit int
	TrackDomain string
	Concurrency int
}

// Suggestion is a scored keyword from research.
type Suggestion struct {
	Keyword string `json:"keyword"`
	Metrics
	Popularity int `json:"popularity"`
}

// RefreshReport summarises a RefreshAll run.
type RefreshReport struct {
	Total   int
	Updated int
	Failed  int
}

// Engine tracks keywords and keeps their scores current.
type Engine struct {
	source  Source
	store   Store
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewEngine creates an Engine. logger and m may be nil.
func NewEngine(source Source, store Store, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Engine {
	if cfg.Ceilings == (Ceilings{}) {
		cfg.Ceilings = DefaultCeilings()
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{source: source, store: store, cfg: cfg, logger: logger, metrics: m}
}

// Normalize trims, collapses inner whitespace and case-folds a keyword.
func Normalize(keyword string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(strings.Join(strings.Fields(keyword), " "))
}

// Metrics fetches and aggregates the metrics of one keyword.
func (e *Engine) Metrics(ctx context.Context, keyword string) (Metrics, []Pin, error) {
	pins, err := e.source.SearchByKeyword(ctx, keyword, e.cfg.SearchLimit)
	if err != nil {
		return Metrics{}, nil, fmt.Errorf("fetching metrics for %q: %w", keyword, err)
	}
	return Aggregate(pins), pins, nil
}

// Track starts tracking a keyword. Position and change start at zero.
func (e *Engine) Track(ctx context.Context, keyword string) (*database.Keyword, error) {
	kw := Normalize(keyword)
	if kw == "" {
		return nil, ErrEmptyKeyword
	}

	m, _, err := e.Metrics(ctx, kw)
	if err != nil {
		return nil, err
	}

	k := &database.Keyword{
		Keyword:    kw,
		Volume:     m.Volume,
		Saves:      m.Saves,
		Popularity: Score(m, e.cfg.Ceilings),
	}
	id, err := e.store.InsertKeyword(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("saving keyword: %w", err)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyTracked, kw)
	}

	e.logger.Info("Tracking keyword", zap.String("keyword", kw), zap.Int("popularity", k.Popularity))
	return k, nil
}

// Update refetches a keyword's metrics and recomputes score, position and change.
// Lower positions are better, so a negative change is an improvement.
func (e *Engine) Update(ctx context.Context, existing *database.Keyword) (*database.Keyword, error) {
	m, pins, err := e.Metrics(ctx, existing.Keyword)
	if err != nil {
		e.metrics.KeywordRefresh(false)
		return nil, err
	}

	k := *existing
	k.Volume = m.Volume
	k.Saves = m.Saves
	k.Popularity = Score(m, e.cfg.Ceilings)
	k.Position = Rank(pins, e.cfg.TrackDomain)
	k.Change = k.Position - existing.Position

	if err := e.store.UpdateKeywordMetrics(ctx, &k); err != nil {
		e.metrics.KeywordRefresh(false)
		return nil, fmt.Errorf("saving keyword: %w", err)
	}
	e.metrics.KeywordRefresh(true)
	return &k, nil
}

// UpdateByID loads a keyword and updates it.
func (e *Engine) UpdateByID(ctx context.Context, id string) (*database.Keyword, error) {
	k, err := e.store.GetKeyword(ctx, id)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, database.ErrKeywordNotFound
	}
	return e.Update(ctx, k)
}

// RefreshAll updates every tracked keyword. Individual failures are logged
// and counted.
func (e *Engine) RefreshAll(ctx context.Context) (*RefreshReport, error) {
	all, err := e.store.ListKeywords(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing keywords: %w", err)
	}

	report := &RefreshReport{Total: len(all)}
	for i := range all {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := e.Update(ctx, &all[i]); err != nil {
			report.Failed++
			e.logger.Warn("Keyword refresh failed", zap.String("keyword", all[i].Keyword), zap.Error(err))
			continue
		}
		report.Updated++
	}

	e.logger.Info("Keyword refresh complete",
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed))
	return report, nil
}

// Research finds trending terms containing seed and scores them, most
// popular first.
func (e *Engine) Research(ctx context.Context, seed, category string) ([]Suggestion, error) {
	needle := Normalize(seed)
	if needle == "" {
		return nil, ErrEmptyKeyword
	}

	trends, err := e.source.Trending(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("fetching trends: %w", err)
	}

	seen := make(map[string]bool)
	var terms []string
	for _, t := range trends {
		n := Normalize(t)
		if n == "" || seen[n] || !strings.Contains(n, needle) {
			continue
		}
		seen[n] = true
		terms = append(terms, strings.TrimSpace(t))
	}

	out := make([]Suggestion, len(terms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, term := range terms {
		g.Go(func() error {
			m, _, err := e.Metrics(gctx, term)
			if err != nil {
				return err
			}
			out[i] = Suggestion{Keyword: term, Metrics: m, Popularity: Score(m, e.cfg.Ceilings)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Popularity != out[j].Popularity {
			return out[i].Popularity > out[j].Popularity
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out, nil
}

// TopPins returns the most engaging pins for a query.
func (e *Engine) TopPins(ctx context.Context, query string, limit int) ([]Pin, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyKeyword
	}
	pins, err := e.source.SearchByKeyword(ctx, strings.TrimSpace(query), e.cfg.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching pins: %w", err)
	}
	sort.SliceStable(pins, func(i, j int) bool {
		return pins[i].Engagement() > pins[j].Engagement()
	})
	if limit > 0 && len(pins) > limit {
		pins = pins[:limit]
	}
	return pins, nil
}

// List returns tracked keywords, optionally filtered by substring.
func (e *Engine) List(ctx context.Context, filter string) ([]database.Keyword, error) {
	return e.store.ListKeywords(ctx, Normalize(filter))
}

// Untrack stops tracking a keyword.
func (e *Engine) Untrack(ctx context.Context, id string) error {
	return e.store.DeleteKeyword(ctx, id)
}

// Rank returns the 1-based position of the first pin linking to domain, or
// 0 when none does or domain is empty.
func Rank(pins []Pin, domain string) int {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	if domain == "" {
		return 0
	}
	for i, p := range pins {
		u, err := url.Parse(p.Link)
		if err != nil {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return i + 1
		}
	}
	return 0
}
