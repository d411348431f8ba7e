// Package assemble turns generated text and image results into an Article
// and persists it.
package assemble

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/PinForge/internal/article"
	"github.com/TobiSchelling/PinForge/internal/provider"
)

// Outcome is an assembled article together with per-slot bookkeeping.
type Outcome struct {
	Article    *article.Article
	ImageSlots []int
	Partial    *article.PartialImageFailure
}

// Build assembles an article without side effects. Equal inputs give equal
// sections, images and slots.
func Build(req article.Request, text []string, images []provider.ImageResult, now time.Time) *Outcome {
	sections := make([]article.Section, len(req.Sections))
	for i, s := range req.Sections {
		content := ""
		if i < len(text) {
			content = text[i]
		}
		sections[i] = article.Section{
			ID:      fmt.Sprintf("section-%d", i),
			Title:   s.Title,
			Content: content,
			Order:   i,
		}
	}

	bySlot := make(map[int]provider.ImageResult, len(images))
	for _, r := range images {
		if r.Slot < 0 || r.Slot >= req.ImageCount {
			continue
		}
		bySlot[r.Slot] = r
	}

	out := &Outcome{}
	urls := make([]string, 0, req.ImageCount)
	var failed []article.SlotFailure
	for slot := 0; slot < req.ImageCount; slot++ {
		r, ok := bySlot[slot]
		switch {
		case !ok:
			failed = append(failed, article.SlotFailure{Slot: slot, Reason: "no result"})
		case r.Err != nil:
			failed = append(failed, article.SlotFailure{
				Slot:      slot,
				Reason:    r.Err.Error(),
				Retryable: provider.IsRetryable(r.Err),
			})
		case r.URL == "":
			failed = append(failed, article.SlotFailure{Slot: slot, Reason: "empty image URL"})
		default:
			urls = append(urls, r.URL)
			out.ImageSlots = append(out.ImageSlots, slot)
		}
	}
	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool { return failed[i].Slot < failed[j].Slot })
		out.Partial = &article.PartialImageFailure{Requested: req.ImageCount, Failed: failed}
	}

	status := article.StatusCompleted
	if req.ImageCount > 0 && len(urls) == 0 {
		status = article.StatusDraft
	}

	out.Article = &article.Article{
		Title:     req.Title,
		Sections:  sections,
		Options:   req.Options(),
		Images:    urls,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return out
}

// Assembler builds and persists articles.
type Assembler struct {
	Store  article.Store
	Logger *zap.Logger
	Now    func() time.Time
}

// New creates an Assembler.
func New(store article.Store, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{Store: store, Logger: logger, Now: time.Now}
}

// Assemble builds the article and writes it to the store. On a store
// failure the outcome is still returned together with a PersistenceError.
func (a *Assembler) Assemble(ctx context.Context, req article.Request, text []string, images []provider.ImageResult) (*Outcome, error) {
	out := Build(req, text, images, a.Now().UTC())
	if err := a.Persist(ctx, out); err != nil {
		return out, err
	}
	return out, nil
}

// Persist inserts the outcome's article and sets its ID.
func (a *Assembler) Persist(ctx context.Context, out *Outcome) error {
	id, err := a.Store.InsertArticle(ctx, out.Article)
	if err != nil {
		a.Logger.Error("Failed to persist article", zap.String("title", out.Article.Title), zap.Error(err))
		return &article.PersistenceError{Op: "insert", Err: err}
	}
	out.Article.ID = id

	a.Logger.Info("Article saved",
		zap.String("id", id),
		zap.String("status", string(out.Article.Status)),
		zap.Int("images", len(out.Article.Images)),
		zap.Int("requested", out.Article.Options.ImageCount))
	return nil
}
