// Package pipeline runs batch jobs: bulk article generation and the keyword
// refresh, recording a run report for each.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/PinForge/internal/article"
	"github.com/TobiSchelling/PinForge/internal/database"
	"github.com/TobiSchelling/PinForge/internal/dispatch"
	"github.com/TobiSchelling/PinForge/internal/keywords"
	"github.com/TobiSchelling/PinForge/internal/settings"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name      string
	Summary   string
	ArticleID string
	Err       error
}

// Result holds the results of a pipeline run.
type Result struct {
	Steps     []StepResult
	Succeeded int
	Failed    int
}

// Dispatcher generates one article.
type Dispatcher interface {
	Dispatch(ctx context.Context, req article.Request, keys settings.ProviderConfig, opts ...dispatch.Option) (*dispatch.Result, error)
}

// Refresher updates every tracked keyword.
type Refresher interface {
	RefreshAll(ctx context.Context) (*keywords.RefreshReport, error)
}

// Reporter records finished runs.
type Reporter interface {
	InsertReport(ctx context.Context, kind database.RunKind, total, succeeded, failed int) (int64, error)
}

// Pipeline runs batch jobs.
type Pipeline struct {
	dispatcher Dispatcher
	reports    Reporter
	logger     *zap.Logger
}

// New creates a pipeline. reports may be nil.
func New(d Dispatcher, reports Reporter, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{dispatcher: d, reports: reports, logger: logger}
}

// ParseTitles splits a one-title-per-line list, dropping blank lines.
func ParseTitles(text string) []string {
	var titles []string
	for _, line := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			titles = append(titles, t)
		}
	}
	return titles
}

// Bulk generates one article per title, sequentially, with the options of
// tmpl. A failing title does not stop the run. Cancelling ctx or token stops
// before the next title.
func (p *Pipeline) Bulk(ctx context.Context, titles []string, tmpl article.Request, keys settings.ProviderConfig, token *dispatch.Token) *Result {
	r := &Result{}
	for i, title := range titles {
		if ctx.Err() != nil || token.Cancelled() {
			p.logger.Info("Bulk generation stopped", zap.Int("remaining", len(titles)-i))
			break
		}

		p.logger.Info(fmt.Sprintf("Article %d/%d", i+1, len(titles)), zap.String("title", title))
		req := tmpl
		req.Title = title

		step := StepResult{Name: title}
		res, err := p.dispatcher.Dispatch(ctx, req, keys, dispatch.WithToken(token))
		switch {
		case err != nil && res == nil:
			step.Err = err
		case err != nil:
			// Generated but not saved.
			step.Err = err
			step.Summary = describe(res)
		default:
			step.ArticleID = res.Article.ID
			step.Summary = describe(res)
		}

		if step.Err != nil {
			r.Failed++
			p.logger.Warn("Article generation failed", zap.String("title", title), zap.Error(step.Err))
		} else {
			r.Succeeded++
		}
		r.Steps = append(r.Steps, step)
	}

	p.report(ctx, database.RunBulk, len(titles), r.Succeeded, r.Failed)
	return r
}

// RefreshKeywords runs a keyword refresh and records it.
func (p *Pipeline) RefreshKeywords(ctx context.Context, engine Refresher) StepResult {
	report, err := engine.RefreshAll(ctx)
	if report == nil {
		return StepResult{Name: "Refresh", Err: err}
	}
	p.report(ctx, database.RunKeywordRefresh, report.Total, report.Updated, report.Failed)
	return StepResult{
		Name:    "Refresh",
		Summary: fmt.Sprintf("Refreshed %d keywords, %d failed", report.Updated, report.Failed),
		Err:     err,
	}
}

func (p *Pipeline) report(ctx context.Context, kind database.RunKind, total, succeeded, failed int) {
	if p.reports == nil {
		return
	}
	// The run report is written even when the run was cancelled.
	if _, err := p.reports.InsertReport(context.WithoutCancel(ctx), kind, total, succeeded, failed); err != nil {
		p.logger.Warn("Failed to record run report", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func describe(res *dispatch.Result) string {
	a := res.Article
	s := fmt.Sprintf("%d sections, %d/%d images, %s", len(a.Sections), len(a.Images), a.Options.ImageCount, a.Status)
	if res.Partial != nil {
		s += fmt.Sprintf(" (failed slots %v)", res.Partial.Slots())
	}
	return s
}
