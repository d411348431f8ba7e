package database

import (
	"time"

	"github.com/TobiSchelling/PinForge/internal/article"
)

// Keyword is a tracked Pinterest keyword with its latest metrics.
type Keyword struct {
	ID         string    `json:"id"`
	Keyword    string    `json:"keyword"`
	Volume     int       `json:"volume"`
	Saves      int       `json:"followers"`
	Popularity int       `json:"popularity"`
	Position   int       `json:"position"`
	Change     int       `json:"change"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ArticleFilter narrows ListArticles.
type ArticleFilter struct {
	Status article.Status
	Limit  int
}

// RunKind identifies what a run report describes.
type RunKind string

const (
	RunBulk           RunKind = "bulk"
	RunKeywordRefresh RunKind = "keyword_refresh"
)

// RunReport holds metadata about a finished batch run.
type RunReport struct {
	ID         int64
	Kind       RunKind
	Total      int
	Succeeded  int
	Failed     int
	FinishedAt time.Time
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalArticles     int
	CompletedArticles int
	DraftArticles     int
	WordPressDrafts   int
	TotalImages       int
	TrackedKeywords   int
	RankedKeywords    int
}
