package article

import "context"

// Patch is a partial article update. Nil fields are left unchanged.
type Patch struct {
	Title           *string
	Sections        []Section
	Images          []string
	Status          *Status
	WordPressDraft  *bool
	WordPressPostID *string
	WordPressURL    *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Sections == nil && p.Images == nil && p.Status == nil &&
		p.WordPressDraft == nil && p.WordPressPostID == nil && p.WordPressURL == nil
}

// Store persists articles. GetArticle returns nil, nil for unknown ids.
type Store interface {
	InsertArticle(ctx context.Context, a *Article) (string, error)
	UpdateArticle(ctx context.Context, id string, patch Patch) error
	GetArticle(ctx context.Context, id string) (*Article, error)
	DeleteArticle(ctx context.Context, id string) error
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T { return &v }
