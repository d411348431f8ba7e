package article

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It backs dry runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	articles map[string]*Article
	nextID   int

	// FailInsert, when set, is returned by InsertArticle.
	FailInsert error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{articles: make(map[string]*Article)}
}

func clone(a *Article) *Article {
	c := *a
	c.Sections = append([]Section(nil), a.Sections...)
	c.Images = append([]string(nil), a.Images...)
	c.Options.Keywords = append([]string(nil), a.Options.Keywords...)
	return &c
}

// InsertArticle implements Store.
func (m *MemoryStore) InsertArticle(_ context.Context, a *Article) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailInsert != nil {
		return "", m.FailInsert
	}
	m.nextID++
	id := fmt.Sprintf("mem-%d", m.nextID)
	c := clone(a)
	c.ID = id
	m.articles[id] = c
	return id, nil
}

// UpdateArticle implements Store.
func (m *MemoryStore) UpdateArticle(_ context.Context, id string, p Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return ErrNotFound
	}
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Sections != nil {
		a.Sections = append([]Section(nil), p.Sections...)
	}
	if p.Images != nil {
		a.Images = append([]string(nil), p.Images...)
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.WordPressDraft != nil {
		a.WordPressDraft = *p.WordPressDraft
	}
	if p.WordPressPostID != nil {
		a.WordPressPostID = *p.WordPressPostID
	}
	if p.WordPressURL != nil {
		a.WordPressURL = *p.WordPressURL
	}
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// GetArticle implements Store.
func (m *MemoryStore) GetArticle(_ context.Context, id string) (*Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return nil, nil
	}
	return clone(a), nil
}

// DeleteArticle implements Store.
func (m *MemoryStore) DeleteArticle(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[id]; !ok {
		return ErrNotFound
	}
	delete(m.articles, id)
	return nil
}

// Len returns the number of stored articles.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.articles)
}
