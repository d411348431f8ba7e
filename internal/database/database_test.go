package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/TobiSchelling/PinForge/internal/article"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleArticle() *article.Article {
	return &article.Article{
		Title: "Minimalist Bedroom Ideas",
		Sections: []article.Section{
			{ID: "section-0", Title: "Colors", Content: "Soft neutrals.", Order: 0},
			{ID: "section-1", Title: "Storage", Content: "", Order: 1},
		},
		Options: article.Options{
			Model:      article.ModelFluxDev,
			Keywords:   []string{"bedroom", "minimalist"},
			ImageCount: 3,
			ImageSize:  article.Size3x4,
		},
		Images: []string{"https://img/0.png", "https://img/2.png"},
		Status: article.StatusCompleted,
	}
}

func TestInsertAndGetArticle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.InsertArticle(ctx, sampleArticle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty article ID")
	}

	a, err := db.GetArticle(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil {
		t.Fatal("expected article")
	}
	if a.Title != "Minimalist Bedroom Ideas" {
		t.Errorf("unexpected title %q", a.Title)
	}
	if len(a.Sections) != 2 || a.Sections[0].Content != "Soft neutrals." {
		t.Errorf("unexpected sections %+v", a.Sections)
	}
	if len(a.Images) != 2 || a.Images[1] != "https://img/2.png" {
		t.Errorf("unexpected images %v", a.Images)
	}
	if a.Options.ImageCount != 3 || a.Options.Model != article.ModelFluxDev {
		t.Errorf("unexpected options %+v", a.Options)
	}
	if a.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestGetArticleNotFound(t *testing.T) {
	db := openTestDB(t)
	a, err := db.GetArticle(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Error("expected nil for unknown article")
	}
}

func TestUpdateArticlePartial(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	id, _ := db.InsertArticle(ctx, sampleArticle())

	err := db.UpdateArticle(ctx, id, article.Patch{
		Images:         []string{"https://img/new.png"},
		WordPressDraft: article.Ptr(true),
		WordPressURL:   article.Ptr("https://blog.example/?p=7"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := db.GetArticle(ctx, id)
	if len(a.Images) != 1 || a.Images[0] != "https://img/new.png" {
		t.Errorf("images not updated: %v", a.Images)
	}
	if !a.WordPressDraft || a.WordPressURL != "https://blog.example/?p=7" {
		t.Errorf("wordpress fields not updated: %+v", a)
	}
	if a.Title != "Minimalist Bedroom Ideas" || a.Status != article.StatusCompleted {
		t.Error("untouched fields changed")
	}
	if len(a.Sections) != 2 {
		t.Error("sections should be unchanged")
	}
}

func TestUpdateArticleNotFound(t *testing.T) {
	db := openTestDB(t)
	err := db.UpdateArticle(context.Background(), "missing", article.Patch{Status: article.Ptr(article.StatusDraft)})
	if !errors.Is(err, article.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteArticle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	id, _ := db.InsertArticle(ctx, sampleArticle())

	if err := db.DeleteArticle(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := db.GetArticle(ctx, id)
	if a != nil {
		t.Error("expected article to be deleted")
	}
	if err := db.DeleteArticle(ctx, id); !errors.Is(err, article.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListArticlesNewestFirstWithFilter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, status := range []article.Status{article.StatusCompleted, article.StatusDraft, article.StatusCompleted} {
		a := sampleArticle()
		a.Title = string(status) + "-" + string(rune('a'+i))
		a.Status = status
		a.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if _, err := db.InsertArticle(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	all, err := db.ListArticles(ctx, ArticleFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(all))
	}
	if all[0].Title != "completed-c" {
		t.Errorf("expected newest first, got %q", all[0].Title)
	}

	drafts, _ := db.ListArticles(ctx, ArticleFilter{Status: article.StatusDraft})
	if len(drafts) != 1 {
		t.Errorf("expected 1 draft, got %d", len(drafts))
	}

	limited, _ := db.ListArticles(ctx, ArticleFilter{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("expected 2 with limit, got %d", len(limited))
	}
}

func TestInsertKeywordDuplicate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.InsertKeyword(ctx, &Keyword{Keyword: "boho decor", Volume: 10, Popularity: 5})
	if err != nil || id == "" {
		t.Fatalf("expected insert, got %q, %v", id, err)
	}
	dup, err := db.InsertKeyword(ctx, &Keyword{Keyword: "boho decor"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup != "" {
		t.Error("expected empty id for duplicate keyword")
	}
}

func TestUpdateAndListKeywords(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	k := &Keyword{Keyword: "garden ideas"}
	db.InsertKeyword(ctx, k)
	db.InsertKeyword(ctx, &Keyword{Keyword: "kitchen ideas"})
	db.InsertKeyword(ctx, &Keyword{Keyword: "wedding dress"})

	k.Volume, k.Saves, k.Popularity, k.Position, k.Change = 100, 2000, 45, 3, -2
	if err := db.UpdateKeywordMetrics(ctx, k); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.GetKeyword(ctx, k.ID)
	if err != nil || got == nil {
		t.Fatalf("GetKeyword: %v", err)
	}
	if got.Popularity != 45 || got.Position != 3 || got.Change != -2 || got.Saves != 2000 {
		t.Errorf("unexpected keyword %+v", got)
	}

	ideas, _ := db.ListKeywords(ctx, "ideas")
	if len(ideas) != 2 {
		t.Errorf("expected 2 keywords matching 'ideas', got %d", len(ideas))
	}
	all, _ := db.ListKeywords(ctx, "")
	if len(all) != 3 {
		t.Errorf("expected 3 keywords, got %d", len(all))
	}

	byName, _ := db.GetKeywordByName(ctx, "wedding dress")
	if byName == nil {
		t.Error("expected keyword by name")
	}
}

func TestDeleteKeyword(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	k := &Keyword{Keyword: "summer outfits"}
	db.InsertKeyword(ctx, k)

	if err := db.DeleteKeyword(ctx, k.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.DeleteKeyword(ctx, k.ID); !errors.Is(err, ErrKeywordNotFound) {
		t.Errorf("expected ErrKeywordNotFound, got %v", err)
	}
	if err := db.UpdateKeywordMetrics(ctx, k); !errors.Is(err, ErrKeywordNotFound) {
		t.Errorf("expected ErrKeywordNotFound on update, got %v", err)
	}
}

func TestReportsAndStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if r, _ := db.GetLastReport(ctx, RunBulk); r != nil {
		t.Error("expected no report on empty db")
	}
	db.InsertReport(ctx, RunBulk, 3, 2, 1)
	db.InsertReport(ctx, RunKeywordRefresh, 5, 5, 0)

	r, err := db.GetLastReport(ctx, RunBulk)
	if err != nil || r == nil {
		t.Fatalf("GetLastReport: %v", err)
	}
	if r.Total != 3 || r.Failed != 1 {
		t.Errorf("unexpected report %+v", r)
	}

	db.InsertArticle(ctx, sampleArticle())
	draft := sampleArticle()
	draft.Status = article.StatusDraft
	draft.Images = nil
	db.InsertArticle(ctx, draft)
	k := &Keyword{Keyword: "x"}
	db.InsertKeyword(ctx, k)

	s, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if s.TotalArticles != 2 || s.DraftArticles != 1 || s.CompletedArticles != 1 {
		t.Errorf("unexpected article stats %+v", s)
	}
	if s.TotalImages != 2 {
		t.Errorf("expected 2 images, got %d", s.TotalImages)
	}
	if s.TrackedKeywords != 1 || s.RankedKeywords != 0 {
		t.Errorf("unexpected keyword stats %+v", s)
	}
}
