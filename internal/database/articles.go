package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/TobiSchelling/PinForge/internal/article"
)

var _ article.Store = (*DB)(nil)

const articleColumns = `id, title, sections, options, images, status,
	wordpress_draft, wordpress_post_id, wordpress_url, created_at, updated_at`

// InsertArticle stores a new article and returns its generated ID.
func (db *DB) InsertArticle(ctx context.Context, a *article.Article) (string, error) {
	sections, err := json.Marshal(a.Sections)
	if err != nil {
		return "", fmt.Errorf("encoding sections: %w", err)
	}
	options, err := json.Marshal(a.Options)
	if err != nil {
		return "", fmt.Errorf("encoding options: %w", err)
	}
	images, err := json.Marshal(nonNil(a.Images))
	if err != nil {
		return "", fmt.Errorf("encoding images: %w", err)
	}

	created := a.CreatedAt
	if created.IsZero() {
		created = db.now()
	}
	updated := a.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	id := uuid.NewString()
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO articles (id, title, sections, options, images, status,
			wordpress_draft, wordpress_post_id, wordpress_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, a.Title, string(sections), string(options), string(images), string(a.Status),
		a.WordPressDraft, nullString(a.WordPressPostID), nullString(a.WordPressURL),
		formatTime(created), formatTime(updated),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateArticle applies a partial update. Only non-nil patch fields are written.
func (db *DB) UpdateArticle(ctx context.Context, id string, p article.Patch) error {
	if p.Empty() {
		return nil
	}

	q := sq.Update("articles").Where(sq.Eq{"id": id}).Set("updated_at", formatTime(db.now()))
	if p.Title != nil {
		q = q.Set("title", *p.Title)
	}
	if p.Sections != nil {
		data, err := json.Marshal(p.Sections)
		if err != nil {
			return fmt.Errorf("encoding sections: %w", err)
		}
		q = q.Set("sections", string(data))
	}
	if p.Images != nil {
		data, err := json.Marshal(p.Images)
		if err != nil {
			return fmt.Errorf("encoding images: %w", err)
		}
		q = q.Set("images", string(data))
	}
	if p.Status != nil {
		q = q.Set("status", string(*p.Status))
	}
	if p.WordPressDraft != nil {
		q = q.Set("wordpress_draft", *p.WordPressDraft)
	}
	if p.WordPressPostID != nil {
		q = q.Set("wordpress_post_id", nullString(*p.WordPressPostID))
	}
	if p.WordPressURL != nil {
		q = q.Set("wordpress_url", nullString(*p.WordPressURL))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return article.ErrNotFound
	}
	return nil
}

// GetArticle returns a single article by ID, or nil if it does not exist.
func (db *DB) GetArticle(ctx context.Context, id string) (*article.Article, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+articleColumns+" FROM articles WHERE id = ?", id)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteArticle removes an article.
func (db *DB) DeleteArticle(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM articles WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return article.ErrNotFound
	}
	return nil
}

// ListArticles returns articles newest first.
func (db *DB) ListArticles(ctx context.Context, f ArticleFilter) ([]article.Article, error) {
	q := sq.Select(articleColumns).From("articles").OrderBy("created_at DESC", "id")
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []article.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(s scanner) (*article.Article, error) {
	var (
		a                         article.Article
		sections, options, images string
		status, created, updated  string
		wpPostID, wpURL           sql.NullString
	)
	if err := s.Scan(&a.ID, &a.Title, &sections, &options, &images, &status,
		&a.WordPressDraft, &wpPostID, &wpURL, &created, &updated); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(sections), &a.Sections); err != nil {
		return nil, fmt.Errorf("decoding sections of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(options), &a.Options); err != nil {
		return nil, fmt.Errorf("decoding options of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(images), &a.Images); err != nil {
		return nil, fmt.Errorf("decoding images of %s: %w", a.ID, err)
	}
	a.Status = article.Status(status)
	a.WordPressPostID = wpPostID.String
	a.WordPressURL = wpURL.String
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updated)
	return &a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
