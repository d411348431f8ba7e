package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// ErrKeywordNotFound is returned when updating or deleting an unknown keyword.
var ErrKeywordNotFound = errors.New("keyword not found")

const keywordColumns = "id, keyword, volume, saves, popularity, position, change, created_at, updated_at"

// InsertKeyword stores a new keyword and returns its ID. Returns "" if the
// keyword is already tracked.
func (db *DB) InsertKeyword(ctx context.Context, k *Keyword) (string, error) {
	now := db.now()
	id := uuid.NewString()
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO keywords (id, keyword, volume, saves, popularity, position, change, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(keyword) DO NOTHING`,
		id, k.Keyword, k.Volume, k.Saves, k.Popularity, k.Position, k.Change,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return "", err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	k.ID = id
	k.CreatedAt = now
	k.UpdatedAt = now
	return id, nil
}

// UpdateKeywordMetrics writes the refreshed metrics of a keyword.
func (db *DB) UpdateKeywordMetrics(ctx context.Context, k *Keyword) error {
	now := db.now()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE keywords SET volume = ?, saves = ?, popularity = ?, position = ?, change = ?, updated_at = ?
		WHERE id = ?`,
		k.Volume, k.Saves, k.Popularity, k.Position, k.Change, formatTime(now), k.ID,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrKeywordNotFound
	}
	k.UpdatedAt = now
	return nil
}

// GetKeyword returns a keyword by ID, or nil if not found.
func (db *DB) GetKeyword(ctx context.Context, id string) (*Keyword, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+keywordColumns+" FROM keywords WHERE id = ?", id)
	return scanKeywordRow(row)
}

// GetKeywordByName returns a keyword by its normalised text, or nil if not found.
func (db *DB) GetKeywordByName(ctx context.Context, keyword string) (*Keyword, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+keywordColumns+" FROM keywords WHERE keyword = ?", keyword)
	return scanKeywordRow(row)
}

// ListKeywords returns tracked keywords newest first. A non-empty filter
// keeps keywords containing it.
func (db *DB) ListKeywords(ctx context.Context, filter string) ([]Keyword, error) {
	q := sq.Select(keywordColumns).From("keywords").OrderBy("created_at DESC", "keyword")
	if f := strings.TrimSpace(filter); f != "" {
		q = q.Where(sq.Like{"keyword": "%" + f + "%"})
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

	var out []Keyword
	for rows.Next() {
		k, err := scanKeyword(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

// DeleteKeyword stops tracking a keyword.
func (db *DB) DeleteKeyword(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM keywords WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrKeywordNotFound
	}
	return nil
}

func scanKeywordRow(row *sql.Row) (*Keyword, error) {
	k, err := scanKeyword(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return k, nil
}

func scanKeyword(s scanner) (*Keyword, error) {
	var (
		k                Keyword
		created, updated string
	)
	if err := s.Scan(&k.ID, &k.Keyword, &k.Volume, &k.Saves, &k.Popularity,
		&k.Position, &k.Change, &created, &updated); err != nil {
		return nil, err
	}
	k.CreatedAt = parseTime(created)
	k.UpdatedAt = parseTime(updated)
	return &k, nil
}
