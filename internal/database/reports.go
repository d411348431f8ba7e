package database

import (
	"context"
	"database/sql"
)

// InsertReport records a finished batch run.
func (db *DB) InsertReport(ctx context.Context, kind RunKind, total, succeeded, failed int) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO run_reports (kind, total, succeeded, failed, finished_at) VALUES (?, ?, ?, ?, ?)`,
		string(kind), total, succeeded, failed, formatTime(db.now()),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetLastReport returns the most recent run of the given kind, or nil if none.
func (db *DB) GetLastReport(ctx context.Context, kind RunKind) (*RunReport, error) {
	var (
		r        RunReport
		k        string
		finished string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, kind, total, succeeded, failed, finished_at FROM run_reports
		WHERE kind = ? ORDER BY finished_at DESC, id DESC LIMIT 1`, string(kind),
	).Scan(&r.ID, &k, &r.Total, &r.Succeeded, &r.Failed, &finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Kind = RunKind(k)
	r.FinishedAt = parseTime(finished)
	return &r, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM articles", &s.TotalArticles},
		{"SELECT COUNT(*) FROM articles WHERE status = 'completed'", &s.CompletedArticles},
		{"SELECT COUNT(*) FROM articles WHERE status = 'draft'", &s.DraftArticles},
		{"SELECT COUNT(*) FROM articles WHERE wordpress_draft = 1", &s.WordPressDrafts},
		{"SELECT COALESCE(SUM(json_array_length(images)), 0) FROM articles", &s.TotalImages},
		{"SELECT COUNT(*) FROM keywords", &s.TrackedKeywords},
		{"SELECT COUNT(*) FROM keywords WHERE position > 0", &s.RankedKeywords},
	}

	for _, q := range queries {
		if err := db.conn.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
