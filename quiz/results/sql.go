package results

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/quizbot/core/logger"
)

const (
	insertResult = `INSERT INTO quiz_results (id, user_id, username, score, total, finished_at)
VALUES (?, ?, ?, ?, ?, ?)`

	countRuns = `SELECT COUNT(*) FROM quiz_results WHERE user_id = ?`

	bestRun = `SELECT id, user_id, username, score, total, finished_at FROM quiz_results
WHERE user_id = ?
ORDER BY score * 1.0 / total DESC, finished_at ASC
LIMIT 1`

	lastRun = `SELECT id, user_id, username, score, total, finished_at FROM quiz_results
WHERE user_id = ?
ORDER BY finished_at DESC
LIMIT 1`

	topRuns = `SELECT id, user_id, username, score, total, finished_at FROM (
    SELECT id, user_id, username, score, total, finished_at,
           ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY score * 1.0 / total DESC, finished_at ASC) AS rn
    FROM quiz_results
) best
WHERE rn = 1
ORDER BY score * 1.0 / total DESC, finished_at ASC
LIMIT ?`
)

type sqlStore struct {
	db *sqlx.DB
}

// NewSQLStore stores results in the quiz_results table of db.
// The schema comes from Migrations for the same driver.
func NewSQLStore(db *sqlx.DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) Record(ctx context.Context, r Result) error {
	if err := r.Validate(); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(insertResult),
		r.ID, r.UserID, r.Username, r.Score, r.Total, r.FinishedAt.UTC())
	logger.Debug(ctx, logger.CompResults, "result.insert",
		slog.String("status", logger.Status(err)),
		slog.String("driver", s.db.DriverName()),
		slog.Duration("duration", logger.Took(start)),
	)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

func (s *sqlStore) UserStats(ctx context.Context, userID int64) (Stats, error) {
	var st Stats
	if err := s.db.GetContext(ctx, &st.Runs, s.db.Rebind(countRuns), userID); err != nil {
		return Stats{}, fmt.Errorf("count runs: %w", err)
	}
	if st.Runs == 0 {
		return Stats{}, ErrNoResults
	}
	if err := s.db.GetContext(ctx, &st.Best, s.db.Rebind(bestRun), userID); err != nil {
		return Stats{}, fmt.Errorf("best run: %w", err)
	}
	if err := s.db.GetContext(ctx, &st.Last, s.db.Rebind(lastRun), userID); err != nil {
		return Stats{}, fmt.Errorf("last run: %w", err)
	}
	return st, nil
}

func (s *sqlStore) Top(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	var out []Result
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(topRuns), limit); err != nil {
		return nil, fmt.Errorf("top runs: %w", err)
	}
	return out, nil
}
