// Package results keeps finished quiz runs and derives per-user statistics
// and a leaderboard from them.
package results

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
)

// ErrNoResults is returned by UserStats for users without finished runs.
var ErrNoResults = errors.New("results: no finished runs")

// Result is one finished quiz run.
type Result struct {
	ID         uuid.UUID `db:"id"`
	UserID     int64     `db:"user_id"`
	Username   string    `db:"username"`
	Score      int       `db:"score"`
	Total      int       `db:"total"`
	FinishedAt time.Time `db:"finished_at"`
}

// NewResult stamps a run with a fresh id and the current UTC time.
func NewResult(userID int64, username string, score, total int) Result {
	return Result{
		ID:         uuid.New(),
		UserID:     userID,
		Username:   username,
		Score:      score,
		Total:      total,
		FinishedAt: time.Now().UTC(),
	}
}

// Percent returns the score as a whole percentage of total.
func (r Result) Percent() int {
	if r.Total <= 0 {
		return 0
	}
	return r.Score * 100 / r.Total
}

// Validate rejects results that cannot come from a finished run.
func (r Result) Validate() error {
	switch {
	case r.ID == uuid.Nil:
		return fmt.Errorf("results: missing id")
	case r.Total <= 0:
		return fmt.Errorf("results: total must be positive, got %d", r.Total)
	case r.Score < 0 || r.Score > r.Total:
		return fmt.Errorf("results: score %d outside 0..%d", r.Score, r.Total)
	}
	return nil
}

// Stats aggregates one user's finished runs.
type Stats struct {
	Runs int
	Best Result
	Last Result
}

// Store persists finished runs.
type Store interface {
	Record(ctx context.Context, r Result) error
	// UserStats returns ErrNoResults when the user has never finished a run.
	UserStats(ctx context.Context, userID int64) (Stats, error)
	// Top returns each user's best run, highest percentage first.
	// Ties go to the earlier run.
	Top(ctx context.Context, limit int) ([]Result, error)
}

//go:embed migrations
var migrations embed.FS

// Migrations returns the schema migrations for the given sql driver.
func Migrations(driver string) (fs.FS, error) {
	return fs.Sub(migrations, "migrations/"+driver)
}

// better reports whether a ranks above b.
func better(a, b Result) bool {
	// compare a.Score/a.Total with b.Score/b.Total without division
	l, r := a.Score*b.Total, b.Score*a.Total
	if l != r {
		return l > r
	}
	return a.FinishedAt.Before(b.FinishedAt)
}
