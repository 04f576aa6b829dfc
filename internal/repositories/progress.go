package repositories

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/models"
	"github.com/myrjola/orb/internal/sqlite"
)

type ProgressRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewProgressRepository(dbs *sqlite.Database, logger *slog.Logger) *ProgressRepository {
	return &ProgressRepository{
		dbs:    dbs,
		logger: logger.With("source", "ProgressRepository"),
	}
}

// Get returns the player's unlocked and completed levels. Level 1 is always reported as unlocked.
func (r *ProgressRepository) Get(ctx context.Context, playerID string) (models.Progress, error) {
	var (
		progress = models.Progress{Unlocked: []int{1}, Completed: nil}
		err      error
		rows     *sql.Rows
	)

	stmt := `SELECT level, completed FROM progress WHERE player_id = ? ORDER BY level`
	if rows, err = r.dbs.ReadOnly.QueryContext(ctx, stmt, playerID); err != nil {
		return progress, errors.Wrap(err, "query progress")
	}
	defer func() {
		if err = rows.Close(); err != nil {
			err = errors.Wrap(err, "close rows")
			r.logger.LogAttrs(ctx, slog.LevelError, "could not close rows", errors.SlogError(err))
		}
	}()
	for rows.Next() {
		var (
			level     int
			completed bool
		)
		if err = rows.Scan(&level, &completed); err != nil {
			return progress, errors.Wrap(err, "scan progress")
		}
		if level != 1 {
			progress.Unlocked = append(progress.Unlocked, level)
		}
		if completed {
			progress.Completed = append(progress.Completed, level)
		}
	}
	if err = rows.Err(); err != nil {
		return progress, errors.Wrap(err, "rows error")
	}

	return progress, nil
}

// Complete marks level as solved and unlocks next in a single transaction.
func (r *ProgressRepository) Complete(ctx context.Context, playerID string, level int, next int) error {
	var (
		tx  *sql.Tx
		err error
	)
	if tx, err = r.dbs.ReadWrite.BeginTx(ctx, nil); err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		// Rollback after commit is a no-op that reports sql.ErrTxDone.
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			r.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback transaction", errors.SlogError(rollbackErr))
		}
	}()

	stmt := `INSERT INTO progress (player_id, level, completed)
VALUES (@player_id, @level, @completed)
ON CONFLICT (player_id, level) DO UPDATE
    SET completed = MAX(completed, excluded.completed),
        updated   = strftime('%Y-%m-%dT%H:%M:%fZ')`
	if _, err = tx.ExecContext(ctx, stmt,
		sql.Named("player_id", playerID), sql.Named("level", level), sql.Named("completed", 1)); err != nil {
		return errors.Wrap(err, "complete level", slog.Int("level", level))
	}
	if next > 0 {
		if _, err = tx.ExecContext(ctx, stmt,
			sql.Named("player_id", playerID), sql.Named("level", next), sql.Named("completed", 0)); err != nil {
			return errors.Wrap(err, "unlock level", slog.Int("level", next))
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}
