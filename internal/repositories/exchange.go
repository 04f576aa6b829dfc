package repositories

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/models"
	"github.com/myrjola/orb/internal/sqlite"
)

type ExchangeRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewExchangeRepository(dbs *sqlite.Database, logger *slog.Logger) *ExchangeRepository {
	return &ExchangeRepository{
		dbs:    dbs,
		logger: logger.With("source", "ExchangeRepository"),
	}
}

// Append stores the exchange after the player's previous exchanges for the case and returns its ordinal.
func (r *ExchangeRepository) Append(
	ctx context.Context,
	playerID string,
	caseID string,
	exchange models.Exchange,
) (int, error) {
	stmt := `INSERT INTO exchanges (player_id, case_id, ordinal, question, answer, emotion, clue)
VALUES (@player_id, @case_id,
        (SELECT COALESCE(MAX(ordinal) + 1, 0) FROM exchanges WHERE player_id = @player_id AND case_id = @case_id),
        @question, @answer, @emotion, @clue)
RETURNING ordinal`
	params := []any{
		sql.Named("player_id", playerID),
		sql.Named("case_id", caseID),
		sql.Named("question", exchange.Question),
		sql.Named("answer", exchange.Answer),
		sql.Named("emotion", exchange.Emotion),
		sql.Named("clue", exchange.Clue),
	}
	var ordinal int
	if err := r.dbs.ReadWrite.QueryRowContext(ctx, stmt, params...).Scan(&ordinal); err != nil {
		return 0, errors.Wrap(err, "insert exchange", slog.String("case_id", caseID))
	}
	return ordinal, nil
}

// List returns the player's exchanges for the case in the order they were asked.
func (r *ExchangeRepository) List(ctx context.Context, playerID string, caseID string) ([]models.Exchange, error) {
	var (
		exchanges []models.Exchange
		err       error
		rows      *sql.Rows
	)

	stmt := `SELECT ordinal, question, answer, emotion, clue, created
FROM exchanges
WHERE player_id = ? AND case_id = ?
ORDER BY ordinal`
	if rows, err = r.dbs.ReadOnly.QueryContext(ctx, stmt, playerID, caseID); err != nil {
		return nil, errors.Wrap(err, "query exchanges")
	}
	defer func() {
		if err = rows.Close(); err != nil {
			err = errors.Wrap(err, "close rows")
			r.logger.LogAttrs(ctx, slog.LevelError, "could not close rows", errors.SlogError(err))
		}
	}()
	for rows.Next() {
		var (
			exchange models.Exchange
			created  string
		)
		if err = rows.Scan(&exchange.Ordinal, &exchange.Question, &exchange.Answer, &exchange.Emotion, &exchange.Clue,
			&created); err != nil {
			return nil, errors.Wrap(err, "scan exchange")
		}
		if exchange.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, errors.Wrap(err, "parse created", slog.String("created", created))
		}
		exchanges = append(exchanges, exchange)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	return exchanges, nil
}
