package odbc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// retryDelay spaces out reconnection attempts. The Tally ODBC bridge drops
// connections whenever the desktop application changes company context, so
// transient failures are routine rather than exceptional.
const retryDelay = time.Second

// Executor runs validated queries against the ODBC source with a context
// timeout, bounded retry, and a client-side row cap. Tally's SQL surface has
// no LIMIT pushdown to rely on, so the cap is enforced while scanning.
type Executor struct {
	db            *sql.DB
	maxRows       int
	queryTimeout  time.Duration
	retryAttempts int
	logger        *slog.Logger
}

func NewExecutor(db *sql.DB, maxRows int, queryTimeout time.Duration, retryAttempts int, logger *slog.Logger) *Executor {
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return &Executor{
		db:            db,
		maxRows:       maxRows,
		queryTimeout:  queryTimeout,
		retryAttempts: retryAttempts,
		logger:        logger,
	}
}

func (e *Executor) Execute(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= e.retryAttempts; attempt++ {
		results, err := e.run(ctx, query, args...)
		if err == nil {
			return results, nil
		}
		lastErr = err

		// Context expiry is terminal; only connection-level errors retry.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			break
		}

		e.logger.Warn("query attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", e.retryAttempts),
			slog.String("error", err.Error()),
		)

		if attempt < e.retryAttempts {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("query failed after %d attempts: %w", e.retryAttempts, lastErr)
}

func (e *Executor) run(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	return rowsToMaps(rows, e.maxRows)
}

// TestConnection probes the source with the cheapest gate-passing query.
func (e *Executor) TestConnection(ctx context.Context) error {
	_, err := e.Execute(ctx, "SELECT $Name FROM Company")
	return err
}
