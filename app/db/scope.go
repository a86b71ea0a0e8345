package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SetUserScopeSQL sets the setting read by the owner row security policies on
// travel_plans and expenses. The third argument limits it to the transaction.
const SetUserScopeSQL = `SELECT set_config('app.user_id', $1, true)`

// WithUserScope runs fn in a transaction scoped to userID. The transaction is
// committed when fn returns nil and rolled back otherwise; fn's error is
// returned unchanged so callers can still match pgx.ErrNoRows.
func WithUserScope(ctx context.Context, db Querier, userID uuid.UUID, fn func(q Querier) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err = tx.Exec(ctx, SetUserScopeSQL, userID.String()); err != nil {
		rollback(ctx, tx)
		return fmt.Errorf("failed to set user scope: %w", err)
	}

	if err = fn(tx); err != nil {
		rollback(ctx, tx)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to roll back transaction", slog.Any("error", err))
	}
}
