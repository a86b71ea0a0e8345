package database

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithUserScope(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	setup := func(t *testing.T) pgxmock.PgxPoolIface {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		t.Cleanup(mockPool.Close)
		return mockPool
	}

	t.Run("sets the user before running statements and commits", func(t *testing.T) {
		mockPool := setup(t)
		mockPool.ExpectBegin()
		mockPool.ExpectExec(`SELECT set_config\('app\.user_id', \$1, true\)`).
			WithArgs(userID.String()).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mockPool.ExpectExec("UPDATE travel_plans").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()

		err := WithUserScope(ctx, mockPool, userID, func(q Querier) error {
			_, err := q.Exec(ctx, "UPDATE travel_plans SET is_active = FALSE")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("statement error rolls back and is returned unchanged", func(t *testing.T) {
		mockPool := setup(t)
		mockPool.ExpectBegin()
		mockPool.ExpectExec("SELECT set_config").
			WithArgs(userID.String()).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mockPool.ExpectRollback()

		err := WithUserScope(ctx, mockPool, userID, func(Querier) error {
			return pgx.ErrNoRows
		})
		assert.ErrorIs(t, err, pgx.ErrNoRows)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("scope failure skips the statements", func(t *testing.T) {
		mockPool := setup(t)
		mockPool.ExpectBegin()
		mockPool.ExpectExec("SELECT set_config").
			WithArgs(userID.String()).
			WillReturnError(errors.New("unrecognized configuration parameter"))
		mockPool.ExpectRollback()

		called := false
		err := WithUserScope(ctx, mockPool, userID, func(Querier) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.False(t, called)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		mockPool := setup(t)
		mockPool.ExpectBegin().WillReturnError(errors.New("pool closed"))

		err := WithUserScope(ctx, mockPool, userID, func(Querier) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pool closed")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
