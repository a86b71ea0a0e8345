package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

// memoryStore records every call in order.
type memoryStore struct {
	rows      []types.Expense
	calls     []string
	failOn    map[string]error
	listErr   error
	nextIndex int
}

func (s *memoryStore) ListByPlan(_ context.Context, _, _ uuid.UUID) ([]types.Expense, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]types.Expense(nil), s.rows...), nil
}

func (s *memoryStore) Create(_ context.Context, _, planID uuid.UUID, e types.Expense) (*types.Expense, error) {
	s.calls = append(s.calls, "insert:"+e.Title)
	if err := s.failOn["insert:"+e.Title]; err != nil {
		return nil, err
	}
	s.nextIndex++
	e.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("row-%d", s.nextIndex))).String()
	e.PlanID = planID.String()
	s.rows = append(s.rows, e)
	return &e, nil
}

func (s *memoryStore) Update(_ context.Context, _, expenseID uuid.UUID, e types.Expense) (*types.Expense, error) {
	s.calls = append(s.calls, "update:"+expenseID.String())
	if err := s.failOn["update:"+e.Title]; err != nil {
		return nil, err
	}
	for i := range s.rows {
		if s.rows[i].ID == expenseID.String() {
			e.ID = s.rows[i].ID
			s.rows[i] = e
			return &e, nil
		}
	}
	return nil, types.ErrNotFound
}

func (s *memoryStore) Delete(_ context.Context, _, expenseID uuid.UUID) error {
	s.calls = append(s.calls, "delete:"+expenseID.String())
	for i := range s.rows {
		if s.rows[i].ID == expenseID.String() {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return types.ErrNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func datePtr(s string) *string { return &s }

func TestKey(t *testing.T) {
	e := types.Expense{Title: " 出租车 ", AmountCNY: 35.5, Category: "交通"}
	assert.Equal(t, "出租车|35.5|transport", Key(e))

	assert.Equal(t, Key(types.Expense{Title: "a", AmountCNY: 10}), Key(types.Expense{Title: "a", AmountCNY: 10.0, Category: "other"}))
	assert.Equal(t, "a|0.3|other", Key(types.Expense{Title: "a", AmountCNY: 0.1 + 0.2}))
}

func TestReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()
	userID, planID := uuid.New(), uuid.New()
	idA, idB := uuid.New().String(), uuid.New().String()

	t.Run("deletes before update and insert", func(t *testing.T) {
		store := &memoryStore{rows: []types.Expense{
			{ID: idA, Title: "酒店", AmountCNY: 400, Category: types.CategoryLodging},
			{ID: idB, Title: "门票", AmountCNY: 80, Category: types.CategoryTickets},
		}}
		r := NewReconciler(store, testLogger())

		local := []types.Expense{
			{ID: "local-1", Title: "酒店", AmountCNY: 400, Category: types.CategoryLodging, Date: datePtr("2025-05-02")},
			{ID: "local-2", Title: "晚餐", AmountCNY: 120, Category: "餐饮"},
		}
		res, err := r.Reconcile(ctx, userID, planID, local)
		require.NoError(t, err)

		require.Len(t, store.calls, 3)
		assert.Equal(t, "delete:"+idB, store.calls[0])
		assert.Equal(t, "update:"+idA, store.calls[1])
		assert.Equal(t, "insert:晚餐", store.calls[2])

		assert.Equal(t, 1, res.Deleted)
		assert.Equal(t, 1, res.Updated)
		assert.Equal(t, 1, res.Inserted)
		require.Len(t, res.Expenses, 2)
		assert.Equal(t, idA, res.Expenses[0].ID)
		assert.NotEqual(t, "local-2", res.Expenses[1].ID)
		assert.Equal(t, types.CategoryFood, res.Expenses[1].Category)
		assert.Equal(t, planID.String(), res.Expenses[1].PlanID)
		assert.Equal(t, "2025-05-02", *store.rows[0].Date)
	})

	t.Run("unchanged list only rewrites in place", func(t *testing.T) {
		store := &memoryStore{rows: []types.Expense{
			{ID: idA, Title: "酒店", AmountCNY: 400, Category: types.CategoryLodging},
			{ID: idB, Title: "门票", AmountCNY: 80, Category: types.CategoryTickets},
		}}
		r := NewReconciler(store, testLogger())

		local := append([]types.Expense(nil), store.rows...)
		res, err := r.Reconcile(ctx, userID, planID, local)
		require.NoError(t, err)
		assert.Zero(t, res.Deleted)
		assert.Zero(t, res.Inserted)
		assert.Equal(t, 2, res.Updated)

		again, err := r.Reconcile(ctx, userID, planID, res.Expenses)
		require.NoError(t, err)
		assert.Zero(t, again.Deleted)
		assert.Zero(t, again.Inserted)
		assert.Equal(t, res.Expenses, again.Expenses)
	})

	t.Run("empty local list deletes everything", func(t *testing.T) {
		store := &memoryStore{rows: []types.Expense{
			{ID: idA, Title: "酒店", AmountCNY: 400, Category: types.CategoryLodging},
		}}
		res, err := NewReconciler(store, testLogger()).Reconcile(ctx, userID, planID, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Deleted)
		assert.Empty(t, store.rows)
		assert.NotNil(t, res.Expenses)
	})

	t.Run("duplicate stored keys keep both rows", func(t *testing.T) {
		store := &memoryStore{rows: []types.Expense{
			{ID: idA, Title: "打车", AmountCNY: 20, Category: types.CategoryTransport},
			{ID: idB, Title: "打车", AmountCNY: 20, Category: types.CategoryTransport},
		}}
		r := NewReconciler(store, testLogger())

		res, err := r.Reconcile(ctx, userID, planID, []types.Expense{
			{ID: "local-1", Title: "打车", AmountCNY: 20, Category: "交通"},
		})
		require.NoError(t, err)
		assert.Zero(t, res.Deleted)
		assert.Equal(t, 1, res.Updated)
		assert.Equal(t, []string{"update:" + idB}, store.calls)
		assert.Len(t, store.rows, 2)
		assert.Equal(t, idB, res.Expenses[0].ID)
	})

	t.Run("duplicate local items update one row", func(t *testing.T) {
		store := &memoryStore{rows: []types.Expense{
			{ID: idA, Title: "打车", AmountCNY: 20, Category: types.CategoryTransport},
		}}
		r := NewReconciler(store, testLogger())

		res, err := r.Reconcile(ctx, userID, planID, []types.Expense{
			{ID: "local-1", Title: "打车", AmountCNY: 20, Category: types.CategoryTransport},
			{ID: "local-2", Title: "打车", AmountCNY: 20, Category: types.CategoryTransport},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Updated)
		assert.Zero(t, res.Inserted)
		assert.Equal(t, []string{"update:" + idA, "update:" + idA}, store.calls)
		assert.Len(t, store.rows, 1)
	})

	t.Run("failing item is skipped", func(t *testing.T) {
		store := &memoryStore{failOn: map[string]error{"insert:坏的": errors.New("constraint violation")}}
		r := NewReconciler(store, testLogger())

		local := []types.Expense{
			{ID: "l1", Title: "坏的", AmountCNY: 1},
			{ID: "l2", Title: "好的", AmountCNY: 2},
		}
		res, err := r.Reconcile(ctx, userID, planID, local)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "constraint violation")
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, 1, res.Inserted)
		assert.Equal(t, "l1", res.Expenses[0].ID)
		assert.NotEqual(t, "l2", res.Expenses[1].ID)
	})

	t.Run("list failure aborts", func(t *testing.T) {
		store := &memoryStore{listErr: errors.New("timeout")}
		res, err := NewReconciler(store, testLogger()).Reconcile(ctx, userID, planID, []types.Expense{{Title: "x"}})
		require.Error(t, err)
		assert.Nil(t, res.Expenses)
		assert.Empty(t, store.calls)
	})
}

func TestDebouncer(t *testing.T) {
	t.Run("only the last schedule runs", func(t *testing.T) {
		d := NewDebouncer(20*time.Millisecond, testLogger())
		defer d.Stop()

		var mu sync.Mutex
		var ran []int
		done := make(chan struct{})
		for i := 1; i <= 3; i++ {
			d.Schedule("plan-1", func(context.Context) {
				mu.Lock()
				ran = append(ran, i)
				mu.Unlock()
				close(done)
			})
		}

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("debounced task never ran")
		}
		time.Sleep(40 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []int{3}, ran)
	})

	t.Run("keys are independent", func(t *testing.T) {
		d := NewDebouncer(10*time.Millisecond, testLogger())
		defer d.Stop()

		var count atomic.Int32
		var wg sync.WaitGroup
		wg.Add(2)
		for _, key := range []string{"a", "b"} {
			d.Schedule(key, func(context.Context) {
				count.Add(1)
				wg.Done()
			})
		}
		wg.Wait()
		assert.Equal(t, int32(2), count.Load())
	})

	t.Run("stop cancels pending work", func(t *testing.T) {
		d := NewDebouncer(time.Hour, testLogger())
		var ran atomic.Bool
		require.True(t, d.Schedule("plan-1", func(context.Context) { ran.Store(true) }))
		assert.Equal(t, 1, d.Pending())

		d.Stop()
		assert.Zero(t, d.Pending())
		assert.False(t, ran.Load())
		assert.False(t, d.Schedule("plan-1", func(context.Context) {}))
	})
}
