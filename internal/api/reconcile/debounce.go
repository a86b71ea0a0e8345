package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSyncDebounce applies when no positive delay is configured.
const DefaultSyncDebounce = 1200 * time.Millisecond

// Debouncer delays work per key. Scheduling a key again before its timer fires
// replaces the pending task, so only the last one runs. Tasks for the same key
// never overlap. Tasks receive a context that lives until Stop.
type Debouncer struct {
	delay  time.Duration
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]*time.Timer
	running sync.Map // key -> *sync.Mutex
	wg      sync.WaitGroup
}

func NewDebouncer(delay time.Duration, logger *slog.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultSyncDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		delay:   delay,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*time.Timer),
	}
}

// Schedule runs fn after the debounce delay unless key is scheduled again
// first. It returns false once the debouncer is stopped.
func (d *Debouncer) Schedule(key string, fn func(ctx context.Context)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx.Err() != nil {
		return false
	}
	if t, ok := d.pending[key]; ok && t.Stop() {
		d.wg.Done()
	}

	var timer *time.Timer
	d.wg.Add(1)
	timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()

		d.mu.Lock()
		if d.pending[key] != timer {
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()

		lock, _ := d.running.LoadOrStore(key, &sync.Mutex{})
		lock.(*sync.Mutex).Lock()
		defer lock.(*sync.Mutex).Unlock()

		if d.ctx.Err() != nil {
			return
		}
		fn(d.ctx)
	})
	d.pending[key] = timer
	return true
}

// Pending reports how many keys are waiting to fire.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels every pending task and the context of running ones, then waits
// for running tasks to return.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.cancel()
	for key, t := range d.pending {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.pending, key)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Expense sync debouncer stopped")
}
