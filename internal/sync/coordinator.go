package sync

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// CoordinatorConfig holds configuration for the sync coordinator.
type CoordinatorConfig struct {
	// SyncInterval is how often each entity type syncs on its own (0 disables
	// periodic syncing).
	SyncInterval time.Duration

	// QueueSize bounds the pending-request buffer per entity type. Requests
	// beyond the buffer coalesce into the already-queued one.
	QueueSize int
}

// DefaultCoordinatorConfig returns sensible defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		SyncInterval: 5 * time.Minute,
		QueueSize:    1,
	}
}

// Coordinator serializes sync cycles. Each entity type has one loop, so no
// two cycles of the same type ever overlap; transactions and budgets may run
// concurrently since they touch disjoint record kinds. Sync requests are
// explicit messages on a bounded queue; redundant requests coalesce instead
// of aborting the in-flight cycle.
type Coordinator struct {
	syncer    *Syncer
	config    CoordinatorConfig
	flight    singleflight.Group
	requests  map[Entity]chan struct{}
	onOutcome func(context.Context, Outcome)

	// Lifecycle management
	mu      stdsync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewCoordinator(syncer *Syncer, config CoordinatorConfig) *Coordinator {
	if config.QueueSize < 1 {
		config.QueueSize = 1
	}
	return &Coordinator{
		syncer: syncer,
		config: config,
		requests: map[Entity]chan struct{}{
			EntityTransactions: make(chan struct{}, config.QueueSize),
			EntityBudgets:      make(chan struct{}, config.QueueSize),
		},
	}
}

// OnOutcome registers a hook invoked after every executed cycle. Must be set
// before Start.
func (c *Coordinator) OnOutcome(fn func(context.Context, Outcome)) {
	c.onOutcome = fn
}

// Start begins the per-entity sync loops. Returns an error if already running.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("sync coordinator is already running")
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	go func() {
		defer close(c.doneCh)

		g, loopCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			c.runLoop(loopCtx, EntityTransactions)
			return nil
		})
		g.Go(func() error {
			c.runLoop(loopCtx, EntityBudgets)
			return nil
		})
		g.Wait()
	}()

	slog.InfoContext(ctx, "Sync coordinator started",
		"sync_interval", c.config.SyncInterval,
		"queue_size", c.config.QueueSize)

	return nil
}

// Stop waits for the in-flight cycles to finish. A running cycle is never
// aborted; only new triggering stops.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	close(c.stopCh)

	select {
	case <-c.doneCh:
		slog.InfoContext(ctx, "Sync coordinator stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync coordinator stop timed out")
		return ctx.Err()
	}

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	return nil
}

// IsRunning returns whether the coordinator loops are active.
func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Request enqueues a sync for the entity. Returns false when the request was
// coalesced into one already pending.
func (c *Coordinator) Request(entity Entity) bool {
	ch, ok := c.requests[entity]
	if !ok {
		return false
	}
	select {
	case ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// SyncNow runs a cycle for the entity and waits for its outcome. Concurrent
// callers for the same entity share the single in-flight cycle.
func (c *Coordinator) SyncNow(ctx context.Context, entity Entity) (Outcome, error) {
	if !entity.IsValid() {
		return Outcome{}, fmt.Errorf("unknown sync entity %q", entity)
	}
	return c.run(ctx, entity), nil
}

func (c *Coordinator) runLoop(ctx context.Context, entity Entity) {
	var tick <-chan time.Time
	if c.config.SyncInterval > 0 {
		ticker := time.NewTicker(c.config.SyncInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	// Sync immediately on startup
	c.run(ctx, entity)

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-tick:
			c.run(ctx, entity)
		case <-c.requests[entity]:
			c.run(ctx, entity)
		}
	}
}

// run executes one cycle through singleflight so a loop iteration and a
// SyncNow caller never run two cycles of the same entity concurrently.
func (c *Coordinator) run(ctx context.Context, entity Entity) Outcome {
	v, _, _ := c.flight.Do(string(entity), func() (any, error) {
		var oc Outcome
		switch entity {
		case EntityTransactions:
			oc = c.syncer.SyncTransactions(ctx)
		case EntityBudgets:
			oc = c.syncer.SyncBudgets(ctx)
		}
		if c.onOutcome != nil {
			c.onOutcome(ctx, oc)
		}
		return oc, nil
	})
	return v.(Outcome)
}
