package otodo

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultPingTimeout bounds the connectivity probe; a probe that exceeds it
// is treated as offline.
const DefaultPingTimeout = 1500 * time.Millisecond

// hubSubscription is the name the coordinator subscribes to the hub under.
const hubSubscription = "sync-coordinator"

// Coordinator drains the outbox, exchanges it with the remote authority,
// applies the authoritative response back into the local store, and clears
// acknowledged entries.
//
// At most one sync cycle is in flight per device. A trigger that arrives
// while a cycle is running is coalesced: the coordinator remembers it and
// runs exactly one more cycle when the current one finishes, so two cycles
// never race to clear and re-populate the outbox.
type Coordinator struct {
	store     Store
	authority Authority
	identity  *IdentityManager
	logger    Logger

	pingTimeout time.Duration

	mu      sync.Mutex
	running bool
	rerun   bool
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(store Store, authority Authority, identity *IdentityManager, logger Logger) *Coordinator {
	return &Coordinator{
		store:       store,
		authority:   authority,
		identity:    identity,
		logger:      logger,
		pingTimeout: DefaultPingTimeout,
	}
}

// Online probes connectivity. A probe failure or timeout means offline;
// the probe never blocks longer than the ping timeout.
func (c *Coordinator) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()
	if err := c.authority.Ping(ctx); err != nil {
		c.logger.Debug("connectivity probe failed", "error", err)
		return false
	}
	return true
}

// AttachHub subscribes the coordinator to connectivity notifications.
// Going online triggers a sync; a failed triggered sync is logged and left
// for the next trigger. The subscription is idempotent.
func (c *Coordinator) AttachHub(ctx context.Context, hub *Hub) {
	hub.Subscribe(hubSubscription, func(ev Event) {
		if ev != EventOnline {
			return
		}
		if _, err := c.SyncAll(ctx); err != nil {
			c.logger.Warn("sync on reconnect failed", "error", err)
		}
	})
}

// DetachHub removes the coordinator's hub subscription.
func (c *Coordinator) DetachHub(hub *Hub) {
	hub.Unsubscribe(hubSubscription)
}

// SyncAll runs sync cycles until no trigger is pending and returns the task
// collection from the last completed cycle. If a cycle is already in flight,
// the call is coalesced into it and returns (nil, nil) immediately.
//
// The caller presumes connectivity; a failing exchange aborts the cycle
// before any local state is touched, leaving the outbox and tasks exactly as
// they were so the next trigger retries the same idempotent entries.
func (c *Coordinator) SyncAll(ctx context.Context) ([]Task, error) {
	c.mu.Lock()
	if c.running {
		c.rerun = true
		c.mu.Unlock()
		c.logger.Debug("sync already in flight, coalescing trigger")
		return nil, nil
	}
	c.running = true
	c.mu.Unlock()

	var (
		tasks []Task
		err   error
	)
	for {
		tasks, err = c.cycle(ctx)

		c.mu.Lock()
		if err == nil && c.rerun {
			c.rerun = false
			c.mu.Unlock()
			continue
		}
		c.rerun = false
		c.running = false
		c.mu.Unlock()
		return tasks, err
	}
}

// cycle performs one full exchange with the authority.
func (c *Coordinator) cycle(ctx context.Context) ([]Task, error) {
	clientID, err := c.identity.EnsureClientID()
	if err != nil {
		return nil, err
	}
	ops, err := c.store.ListOps()
	if err != nil {
		return nil, fmt.Errorf("listing outbox: %w", err)
	}

	tasks, err := c.authority.Sync(ctx, clientID, ops)
	if err != nil {
		return nil, fmt.Errorf("sync exchange: %w", err)
	}

	// The authority's response is the new truth: replace the whole local
	// collection and clear exactly the entries that were transmitted. An
	// entry superseded during the round trip carries a new op id, so it
	// survives the clear and stays pending for the next cycle.
	if err := c.store.ApplySyncResult(tasks, OpIDs(ops)); err != nil {
		return nil, fmt.Errorf("applying sync result: %w", err)
	}

	c.logger.Info("sync complete", "ops", len(ops), "tasks", len(tasks))
	return tasks, nil
}
