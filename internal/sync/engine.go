// Package sync implements the synchronization engine: pulling
// authoritative master data, pulling recent orders, and draining the
// durable mutation queue against the remote store.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tillsync/internal/connectivity"
	"tillsync/internal/model"
	"tillsync/internal/remote"
	"tillsync/internal/store"
)

// ErrNoSession is returned when an operation runs before a business
// context (tenant/branch/warehouse) has been established. Nothing is
// mutated when it is raised.
var ErrNoSession = errors.New("no active session")

// Config holds engine tuning knobs.
type Config struct {
	// OrdersPullLimit caps how many recent remote orders one cycle pulls.
	OrdersPullLimit int
}

// Engine orchestrates sync cycles. One engine is built per active
// session scope; all shared state lives on the instance, never in
// package globals.
type Engine struct {
	store   *store.Store
	remote  remote.Store
	tracker *connectivity.Tracker
	cfg     Config

	mu       sync.Mutex
	session  model.Session
	inFlight bool
}

// NewEngine creates a sync engine.
func NewEngine(st *store.Store, rs remote.Store, tracker *connectivity.Tracker, cfg Config) *Engine {
	if cfg.OrdersPullLimit <= 0 {
		cfg.OrdersPullLimit = 50
	}
	return &Engine{
		store:   st,
		remote:  rs,
		tracker: tracker,
		cfg:     cfg,
	}
}

// SetSession atomically swaps the engine's working context. The caller
// decides whether to re-trigger a sync afterwards.
func (e *Engine) SetSession(s model.Session) {
	e.mu.Lock()
	e.session = s
	e.mu.Unlock()
}

// Session returns the current working context.
func (e *Engine) Session() model.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// SyncNow runs one full sync cycle: pull master data, pull recent
// orders, drain the queue, then publish the resulting connectivity
// state. A trigger that arrives while a cycle is running is dropped, not
// queued; redundant calls are safe.
func (e *Engine) SyncNow(ctx context.Context) error {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		log.Printf("[SyncEngine] Sync already in progress, trigger dropped")
		return nil
	}
	if e.session.IsZero() {
		e.mu.Unlock()
		return ErrNoSession
	}
	e.inFlight = true
	sess := e.session
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}()

	started := time.Now().UTC()
	e.tracker.SetSyncing()

	var cycleErr error
	pulled, pushed, failed := 0, 0, 0

	// Master data before queue draining, so pushed inventory deltas land
	// on top of the freshest pulled baseline.
	n, err := e.pullMasterData(ctx, sess)
	pulled += n
	if err != nil {
		cycleErr = fmt.Errorf("pull master data: %w", err)
		log.Printf("[SyncEngine] %v", cycleErr)
	}

	if cycleErr == nil {
		n, err = e.pullOrders(ctx, sess, e.cfg.OrdersPullLimit)
		pulled += n
		if err != nil {
			cycleErr = fmt.Errorf("pull orders: %w", err)
			log.Printf("[SyncEngine] %v", cycleErr)
		}
	}

	if cycleErr == nil {
		pushed, failed, err = e.processQueue(ctx, sess)
		if err != nil {
			cycleErr = fmt.Errorf("process queue: %w", err)
			log.Printf("[SyncEngine] %v", cycleErr)
		}
	}

	finished := time.Now().UTC()

	queueCount, qerr := e.store.QueueCount(ctx, sess.TenantID)
	if qerr != nil && cycleErr == nil {
		cycleErr = qerr
	}
	e.tracker.SetCycleResult(cycleErr, queueCount, finished)

	// Audit trail is best effort: a failed write is logged, never raised.
	entry := model.SyncLogEntry{
		TenantID:   sess.TenantID,
		StartedAt:  started,
		DurationMs: finished.Sub(started).Milliseconds(),
		Pulled:     pulled,
		Pushed:     pushed,
		Failed:     failed,
	}
	if cycleErr != nil {
		entry.Error = cycleErr.Error()
	}
	if err := e.store.AppendSyncLog(ctx, entry); err != nil {
		log.Printf("[SyncEngine] Failed to append sync log: %v", err)
	}

	log.Printf("[SyncEngine] Cycle done in %v - pulled=%d pushed=%d failed=%d queued=%d",
		finished.Sub(started), pulled, pushed, failed, queueCount)

	return cycleErr
}
