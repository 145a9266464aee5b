package connectivity

import (
	"sync"
	"time"

	"tillsync/internal/model"
)

// Tracker is the single writer of the process-wide connectivity state.
// It holds no persistence: state is rebuilt from the probe on start and
// safe to reset on restart. Subscribers observe every change.
type Tracker struct {
	mu    sync.RWMutex
	state model.ConnectivityState
	subs  []func(model.ConnectivityState)
}

// NewTracker creates a tracker with its initial state derived from the
// current probe reading.
func NewTracker(online bool) *Tracker {
	status := model.StatusOffline
	if online {
		status = model.StatusOnlineSynced
	}
	return &Tracker{
		state: model.ConnectivityState{Online: online, Status: status},
	}
}

// State returns a snapshot of the current connectivity state.
func (t *Tracker) State() model.ConnectivityState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Subscribe registers an observer invoked after every state change.
// Observers run outside the tracker's lock.
func (t *Tracker) Subscribe(fn func(model.ConnectivityState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, fn)
}

// SetOffline records a network-offline signal, regardless of prior state.
func (t *Tracker) SetOffline() {
	t.apply(func(s *model.ConnectivityState) {
		s.Online = false
		s.Status = model.StatusOffline
	})
}

// SetOnline records a network-online signal without a sync cycle, as when
// the probe recovers before any session exists. Mirrors the initial-state
// rule in NewTracker.
func (t *Tracker) SetOnline() {
	t.apply(func(s *model.ConnectivityState) {
		s.Online = true
		if s.Status == model.StatusOffline {
			s.Status = model.StatusOnlineSynced
		}
	})
}

// SetSyncing records the start of a sync cycle. Online is owned by the
// probe edges (SetOnline/SetOffline) and left untouched here.
func (t *Tracker) SetSyncing() {
	t.apply(func(s *model.ConnectivityState) {
		s.Status = model.StatusSyncing
	})
}

// SetCycleResult records the outcome of a finished sync cycle: a clean
// cycle with an empty queue lands on online_synced, anything else on
// sync_failed with the error kept for display. Online itself is not
// touched; a cycle outcome says nothing about reachability that the
// probe has not already reported.
func (t *Tracker) SetCycleResult(err error, queueCount int, finishedAt time.Time) {
	t.apply(func(s *model.ConnectivityState) {
		s.QueueCount = queueCount
		if err == nil && queueCount == 0 {
			s.Status = model.StatusOnlineSynced
			s.LastError = ""
		} else {
			s.Status = model.StatusSyncFailed
			if err != nil {
				s.LastError = err.Error()
			}
		}
		at := finishedAt
		s.LastSyncAt = &at
	})
}

// SetQueueCount updates the queued-mutation counter shown to the UI.
func (t *Tracker) SetQueueCount(n int) {
	t.apply(func(s *model.ConnectivityState) {
		s.QueueCount = n
	})
}

func (t *Tracker) apply(mutate func(*model.ConnectivityState)) {
	t.mu.Lock()
	mutate(&t.state)
	snapshot := t.state
	subs := make([]func(model.ConnectivityState), len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}
