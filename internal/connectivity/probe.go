// Package connectivity tracks the terminal's network/sync status and
// exposes it as an observable state record for the UI layer.
package connectivity

import (
	"context"
	"log"
	"sync"
	"time"
)

// Probe answers the single question "is the remote store reachable right
// now". Tests inject deterministic implementations; production wires a
// ping against the remote store.
type Probe interface {
	Online(ctx context.Context) bool
}

// ProbeFunc adapts a plain function to the Probe interface.
type ProbeFunc func(ctx context.Context) bool

// Online implements Probe.
func (f ProbeFunc) Online(ctx context.Context) bool { return f(ctx) }

// Poller runs the probe on an interval and reports online/offline edges.
type Poller struct {
	probe    Probe
	interval time.Duration
	timeout  time.Duration
	onChange func(online bool)

	stopCh    chan struct{}
	isRunning bool
	lastSeen  bool
	mu        sync.Mutex
}

// NewPoller creates a poller that invokes onChange on every transition
// between reachable and unreachable, plus once with the initial reading.
func NewPoller(probe Probe, interval, timeout time.Duration, onChange func(online bool)) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Poller{
		probe:    probe,
		interval: interval,
		timeout:  timeout,
		onChange: onChange,
	}
}

// Start begins polling in a background goroutine. A stopped poller can
// be started again.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = true
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.mu.Unlock()

	log.Printf("[ConnectivityPoller] Started - interval: %v", p.interval)

	go func() {
		// Initial reading before the first tick so startup state is right.
		p.check(true)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				p.check(false)
			}
		}
	}()
}

func (p *Poller) check(force bool) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	online := p.probe.Online(ctx)
	cancel()

	p.mu.Lock()
	changed := force || online != p.lastSeen
	p.lastSeen = online
	p.mu.Unlock()

	if changed && p.onChange != nil {
		p.onChange(online)
	}
}

// Stop halts polling. Safe to call more than once; Start brings the
// poller back afterwards.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isRunning {
		return
	}
	p.isRunning = false
	close(p.stopCh)
	log.Printf("[ConnectivityPoller] Stopped")
}
