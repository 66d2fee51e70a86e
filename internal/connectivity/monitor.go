// Package connectivity turns platform network-state changes into a single
// semantic signal: "connectivity regained". The sync coordinator subscribes
// to that signal; it never watches the network itself.
package connectivity

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const defaultProbeInterval = 15 * time.Second

// Handler runs when connectivity is regained or a sync is requested. The
// returned retry flag asks the monitor to schedule a follow-up trigger with
// exponential backoff, covering connectivity that degrades while the
// platform still reports online.
type Handler func(ctx context.Context) (retry bool)

// Config tunes monitor behavior.
type Config struct {
	// Interval between platform probes. Defaults to 15s.
	Interval time.Duration
	// Logf receives operational log lines. Defaults to log.Printf.
	Logf func(string, ...any)
}

// Monitor watches a platform connectivity probe and fires a handler once per
// offline-to-online transition. Manual sync requests fire the handler
// regardless of the last probe result: a user action implying connectivity
// outranks a stale probe.
type Monitor struct {
	probe    func(context.Context) bool
	interval time.Duration
	logf     func(string, ...any)

	mu      sync.Mutex
	online  bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	manual  chan struct{}
}

// New creates a monitor around probe.
func New(probe func(context.Context) bool, cfg Config) (*Monitor, error) {
	if probe == nil {
		return nil, fmt.Errorf("connectivity probe is required")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		logf:     logf,
		manual:   make(chan struct{}, 1),
	}, nil
}

// Online reports the last observed platform state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// RequestSync asks for a handler run outside the probe schedule, for
// example after a foreground call proved the network works. Coalesces when
// a request is already pending.
func (m *Monitor) RequestSync() {
	select {
	case m.manual <- struct{}{}:
	default:
	}
}

// Start begins watching and invokes handler on each regained-connectivity
// signal. When the platform is already online at start, handler fires once
// immediately so orders queued before this session still drain. Start
// returns an error if the monitor is already running.
func (m *Monitor) Start(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler is required")
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("monitor already started")
	}
	watchCtx, cancel := context.WithCancel(ctx)
	m.started = true
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.watch(watchCtx, handler)
	return nil
}

// Stop halts watching. Safe to call multiple times.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.started = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Monitor) watch(ctx context.Context, handler Handler) {
	defer close(m.done)

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.InitialInterval = time.Second
	retryPolicy.MaxInterval = 2 * time.Minute

	var retryTimer *time.Timer
	var retryC <-chan time.Time
	stopRetry := func() {
		if retryTimer != nil {
			retryTimer.Stop()
			retryTimer = nil
			retryC = nil
		}
	}
	defer stopRetry()

	fire := func() {
		stopRetry()
		if handler(ctx) {
			delay := retryPolicy.NextBackOff()
			m.logf("connectivity: scheduling sync retry in %s", delay)
			retryTimer = time.NewTimer(delay)
			retryC = retryTimer.C
		} else {
			retryPolicy.Reset()
		}
	}

	online := m.probe(ctx)
	m.setOnline(online)
	if online {
		fire()
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			nowOnline := m.probe(ctx)
			wasOnline := m.setOnline(nowOnline)
			if nowOnline && !wasOnline {
				m.logf("connectivity regained")
				fire()
			}

		case <-m.manual:
			// A manual request implies the network works.
			m.setOnline(true)
			fire()

		case <-retryC:
			retryTimer = nil
			retryC = nil
			if m.probe(ctx) {
				m.setOnline(true)
				fire()
			}
		}
	}
}

// setOnline stores the new state and returns the previous one.
func (m *Monitor) setOnline(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.online
	m.online = online
	return was
}
