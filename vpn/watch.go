package vpn

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yllada/teleport-manager/common"
)

// DefaultWatchInterval is how often a Watcher re-queries the tunnel.
const DefaultWatchInterval = 5 * time.Second

// Watcher periodically re-derives the tunnel state and reports changes.
// Each check is a single status query; it never retries.
type Watcher struct {
	mu       sync.RWMutex
	ctrl     *Controller
	interval time.Duration
	running  bool
	stopChan chan struct{}
	last     common.TunnelState
	onChange func(from, to common.TunnelState)
}

// NewWatcher creates a watcher for ctrl.
func NewWatcher(ctrl *Controller, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Watcher{
		ctrl:     ctrl,
		interval: interval,
		stopChan: make(chan struct{}),
		last:     common.StateUnknown,
	}
}

// SetOnChange sets a callback for state changes. It runs on the watcher
// goroutine.
func (w *Watcher) SetOnChange(callback func(from, to common.TunnelState)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = callback
}

// Start begins watching. The first check happens immediately.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopChan = make(chan struct{})
	stop := w.stopChan
	w.mu.Unlock()

	log.Debug().Dur("interval", w.interval).Msg("tunnel watcher started")
	go w.runLoop(ctx, stop)
}

// Stop stops watching.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopChan)
	log.Debug().Msg("tunnel watcher stopped")
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Last returns the most recently observed state.
func (w *Watcher) Last() common.TunnelState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

func (w *Watcher) runLoop(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.check(ctx)
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-stop:
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	state := w.ctrl.QueryState(ctx, 1, 0)

	w.mu.Lock()
	old := w.last
	w.last = state
	callback := w.onChange
	w.mu.Unlock()

	if old != state {
		log.Info().Stringer("from", old).Stringer("to", state).Msg("tunnel state changed")
		if callback != nil {
			callback(old, state)
		}
	}
}
