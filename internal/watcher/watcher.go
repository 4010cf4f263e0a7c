// Package watcher applies the mutation pass to every page a session creates
// after launch.
package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"browserprofiles/internal/driver"
	"browserprofiles/internal/mutator"
	"browserprofiles/internal/profile"

	"go.uber.org/zap"
)

// State of a Watcher.
type State int32

const (
	StateIdle State = iota
	StateWatching
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateWatching:
		return "watching"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// resolveTimeout bounds attaching to a new target.
const resolveTimeout = 30 * time.Second

// Watcher consumes a session's page-created events. Each new page gets
// one pass of the registry in its own goroutine, so a slow page never
// delays the next one.
type Watcher struct {
	Registry *mutator.Registry
	Spec     *profile.LaunchSpec
	Tracker  *Tracker
	// Report receives every outcome. It is called concurrently.
	Report func(mutator.Outcome)
	Logger *zap.Logger

	state    atomic.Int32
	inflight atomic.Int64
}

// State returns the current state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// InFlight is the number of pages currently being mutated.
func (w *Watcher) InFlight() int {
	return int(w.inflight.Load())
}

// Run watches events until the stream ends (process exit) or ctx is
// cancelled (explicit stop). It returns once every pass it started has
// finished or observed the cancellation.
func (w *Watcher) Run(ctx context.Context, events <-chan driver.PageEvent) error {
	if w.Registry == nil || w.Spec == nil {
		return errors.New("watcher: registry and spec are required")
	}
	if w.Tracker == nil {
		w.Tracker = NewTracker()
	}
	logger := w.logger()

	w.state.Store(int32(StateWatching))
	logger.Debug("watching for new pages")

	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		w.state.Store(int32(StateStopped))
		logger.Debug("watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !w.Tracker.Claim(ev.TargetID()) {
				continue
			}
			wg.Add(1)
			w.inflight.Add(1)
			go func() {
				defer wg.Done()
				defer w.inflight.Add(-1)
				w.handle(ctx, ev)
			}()
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev driver.PageEvent) {
	logger := w.logger().With(zap.String("target", ev.TargetID()))

	rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	page, err := ev.Resolve(rctx)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			logger.Debug("target not resolvable", zap.Error(err))
		}
		return
	}
	if page == nil {
		return
	}

	logger.Debug("mutating new page", zap.String("url", page.URL()))
	w.Registry.Run(ctx, page, w.Spec, w.report)
}

func (w *Watcher) report(o mutator.Outcome) {
	if w.Report != nil {
		w.Report(o)
	}
}

func (w *Watcher) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}
