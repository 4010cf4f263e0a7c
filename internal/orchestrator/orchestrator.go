// Package orchestrator is the single entry point that turns a profile
// record into a running, identity-mutated browser session.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"browserprofiles/internal/driver"
	"browserprofiles/internal/launcher"
	"browserprofiles/internal/logging"
	"browserprofiles/internal/mutator"
	"browserprofiles/internal/profile"
	"browserprofiles/internal/telemetry"
	"browserprofiles/internal/watcher"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultStartURL is opened in the working page once it is mutated.
const DefaultStartURL = "https://google.com"

// defaultParallelism bounds concurrent passes over the pages found at launch.
const defaultParallelism = 4

// Orchestrator sequences resolve, launch, the initial mutation pass and
// the session watcher.
type Orchestrator struct {
	Resolver *profile.Resolver
	Launcher *launcher.Launcher
	// NewRegistry builds the mutator registry of one launch. nil means
	// mutator.Default with stealth evasions enabled.
	NewRegistry func() *mutator.Registry
	// StartURL is opened after the initial pass. "" leaves the working
	// page blank.
	StartURL string
	// Journal, when set, persists outcomes of every session.
	Journal     *telemetry.Journal
	Parallelism int
	Logger      *zap.Logger
}

// LaunchResult is what the caller sees: whether the launch step worked.
// Mutation outcomes never turn a launch into a failure.
type LaunchResult struct {
	Success bool
	Message string
	// Err is the ResolutionError or LaunchError behind a failure.
	Err     error
	Session *Session
}

// LaunchSession resolves rec, launches a browser for it and mutates every
// page it has and will have.
func (o *Orchestrator) LaunchSession(ctx context.Context, rec *profile.ProfileRecord) LaunchResult {
	base := o.logger()

	if o.Resolver == nil || o.Launcher == nil {
		return failed(errors.New("orchestrator is not configured"))
	}

	spec, err := o.Resolver.Resolve(rec)
	if err != nil {
		logging.Get(base, logging.CategoryResolve).Warn("profile rejected", zap.Error(err))
		return failed(err)
	}

	sessionID := uuid.NewString()
	logger := base.With(zap.String("profile", spec.ProfileID), zap.String("session", sessionID))
	if spec.Proxy != nil {
		logger.Debug("resolved proxy", zap.String("proxy", spec.Proxy.Redacted()))
	}

	handle, err := o.Launcher.Launch(ctx, spec)
	if err != nil {
		logging.Get(logger, logging.CategoryLaunch).Error("launch failed", zap.Error(err))
		return failed(err)
	}

	registry := o.registry()
	recorder := telemetry.NewRecorder(spec.ProfileID, logging.Get(logger, logging.CategoryMutation), o.Journal)
	tracker := watcher.NewTracker()
	sessionCtx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:       sessionID,
		spec:     spec,
		handle:   handle,
		recorder: recorder,
		tracker:  tracker,
		cancel:   cancel,
		done:     make(chan struct{}),
		logger:   logger,
	}

	// Open the working page before the stale default pages are closed.
	working, err := handle.Browser.NewPage(ctx, "about:blank")
	if err != nil {
		logger.Warn("could not open working page", zap.Error(err))
		working = nil
	}

	targets := append([]driver.Page(nil), handle.InitialPages...)
	if working != nil {
		targets = append(targets, working)
	}
	// Without any other window, closing the default pages would end the
	// browser. Keep them and mutate them like any other page.
	keepStale := len(targets) == 0
	if keepStale {
		logger.Warn("keeping default pages open", zap.Int("pages", len(handle.StalePages)))
		targets = append(targets, handle.StalePages...)
	} else {
		for _, p := range handle.StalePages {
			tracker.Claim(p.ID())
		}
	}

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(o.parallelism())
	for _, p := range targets {
		if !tracker.Claim(p.ID()) {
			continue
		}
		g.Go(func() error {
			registry.Run(sessionCtx, p, spec, recorder.Record)
			return nil
		})
	}
	_ = g.Wait()
	logger.Debug("initial mutation pass finished",
		zap.Int("pages", len(targets)),
		zap.Duration("elapsed", time.Since(start)))

	if !keepStale {
		if err := handle.CloseStale(ctx); err != nil {
			logger.Warn("closing stale pages", zap.Error(err))
		}
	}

	s.watcher = &watcher.Watcher{
		Registry: registry,
		Spec:     spec,
		Tracker:  tracker,
		Report:   recorder.Record,
		Logger:   logging.Get(logger, logging.CategoryWatcher),
	}
	go s.watch(sessionCtx)

	if working != nil && o.StartURL != "" {
		if err := working.Navigate(ctx, o.StartURL); err != nil {
			logger.Warn("start page navigation failed", zap.String("url", o.StartURL), zap.Error(err))
		}
	}

	logger.Info("session launched", zap.String("data_dir", handle.DataDir))
	return LaunchResult{
		Success: true,
		Message: fmt.Sprintf("launched profile %s", spec.ProfileID),
		Session: s,
	}
}

func failed(err error) LaunchResult {
	return LaunchResult{Success: false, Message: err.Error(), Err: err}
}

func (o *Orchestrator) registry() *mutator.Registry {
	if o.NewRegistry != nil {
		return o.NewRegistry()
	}
	return mutator.Default(mutator.Options{StealthEvasions: true})
}

func (o *Orchestrator) parallelism() int {
	if o.Parallelism > 0 {
		return o.Parallelism
	}
	return defaultParallelism
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Session is one running browser launched for a profile.
type Session struct {
	id       string
	spec     *profile.LaunchSpec
	handle   *launcher.SessionHandle
	recorder *telemetry.Recorder
	tracker  *watcher.Tracker
	watcher  *watcher.Watcher
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func (s *Session) watch(ctx context.Context) {
	defer close(s.done)
	defer s.handle.Release()
	err := s.watcher.Run(ctx, s.handle.Browser.PageEvents())
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("watcher ended", zap.Error(err))
	}
	s.logger.Info("session ended",
		zap.Int("pages", s.tracker.Len()),
		zap.Any("outcomes", s.recorder.Summary()))
}

// ID is unique per launch.
func (s *Session) ID() string { return s.id }

// ProfileID is the profile the session runs.
func (s *Session) ProfileID() string { return s.spec.ProfileID }

// Spec is the resolved spec the session was launched with.
func (s *Session) Spec() *profile.LaunchSpec { return s.spec }

// DataDir is the session's private data directory.
func (s *Session) DataDir() string { return s.handle.DataDir }

// Outcomes returns every mutation outcome so far.
func (s *Session) Outcomes() []mutator.Outcome { return s.recorder.Outcomes() }

// State is the watcher state.
func (s *Session) State() watcher.State { return s.watcher.State() }

// Done is closed once the session ended, by process exit or Stop.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ended.
func (s *Session) Wait() { <-s.done }

// Stop ends the watcher and closes the browser. In-flight mutations are
// abandoned. It waits for the session to end or ctx to be done.
func (s *Session) Stop(ctx context.Context) error {
	var closeErr error
	s.stopOnce.Do(func() {
		s.logger.Debug("stopping session", zap.Int("in_flight", s.watcher.InFlight()))
		s.cancel()
		closeErr = s.handle.Browser.Close()
	})
	select {
	case <-s.done:
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
