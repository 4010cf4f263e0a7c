// Package launcher starts one browser process per profile in the profile's
// private data directory and reports the pages it opened on its own.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"browserprofiles/internal/driver"
	"browserprofiles/internal/profile"

	"go.uber.org/zap"
)

// DefaultTimeout bounds browser startup.
const DefaultTimeout = 240 * time.Second

// Provisioner supplies the browser executable.
type Provisioner interface {
	ResolveExecutable(ctx context.Context, revision int) (string, error)
}

// Launcher launches sessions. A Launcher must not be copied after first use.
type Launcher struct {
	Driver      driver.Launcher
	Provisioner Provisioner
	Revision    int
	Headless    bool
	Timeout     time.Duration
	Logger      *zap.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// New returns a Launcher with the default timeout.
func New(d driver.Launcher, p Provisioner, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		Driver:      d,
		Provisioner: p,
		Timeout:     DefaultTimeout,
		Logger:      logger,
	}
}

// SessionHandle is a launched browser plus the pages it came up with.
type SessionHandle struct {
	Browser   driver.Browser
	ProfileID string
	DataDir   string

	// InitialPages were open at launch and carry content.
	InitialPages []driver.Page
	// StalePages are the blank pages the browser opened by itself. They are
	// recorded here so they can be claimed and closed instead of mutated.
	StalePages []driver.Page

	release func()
}

// CloseStale closes the stale pages. A page that is already gone is not an
// error.
func (h *SessionHandle) CloseStale(ctx context.Context) error {
	var errs []error
	for _, p := range h.StalePages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Close(); err != nil && !errors.Is(err, driver.ErrPageClosed) {
			errs = append(errs, fmt.Errorf("close stale page %s: %w", p.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Release gives up ownership of the data directory. It is safe to call
// more than once.
func (h *SessionHandle) Release() {
	if h.release != nil {
		h.release()
	}
}

// Launch starts a browser for spec. Failures are *LaunchError values that
// match ErrLaunchTimeout or ErrLaunchFailure.
func (l *Launcher) Launch(ctx context.Context, spec *profile.LaunchSpec) (*SessionHandle, error) {
	if spec == nil || spec.ProfileID == "" || spec.DataDir == "" {
		return nil, failure("", errors.New("incomplete launch spec"))
	}
	logger := l.logger().With(zap.String("profile", spec.ProfileID))

	release, err := l.acquire(spec.ProfileID)
	if err != nil {
		return nil, failure(spec.ProfileID, err)
	}
	ok := false
	defer func() {
		if !ok {
			release()
		}
	}()

	if err := os.MkdirAll(spec.DataDir, 0o755); err != nil {
		return nil, failure(spec.ProfileID, fmt.Errorf("create data dir: %w", err))
	}

	exe := ""
	if l.Provisioner != nil {
		exe, err = l.Provisioner.ResolveExecutable(ctx, l.Revision)
		if err != nil {
			return nil, failure(spec.ProfileID, fmt.Errorf("resolve executable: %w", err))
		}
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	startCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := driver.LaunchOptions{
		ExecutablePath: exe,
		UserDataDir:    spec.DataDir,
		Args:           driverArgs(spec.Args),
		Headless:       l.Headless,
	}
	logger.Info("launching browser",
		zap.String("executable", exe),
		zap.String("data_dir", spec.DataDir),
		zap.Strings("args", opts.Args),
		zap.Duration("timeout", timeout))

	start := time.Now()
	b, err := l.Driver.Launch(startCtx, opts)
	if err != nil {
		return nil, l.classify(ctx, startCtx, spec.ProfileID, err)
	}

	pages, err := b.Pages(startCtx)
	if err != nil {
		_ = b.Close()
		return nil, l.classify(ctx, startCtx, spec.ProfileID, fmt.Errorf("enumerate pages: %w", err))
	}

	h := &SessionHandle{
		Browser:   b,
		ProfileID: spec.ProfileID,
		DataDir:   spec.DataDir,
		release:   release,
	}
	for _, p := range pages {
		if driver.IsBlank(p.URL()) {
			h.StalePages = append(h.StalePages, p)
		} else {
			h.InitialPages = append(h.InitialPages, p)
		}
	}

	logger.Info("browser ready",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("pages", len(h.InitialPages)),
		zap.Int("stale_pages", len(h.StalePages)))
	ok = true
	return h, nil
}

func (l *Launcher) classify(parent, startCtx context.Context, profileID string, err error) error {
	if parent.Err() == nil && errors.Is(startCtx.Err(), context.DeadlineExceeded) {
		return &LaunchError{Kind: KindTimeout, ProfileID: profileID, Err: err}
	}
	return failure(profileID, err)
}

func (l *Launcher) acquire(profileID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active == nil {
		l.active = make(map[string]struct{})
	}
	if _, busy := l.active[profileID]; busy {
		return nil, fmt.Errorf("%w: %s", ErrProfileInUse, profileID)
	}
	l.active[profileID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.active, profileID)
			l.mu.Unlock()
		})
	}, nil
}

func (l *Launcher) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

// driverArgs drops the data directory switch, which the driver receives
// through LaunchOptions.UserDataDir.
func driverArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if profile.IsUserDataDirArg(a) {
			continue
		}
		out = append(out, a)
	}
	return out
}
