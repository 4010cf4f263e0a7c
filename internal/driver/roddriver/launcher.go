// Package roddriver implements the driver capability on top of go-rod.
package roddriver

import (
	"context"
	"fmt"
	"strings"

	"browserprofiles/internal/driver"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Launcher starts local Chrome processes through rod's launcher.
type Launcher struct {
	Logger *zap.Logger
}

// NewLauncher creates a rod-backed driver.Launcher.
func NewLauncher(logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{Logger: logger}
}

type launched struct {
	browser *Browser
	err     error
}

// Launch starts the process and connects to it. ctx bounds startup only;
// the running browser lives until Close or process exit.
func (l *Launcher) Launch(ctx context.Context, opts driver.LaunchOptions) (driver.Browser, error) {
	sessionCtx, cancel := context.WithCancel(context.Background())

	lnch := launcher.New().
		Context(sessionCtx).
		Headless(opts.Headless).
		UserDataDir(opts.UserDataDir).
		// Keep the browser's own start window so it can be enumerated.
		Delete(flags.Flag("no-startup-window")).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	if opts.ExecutablePath != "" {
		lnch = lnch.Bin(opts.ExecutablePath)
	}
	for _, rawFlag := range opts.Args {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if name == "" || name == "user-data-dir" {
			continue
		}
		if hasVal {
			lnch = lnch.Set(flags.Flag(name), val)
		} else {
			lnch = lnch.Set(flags.Flag(name))
		}
	}

	done := make(chan launched, 1)
	go func() {
		u, err := lnch.Launch()
		if err != nil {
			done <- launched{err: fmt.Errorf("launch chrome: %w", err)}
			return
		}
		rb := newRodBrowser(sessionCtx).ControlURL(u)
		if err := rb.Connect(); err != nil {
			done <- launched{err: fmt.Errorf("connect to chrome: %w", err)}
			return
		}
		done <- launched{browser: newBrowser(sessionCtx, cancel, rb, lnch, l.Logger)}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			cancel()
			lnch.Kill()
			return nil, res.err
		}
		l.Logger.Debug("chrome connected",
			zap.Int("pid", lnch.PID()),
			zap.String("user_data_dir", opts.UserDataDir))
		return res.browser, nil
	case <-ctx.Done():
		cancel()
		lnch.Kill()
		// The launch goroutine may still complete; release what it built.
		go func() {
			if res := <-done; res.browser != nil {
				_ = res.browser.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// newRodBrowser returns an unconnected rod browser. rod emulates a laptop
// device on every attached page unless told otherwise; page identity is
// left entirely to the mutators.
func newRodBrowser(ctx context.Context) *rod.Browser {
	return rod.New().Context(ctx).NoDefaultDevice()
}

// Browser adapts *rod.Browser to driver.Browser.
type Browser struct {
	b      *rod.Browser
	lnch   *launcher.Launcher
	ctx    context.Context
	cancel context.CancelFunc
	queue  *driver.EventQueue
	done   chan struct{}
	logger *zap.Logger
}

func newBrowser(ctx context.Context, cancel context.CancelFunc, rb *rod.Browser, lnch *launcher.Launcher, logger *zap.Logger) *Browser {
	b := &Browser{
		b:      rb,
		lnch:   lnch,
		ctx:    ctx,
		cancel: cancel,
		queue:  driver.NewEventQueue(ctx),
		done:   make(chan struct{}),
		logger: logger,
	}

	// Connect already enabled target discovery. Targets created before this
	// subscription are found by the launcher's Pages call instead.
	wait := rb.EachEvent(func(e *proto.TargetTargetCreated) {
		if e.TargetInfo == nil {
			return
		}
		b.queue.Push(&pageEvent{browser: b, info: e.TargetInfo})
	})

	go func() {
		// Returns when the connection drops or ctx is cancelled.
		wait()
		b.queue.Close()
		close(b.done)
		cancel()
	}()

	return b
}

// Pages lists open page targets.
func (b *Browser) Pages(ctx context.Context) ([]driver.Page, error) {
	rps, err := b.b.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	pages := make([]driver.Page, 0, len(rps))
	for _, rp := range rps {
		pages = append(pages, newPage(rp.Context(b.ctx)))
	}
	return pages, nil
}

// NewPage opens a page target.
func (b *Browser) NewPage(ctx context.Context, url string) (driver.Page, error) {
	if url == "" {
		url = "about:blank"
	}
	rp, err := b.b.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	// Detach the page from the caller's context.
	return newPage(rp.Context(b.ctx)), nil
}

// PageEvents implements driver.Browser.
func (b *Browser) PageEvents() <-chan driver.PageEvent {
	return b.queue.Events()
}

// Done implements driver.Browser.
func (b *Browser) Done() <-chan struct{} {
	return b.done
}

// Close shuts the browser down. The user data directory is left in place,
// so launcher.Cleanup is never called.
func (b *Browser) Close() error {
	err := b.b.Close()
	b.cancel()
	b.lnch.Kill()
	return err
}

type pageEvent struct {
	browser *Browser
	info    *proto.TargetTargetInfo
}

func (e *pageEvent) TargetID() string {
	return string(e.info.TargetID)
}

func (e *pageEvent) Resolve(ctx context.Context) (driver.Page, error) {
	if e.info.Type != proto.TargetTargetInfoTypePage {
		return nil, nil
	}
	rp, err := e.browser.b.Context(ctx).PageFromTarget(e.info.TargetID)
	if err != nil {
		return nil, classify(fmt.Errorf("attach to target %s: %w", e.info.TargetID, err))
	}
	return newPage(rp.Context(e.browser.ctx)), nil
}
