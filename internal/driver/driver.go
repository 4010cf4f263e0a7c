// Package driver defines the automation capability the session core is
// written against. The rod-backed implementation lives in roddriver and an
// in-memory double in fakedriver.
package driver

import (
	"context"
	"errors"
	"net/http"
)

// ErrPageClosed is returned by Page primitives once the page is gone.
var ErrPageClosed = errors.New("page closed")

// LaunchOptions describes one browser process.
type LaunchOptions struct {
	ExecutablePath string
	UserDataDir    string
	// Args are raw command line switches, e.g. "--lang=de". The
	// user-data-dir switch is carried by UserDataDir instead.
	Args     []string
	Headless bool
}

// Launcher starts browser processes.
type Launcher interface {
	// Launch starts a process and connects to it. It must honour ctx's
	// deadline for the whole startup.
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is a running, connected browser process.
type Browser interface {
	// Pages lists the page targets currently open.
	Pages(ctx context.Context) ([]Page, error)
	// NewPage opens a page at url ("" means about:blank).
	NewPage(ctx context.Context, url string) (Page, error)
	// PageEvents is the stream of targets created after launch. It is
	// subscribed when the browser is launched, is never replayed and is
	// closed when the process exits or the connection drops.
	PageEvents() <-chan PageEvent
	// Done is closed once the process has exited or was closed.
	Done() <-chan struct{}
	Close() error
}

// PageEvent announces a newly created target.
type PageEvent interface {
	TargetID() string
	// Resolve attaches to the target. It returns (nil, nil) for targets
	// that are not pages, such as service workers.
	Resolve(ctx context.Context) (Page, error)
}

// UserAgentOverride is applied with Page.SetUserAgent.
type UserAgentOverride struct {
	UserAgent      string
	AcceptLanguage string
	Platform       string
}

// DeviceMetrics is applied with Page.SetDeviceMetrics.
type DeviceMetrics struct {
	Width             int
	Height            int
	DeviceScaleFactor float64
	Mobile            bool
}

// Page is one browsing context.
type Page interface {
	ID() string
	URL() string

	// EvalOnNewDocument registers js to run before any page script in
	// every document the page loads from now on.
	EvalOnNewDocument(ctx context.Context, js string) error
	EmulateTimezone(ctx context.Context, zone string) error
	SetUserAgent(ctx context.Context, ua UserAgentOverride) error
	SetExtraHeaders(ctx context.Context, headers map[string]string) error
	SetDeviceMetrics(ctx context.Context, m DeviceMetrics) error
	// RouteThrough sends every request of the page through client.
	RouteThrough(ctx context.Context, client *http.Client) error

	Navigate(ctx context.Context, url string) error
	Close() error
}

// IsBlank reports whether url is what a browser shows in a fresh tab.
func IsBlank(url string) bool {
	switch url {
	case "", "about:blank", "chrome://newtab/", "chrome://new-tab-page/", "chrome-search://local-ntp/local-ntp.html":
		return true
	}
	return false
}
