// Package fakedriver is an in-memory driver used by tests. Pages record
// every primitive applied to them and failures can be injected per call.
package fakedriver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"browserprofiles/internal/driver"
)

// Launcher hands out fake browsers.
type Launcher struct {
	// Delay blocks Launch before it succeeds, honouring ctx.
	Delay time.Duration
	// Err is returned by Launch when set.
	Err error
	// InitialURLs are the pages the browser starts with. nil means one
	// about:blank page.
	InitialURLs []string
	// Setup, when set, configures every browser before Launch returns it.
	Setup func(*Browser)

	mu       sync.Mutex
	launches []driver.LaunchOptions
	browsers []*Browser
}

func (l *Launcher) Launch(ctx context.Context, opts driver.LaunchOptions) (driver.Browser, error) {
	l.mu.Lock()
	l.launches = append(l.launches, opts)
	l.mu.Unlock()

	if l.Delay > 0 {
		t := time.NewTimer(l.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}

	urls := l.InitialURLs
	if urls == nil {
		urls = []string{"about:blank"}
	}
	b := NewBrowser(urls...)
	if l.Setup != nil {
		l.Setup(b)
	}

	l.mu.Lock()
	l.browsers = append(l.browsers, b)
	l.mu.Unlock()
	return b, nil
}

// Launches returns the options of every Launch call.
func (l *Launcher) Launches() []driver.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]driver.LaunchOptions(nil), l.launches...)
}

// Browsers returns every browser launched so far.
func (l *Launcher) Browsers() []*Browser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Browser(nil), l.browsers...)
}

// Browser is a fake driver.Browser.
type Browser struct {
	ctx    context.Context
	cancel context.CancelFunc
	queue  *driver.EventQueue
	done   chan struct{}
	once   sync.Once
	nextID atomic.Int64

	mu     sync.Mutex
	pages  map[string]*Page
	order  []string
	closed bool

	// PagesErr, when set, is returned by Pages.
	PagesErr error
	// NewPageErr, when set, is returned by NewPage.
	NewPageErr error
	// Configure, when set, is called on every page before it is exposed.
	Configure func(*Page)
}

// NewBrowser returns a running browser with pages open at urls.
func NewBrowser(urls ...string) *Browser {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Browser{
		ctx:    ctx,
		cancel: cancel,
		queue:  driver.NewEventQueue(ctx),
		done:   make(chan struct{}),
		pages:  make(map[string]*Page),
	}
	for _, u := range urls {
		b.addPage(u)
	}
	return b
}

func (b *Browser) addPage(url string) *Page {
	p := &Page{id: fmt.Sprintf("page-%d", b.nextID.Add(1)), url: url, browser: b}
	b.mu.Lock()
	b.pages[p.id] = p
	b.order = append(b.order, p.id)
	cfg := b.Configure
	b.mu.Unlock()
	if cfg != nil {
		cfg(p)
	}
	return p
}

// Pages lists the open pages in creation order.
func (b *Browser) Pages(ctx context.Context) ([]driver.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PagesErr != nil {
		return nil, b.PagesErr
	}
	var out []driver.Page
	for _, id := range b.order {
		if p := b.pages[id]; p != nil && !p.IsClosed() {
			out = append(out, p)
		}
	}
	return out, nil
}

// NewPage opens a page and announces it on PageEvents, as a real browser
// does for every target it creates.
func (b *Browser) NewPage(ctx context.Context, url string) (driver.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.IsClosed() {
		return nil, errors.New("browser closed")
	}
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	if url == "" {
		url = "about:blank"
	}
	p := b.addPage(url)
	b.queue.Push(PageCreated(p))
	return p, nil
}

// OpenPage simulates the user or a site opening a tab.
func (b *Browser) OpenPage(url string) *Page {
	p := b.addPage(url)
	b.queue.Push(PageCreated(p))
	return p
}

// Emit pushes an arbitrary event.
func (b *Browser) Emit(ev driver.PageEvent) bool {
	return b.queue.Push(ev)
}

// Page returns a page by id.
func (b *Browser) Page(id string) *Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pages[id]
}

// AllPages returns every page ever created, closed ones included.
func (b *Browser) AllPages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Page, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.pages[id])
	}
	return out
}

func (b *Browser) PageEvents() <-chan driver.PageEvent {
	return b.queue.Events()
}

func (b *Browser) Done() <-chan struct{} {
	return b.done
}

// Exit simulates the process going away: the event stream ends after the
// already queued events.
func (b *Browser) Exit() {
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		b.queue.Close()
		close(b.done)
	})
}

func (b *Browser) Close() error {
	b.Exit()
	b.cancel()
	return nil
}

func (b *Browser) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Event is a fake driver.PageEvent.
type Event struct {
	ID   string
	Page *Page
	Err  error
}

// PageCreated is the event a page target produces.
func PageCreated(p *Page) *Event {
	return &Event{ID: p.id, Page: p}
}

// WorkerCreated is the event of a non-page target.
func WorkerCreated(id string) *Event {
	return &Event{ID: id}
}

func (e *Event) TargetID() string { return e.ID }

func (e *Event) Resolve(ctx context.Context) (driver.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.Err != nil {
		return nil, e.Err
	}
	if e.Page == nil {
		return nil, nil
	}
	return e.Page, nil
}

// Call is one primitive applied to a page.
type Call struct {
	Op  string
	Arg any
}

// Page is a fake driver.Page.
type Page struct {
	id      string
	browser *Browser

	mu     sync.Mutex
	url    string
	calls  []Call
	closed bool
	fail   map[string]error
	hooks  map[string]func()
	client *http.Client
}

func (p *Page) ID() string { return p.id }

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// FailOn makes every later call of op return err.
func (p *Page) FailOn(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail == nil {
		p.fail = make(map[string]error)
	}
	p.fail[op] = err
}

// OnCall runs fn, without the page lock held, each time op is invoked.
func (p *Page) OnCall(op string, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hooks == nil {
		p.hooks = make(map[string]func())
	}
	p.hooks[op] = fn
}

// Calls returns the recorded primitives in order.
func (p *Page) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallsTo returns the arguments of every call of op.
func (p *Page) CallsTo(op string) []any {
	var out []any
	for _, c := range p.Calls() {
		if c.Op == op {
			out = append(out, c.Arg)
		}
	}
	return out
}

// Client is the client passed to RouteThrough.
func (p *Page) Client() *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client
}

func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) record(ctx context.Context, op string, arg any) error {
	p.mu.Lock()
	hook := p.hooks[op]
	p.mu.Unlock()
	if hook != nil {
		hook()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("%s on %s: %w", op, p.id, driver.ErrPageClosed)
	}
	if err := p.fail[op]; err != nil {
		return err
	}
	p.calls = append(p.calls, Call{Op: op, Arg: arg})
	return nil
}

func (p *Page) EvalOnNewDocument(ctx context.Context, js string) error {
	return p.record(ctx, "EvalOnNewDocument", js)
}

func (p *Page) EmulateTimezone(ctx context.Context, zone string) error {
	return p.record(ctx, "EmulateTimezone", zone)
}

func (p *Page) SetUserAgent(ctx context.Context, ua driver.UserAgentOverride) error {
	return p.record(ctx, "SetUserAgent", ua)
}

func (p *Page) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	cp := make(map[string]string, len(headers))
	for k, v := range headers {
		cp[k] = v
	}
	return p.record(ctx, "SetExtraHeaders", cp)
}

func (p *Page) SetDeviceMetrics(ctx context.Context, m driver.DeviceMetrics) error {
	return p.record(ctx, "SetDeviceMetrics", m)
}

func (p *Page) RouteThrough(ctx context.Context, client *http.Client) error {
	if err := p.record(ctx, "RouteThrough", client); err != nil {
		return err
	}
	p.mu.Lock()
	p.client = client
	p.mu.Unlock()
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.record(ctx, "Navigate", url); err != nil {
		return err
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("close %s: %w", p.id, driver.ErrPageClosed)
	}
	p.closed = true
	return nil
}
