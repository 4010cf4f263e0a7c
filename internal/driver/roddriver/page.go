package roddriver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"browserprofiles/internal/driver"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"
)

// Page adapts *rod.Page to driver.Page.
type Page struct {
	rp *rod.Page

	mu     sync.Mutex
	router *rod.HijackRouter
}

func newPage(rp *rod.Page) *Page {
	return &Page{rp: rp}
}

// ID is the CDP target id.
func (p *Page) ID() string {
	return string(p.rp.TargetID)
}

// URL returns the page's current URL, or "" if the target is gone.
func (p *Page) URL() string {
	info, err := p.rp.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *Page) EvalOnNewDocument(ctx context.Context, js string) error {
	if _, err := p.rp.Context(ctx).EvalOnNewDocument(js); err != nil {
		return classify(fmt.Errorf("add init script: %w", err))
	}
	return nil
}

func (p *Page) EmulateTimezone(ctx context.Context, zone string) error {
	err := proto.EmulationSetTimezoneOverride{TimezoneID: zone}.Call(p.rp.Context(ctx))
	if err != nil {
		return classify(fmt.Errorf("set timezone override %q: %w", zone, err))
	}
	return nil
}

func (p *Page) SetUserAgent(ctx context.Context, ua driver.UserAgentOverride) error {
	err := p.rp.Context(ctx).SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      ua.UserAgent,
		AcceptLanguage: ua.AcceptLanguage,
		Platform:       ua.Platform,
	})
	if err != nil {
		return classify(fmt.Errorf("set user agent override: %w", err))
	}
	return nil
}

func (p *Page) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dict := make([]string, 0, len(headers)*2)
	for _, k := range keys {
		dict = append(dict, k, headers[k])
	}
	if _, err := p.rp.Context(ctx).SetExtraHeaders(dict); err != nil {
		return classify(fmt.Errorf("set extra headers: %w", err))
	}
	return nil
}

func (p *Page) SetDeviceMetrics(ctx context.Context, m driver.DeviceMetrics) error {
	err := proto.EmulationSetDeviceMetricsOverride{
		Width:             m.Width,
		Height:            m.Height,
		DeviceScaleFactor: m.DeviceScaleFactor,
		Mobile:            m.Mobile,
	}.Call(p.rp.Context(ctx))
	if err != nil {
		return classify(fmt.Errorf("set device metrics: %w", err))
	}
	return nil
}

// RouteThrough intercepts every request of the page and replays it with
// client. A page has at most one route; later calls replace the client.
func (p *Page) RouteThrough(ctx context.Context, client *http.Client) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.router != nil {
		_ = p.router.Stop()
		p.router = nil
	}

	router := p.rp.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if err := h.LoadResponse(client, true); err != nil {
			h.Response.Fail(proto.NetworkErrorReasonConnectionFailed)
		}
	})
	if err != nil {
		return classify(fmt.Errorf("enable request interception: %w", err))
	}
	go router.Run()
	p.router = router
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.rp.Context(ctx).Navigate(url); err != nil {
		return classify(fmt.Errorf("navigate to %s: %w", url, err))
	}
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	if p.router != nil {
		_ = p.router.Stop()
		p.router = nil
	}
	p.mu.Unlock()

	if err := p.rp.Close(); err != nil {
		return classify(fmt.Errorf("close page: %w", err))
	}
	return nil
}

var closedMessages = []string{
	"No target with given id",
	"Target closed",
	"Session with given id not found",
	"No session with given id",
}

// classify maps CDP errors that mean the target is gone onto
// driver.ErrPageClosed, keeping the original error in the chain.
func classify(err error) error {
	var cdpErr *cdp.Error
	if errors.As(err, &cdpErr) {
		for _, m := range closedMessages {
			if strings.Contains(cdpErr.Message, m) {
				return fmt.Errorf("%w: %w", driver.ErrPageClosed, err)
			}
		}
		return err
	}
	for _, m := range closedMessages {
		if strings.Contains(err.Error(), m) {
			return fmt.Errorf("%w: %w", driver.ErrPageClosed, err)
		}
	}
	return err
}
