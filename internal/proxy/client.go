// Package proxy builds HTTP clients that send a page's traffic through the
// proxy of a profile.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"browserprofiles/internal/profile"

	xproxy "golang.org/x/net/proxy"
	"h12.io/socks"
)

const (
	dialTimeout           = 30 * time.Second
	keepAlive             = 30 * time.Second
	tlsHandshakeTimeout   = 15 * time.Second
	responseHeaderTimeout = 60 * time.Second
	idleConnTimeout       = 90 * time.Second
	maxIdleConnsPerHost   = 16
)

// ErrUnsupportedScheme is returned for proxy schemes with no dialer.
var ErrUnsupportedScheme = errors.New("unsupported proxy scheme")

// NewClient returns a client whose every connection goes through spec.
// Redirects are returned to the caller untouched so the browser can follow
// them itself.
func NewClient(spec *profile.ProxySpec) (*http.Client, error) {
	if spec == nil {
		return nil, errors.New("proxy: nil spec")
	}
	transport, err := newTransport(spec)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

func newTransport(spec *profile.ProxySpec) (*http.Transport, error) {
	base := &net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}
	transport := &http.Transport{
		DialContext:           base.DialContext,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		IdleConnTimeout:       idleConnTimeout,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		ForceAttemptHTTP2:     true,
		// The browser negotiates encodings; pass bodies through as-is.
		DisableCompression: true,
	}

	u := spec.URL()
	switch spec.Scheme {
	case "http", "https":
		// Credentials in u become the Proxy-Authorization header.
		transport.Proxy = http.ProxyURL(u)
	case "socks4", "socks4a":
		// SOCKS4 carries no password; socks4a lets the proxy resolve hostnames.
		su := url.URL{
			Scheme:   spec.Scheme,
			Host:     net.JoinHostPort(spec.Host, strconv.Itoa(spec.Port)),
			RawQuery: "timeout=" + dialTimeout.String(),
		}
		transport.DialContext = contextDialer{socks4Dialer(socks.Dial(su.String()))}.DialContext
	case "socks5":
		d, err := xproxy.FromURL(u, base)
		if err != nil {
			return nil, fmt.Errorf("proxy dialer for %s: %w", spec.Redacted(), err)
		}
		cd, ok := d.(xproxy.ContextDialer)
		if !ok {
			cd = contextDialer{d}
		}
		transport.DialContext = cd.DialContext
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedScheme, spec.Scheme)
	}
	return transport, nil
}

type socks4Dialer func(network, addr string) (net.Conn, error)

func (d socks4Dialer) Dial(network, addr string) (net.Conn, error) {
	c, err := d(network, addr)
	if err != nil {
		return nil, err
	}
	// The handshake timeout must not outlive the handshake.
	_ = c.SetDeadline(time.Time{})
	return c, nil
}

type contextDialer struct {
	xproxy.Dialer
}

func (d contextDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := d.Dial(network, addr)
		ch <- result{c, err}
	}()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}
