package mutator

import (
	"context"
	"net/http"

	"browserprofiles/internal/driver"
	"browserprofiles/internal/profile"
	"browserprofiles/internal/proxy"
)

const NameProxyBind = "proxy-bind"

// ProxyBind routes every request of the page through the profile proxy.
type ProxyBind struct {
	// NewClient builds the proxied client; nil means proxy.NewClient.
	NewClient func(*profile.ProxySpec) (*http.Client, error)
}

func (ProxyBind) Name() string { return NameProxyBind }

func (b ProxyBind) Apply(ctx context.Context, page driver.Page, spec *profile.LaunchSpec) Outcome {
	if spec.Proxy == nil {
		return Skipped("no proxy configured")
	}
	newClient := b.NewClient
	if newClient == nil {
		newClient = proxy.NewClient
	}
	client, err := newClient(spec.Proxy)
	if err != nil {
		return Failed("build proxy client for "+spec.Proxy.Redacted(), err)
	}
	return FromError("route page through "+spec.Proxy.Redacted(), page.RouteThrough(ctx, client))
}
