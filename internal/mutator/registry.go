package mutator

import (
	"net/http"

	"browserprofiles/internal/profile"
)

// Options configure the default registry.
type Options struct {
	StealthEvasions bool
	// NewProxyClient overrides how proxy-bind builds its client.
	NewProxyClient func(*profile.ProxySpec) (*http.Client, error)
}

// Default builds the registry a session runs on every page:
// webrtc-leak-suppress, stealth-evasions, proxy-bind, timezone-emulate,
// fingerprint-inject.
func Default(opts Options) *Registry {
	return NewRegistry(
		WebRTC{},
		Stealth{Enabled: opts.StealthEvasions},
		ProxyBind{NewClient: opts.NewProxyClient},
		Timezone{},
		Fingerprint{},
	)
}
