package profile

import (
	"encoding/json"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// LaunchSpec is the validated, normalized form of a ProfileRecord. It is
// fully resolved before any process starts and is never mutated after
// Resolve returns; downstream components only read it.
type LaunchSpec struct {
	ProfileID string   `json:"profileId"`
	DataDir   string   `json:"dataDir"`
	Args      []string `json:"launchArgs"`

	Proxy          *ProxySpec   `json:"proxy,omitempty"`
	Fingerprint    *Fingerprint `json:"fingerprint,omitempty"`
	Timezone       string       `json:"timezone,omitempty"`
	SuppressWebRTC bool         `json:"suppressWebRtc"`
}

// ProxySpec is a resolved proxy route.
type ProxySpec struct {
	Scheme   string `json:"scheme"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"-"`
	Auth     bool   `json:"auth"`
}

// URL renders the connection URL. Credentials are embedded only when
// authentication is enabled.
func (p *ProxySpec) URL() *url.URL {
	u := &url.URL{
		Scheme: p.Scheme,
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
	}
	if p.Auth {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// String returns the connection URL, e.g. http://u:p@1.2.3.4:8080.
func (p *ProxySpec) String() string {
	return p.URL().String()
}

// Redacted returns the connection URL with the password masked, for logs.
func (p *ProxySpec) Redacted() string {
	return p.URL().Redacted()
}

// Fingerprint is a spoofed browser identity. When Structured is false the
// payload could not be parsed and only Raw is set; consumers must accept
// either shape.
type Fingerprint struct {
	Structured bool              `json:"structured"`
	Identity   *Identity         `json:"fingerprint,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Raw        json.RawMessage   `json:"-"`
}

// Header looks a header up case-insensitively.
func (f *Fingerprint) Header(name string) (string, bool) {
	for k, v := range f.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Identity is the navigator/screen/GPU description of a fingerprint
// document, in the layout produced by fingerprint generators.
type Identity struct {
	Navigator Navigator  `json:"navigator"`
	Screen    Screen     `json:"screen"`
	VideoCard *VideoCard `json:"videoCard,omitempty"`
}

// Navigator mirrors the navigator properties that get overridden.
type Navigator struct {
	UserAgent           string   `json:"userAgent"`
	Language            string   `json:"language,omitempty"`
	Languages           []string `json:"languages,omitempty"`
	Platform            string   `json:"platform,omitempty"`
	Vendor              string   `json:"vendor,omitempty"`
	HardwareConcurrency int      `json:"hardwareConcurrency,omitempty"`
	DeviceMemory        float64  `json:"deviceMemory,omitempty"`
	MaxTouchPoints      int      `json:"maxTouchPoints,omitempty"`
	DoNotTrack          *string  `json:"doNotTrack,omitempty"`
}

// Screen mirrors window.screen and the outer window dimensions.
type Screen struct {
	Width            int     `json:"width,omitempty"`
	Height           int     `json:"height,omitempty"`
	AvailWidth       int     `json:"availWidth,omitempty"`
	AvailHeight      int     `json:"availHeight,omitempty"`
	ColorDepth       int     `json:"colorDepth,omitempty"`
	PixelDepth       int     `json:"pixelDepth,omitempty"`
	DevicePixelRatio float64 `json:"devicePixelRatio,omitempty"`
	OuterWidth       int     `json:"outerWidth,omitempty"`
	OuterHeight      int     `json:"outerHeight,omitempty"`
}

// VideoCard is reported through WEBGL_debug_renderer_info.
type VideoCard struct {
	Vendor   string `json:"vendor"`
	Renderer string `json:"renderer"`
}
