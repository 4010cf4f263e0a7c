package profile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// DefaultAcceptLanguage is used when a fingerprint is applied but the
// profile has no language configured.
const DefaultAcceptLanguage = "en"

// maxSlugLen keeps data directory names well below filesystem limits.
const maxSlugLen = 64

// LanguagePolicy decides how system.language is overlaid onto the
// fingerprint's accept-language header.
type LanguagePolicy int

const (
	// LanguageOverride always replaces the payload's accept-language.
	LanguageOverride LanguagePolicy = iota
	// LanguagePreservePayload keeps a payload value and only fills gaps.
	LanguagePreservePayload
)

// ParseLanguagePolicy maps a config value onto a LanguagePolicy.
func ParseLanguagePolicy(s string) (LanguagePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "override":
		return LanguageOverride, nil
	case "preserve_payload":
		return LanguagePreservePayload, nil
	default:
		return LanguageOverride, fmt.Errorf("unknown language policy %q", s)
	}
}

var supportedProxySchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks4": true,
	"socks4a": true,
	"socks5": true,
}

// Resolver builds LaunchSpecs. Resolve is pure: no I/O, no network.
type Resolver struct {
	ProfilesRoot   string
	LanguagePolicy LanguagePolicy

	now   func() time.Time
	token func() string
}

// NewResolver creates a Resolver rooting data directories at profilesRoot.
func NewResolver(profilesRoot string, policy LanguagePolicy) *Resolver {
	return &Resolver{
		ProfilesRoot:   profilesRoot,
		LanguagePolicy: policy,
		now:            time.Now,
		token:          func() string { return uuid.NewString()[:8] },
	}
}

// Resolve validates and normalizes a profile record.
func (r *Resolver) Resolve(rec *ProfileRecord) (*LaunchSpec, error) {
	if rec == nil {
		return nil, &ResolutionError{Field: "record", Reason: "nil profile record"}
	}
	if r.ProfilesRoot == "" {
		return nil, &ResolutionError{Field: "profilesRoot", Reason: "no profiles root configured"}
	}

	id := r.profileID(rec.Name)
	dataDir := filepath.Join(r.ProfilesRoot, id)

	spec := &LaunchSpec{
		ProfileID: id,
		DataDir:   dataDir,
		Args:      mergeArgs(rec.Args, dataDir),
		Timezone:  string(rec.System.Timezone),
	}

	if rec.Proxy != nil && rec.Proxy.ProxyEnabled {
		p, err := resolveProxy(rec.Proxy)
		if err != nil {
			return nil, err
		}
		spec.Proxy = p
	}

	if fp := rec.Fingerprint; fp != nil {
		spec.SuppressWebRTC = fp.HideWebRtcLeak
		if fp.FingerprintEnabled {
			spec.Fingerprint = parseFingerprint(fp.FingerprintResult)
		}
	}

	if spec.Fingerprint != nil && spec.Fingerprint.Structured {
		lang := DefaultAcceptLanguage
		if l := rec.System.Language; l != nil && strings.TrimSpace(l.AcceptLang) != "" {
			lang = strings.TrimSpace(l.AcceptLang)
		}
		overlayHeader(spec.Fingerprint.Headers, "accept-language", lang, r.LanguagePolicy == LanguageOverride)
	}

	return spec, nil
}

// profileID slugs a profile name. A hash suffix is added whenever the slug
// differs from the raw name, so distinct names never share a directory.
func (r *Resolver) profileID(name string) string {
	if strings.TrimSpace(name) == "" {
		return fmt.Sprintf("%d-%s", r.now().UnixMilli(), r.token())
	}

	s := slug.Make(name)
	if len(s) > maxSlugLen {
		s = strings.Trim(s[:maxSlugLen], "-")
	}
	if s == name {
		return s
	}

	sum := sha256.Sum256([]byte(name))
	suffix := hex.EncodeToString(sum[:])[:8]
	if s == "" {
		return "profile-" + suffix
	}
	return s + "-" + suffix
}

// mergeArgs drops empty and caller-supplied user-data-dir arguments and
// appends the one derived from the profile id.
func mergeArgs(args []string, dataDir string) []string {
	out := make([]string, 0, len(args)+1)
	for _, a := range args {
		a = strings.TrimSpace(a)
		if a == "" || IsUserDataDirArg(a) {
			continue
		}
		out = append(out, a)
	}
	return append(out, "--user-data-dir="+dataDir)
}

// IsUserDataDirArg reports whether arg sets the browser data directory.
func IsUserDataDirArg(arg string) bool {
	name, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
	return name == "user-data-dir"
}

func resolveProxy(p *ProxySettings) (*ProxySpec, error) {
	scheme := strings.ToLower(strings.TrimSpace(p.ProxyType))
	if scheme == "" {
		scheme = "http"
	}
	if !supportedProxySchemes[scheme] {
		return nil, &ResolutionError{Field: "proxy.proxyType", Reason: fmt.Sprintf("unsupported scheme %q", p.ProxyType)}
	}

	host := strings.TrimSpace(p.ProxyHost)
	if host == "" {
		return nil, &ResolutionError{Field: "proxy.proxyHost", Reason: "required when proxy is enabled"}
	}

	port, err := p.ProxyPort.Int()
	if err != nil || port <= 0 || port > 65535 {
		return nil, &ResolutionError{Field: "proxy.proxyPort", Reason: fmt.Sprintf("invalid port %q", p.ProxyPort)}
	}

	spec := &ProxySpec{Scheme: scheme, Host: host, Port: port}
	if p.ProxyAuthEnabled {
		if p.ProxyUsername == "" {
			return nil, &ResolutionError{Field: "proxy.proxyUsername", Reason: "required when proxy auth is enabled"}
		}
		spec.Auth = true
		spec.Username = p.ProxyUsername
		spec.Password = p.ProxyPassword
	}
	return spec, nil
}

// fingerprintDocument is the on-the-wire fingerprint payload.
type fingerprintDocument struct {
	Fingerprint *Identity         `json:"fingerprint"`
	Headers     map[string]string `json:"headers"`
}

// parseFingerprint accepts a JSON object or a JSON string holding one.
// Anything that does not parse is carried opaquely. Returns nil when no
// payload is present.
func parseFingerprint(payload json.RawMessage) *Fingerprint {
	body := bytes.TrimSpace(payload)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}

	if body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err == nil {
			body = bytes.TrimSpace([]byte(inner))
		}
		if len(body) == 0 {
			return nil
		}
	}

	raw := append(json.RawMessage(nil), body...)
	if body[0] != '{' {
		return &Fingerprint{Raw: raw}
	}

	var doc fingerprintDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return &Fingerprint{Raw: raw}
	}
	if doc.Headers == nil {
		doc.Headers = make(map[string]string)
	}
	return &Fingerprint{
		Structured: true,
		Identity:   doc.Fingerprint,
		Headers:    doc.Headers,
		Raw:        raw,
	}
}

// overlayHeader sets key in headers, removing case variants. With
// override false an existing value is kept.
func overlayHeader(headers map[string]string, key, value string, override bool) {
	for k := range headers {
		if !strings.EqualFold(k, key) {
			continue
		}
		if !override {
			return
		}
		delete(headers, k)
	}
	headers[key] = value
}
