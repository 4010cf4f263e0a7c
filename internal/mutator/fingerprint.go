package mutator

import (
	"context"
	_ "embed"
	"encoding/json"
	"strings"

	"browserprofiles/internal/driver"
	"browserprofiles/internal/profile"
)

const NameFingerprint = "fingerprint-inject"

// ReasonUnstructured is reported for fingerprint payloads that could not be
// parsed into an identity.
const ReasonUnstructured = "unstructured fingerprint payload"

//go:embed fingerprint.js
var fingerprintTemplate string

// Fingerprint applies a spoofed identity: the user agent override, the
// fingerprint's request headers, the screen size and an init script that
// rewrites navigator, screen and WebGL properties.
type Fingerprint struct{}

func (Fingerprint) Name() string { return NameFingerprint }

func (Fingerprint) Apply(ctx context.Context, page driver.Page, spec *profile.LaunchSpec) Outcome {
	fp := spec.Fingerprint
	if fp == nil {
		return Skipped("no fingerprint configured")
	}
	if !fp.Structured {
		return Failed(ReasonUnstructured, nil)
	}

	acceptLang, _ := fp.Header("accept-language")
	ua := ""
	platform := ""
	if fp.Identity != nil {
		ua = fp.Identity.Navigator.UserAgent
		platform = fp.Identity.Navigator.Platform
	}
	if ua == "" {
		ua, _ = fp.Header("user-agent")
	}

	if ua != "" {
		err := page.SetUserAgent(ctx, driver.UserAgentOverride{
			UserAgent:      ua,
			AcceptLanguage: acceptLang,
			Platform:       platform,
		})
		if err != nil {
			return FromError("override user agent", err)
		}
	}

	if err := page.SetExtraHeaders(ctx, extraHeaders(fp.Headers)); err != nil {
		return FromError("set fingerprint headers", err)
	}

	if fp.Identity == nil {
		return Applied()
	}

	if s := fp.Identity.Screen; s.Width > 0 && s.Height > 0 {
		err := page.SetDeviceMetrics(ctx, driver.DeviceMetrics{
			Width:             s.Width,
			Height:            s.Height,
			DeviceScaleFactor: s.DevicePixelRatio,
		})
		if err != nil {
			return FromError("set device metrics", err)
		}
	}

	js, err := fingerprintScript(fp.Identity)
	if err != nil {
		return Failed("render fingerprint script", err)
	}
	return FromError("install fingerprint script", page.EvalOnNewDocument(ctx, js))
}

// extraHeaders drops the headers the browser derives itself or that the
// user agent override already covers.
func extraHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		switch strings.ToLower(k) {
		case "user-agent", "host", "content-length", "connection":
			continue
		}
		out[k] = v
	}
	return out
}

func fingerprintScript(id *profile.Identity) (string, error) {
	data, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	return strings.Replace(fingerprintTemplate, "__FINGERPRINT__", string(data), 1), nil
}
