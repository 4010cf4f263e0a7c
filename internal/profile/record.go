// Package profile turns loosely-typed profile records, as produced by the
// profile editor and the profile API, into validated LaunchSpecs.
package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProfileRecord is the raw profile shape handed to LaunchSession. It is
// owned by the caller and never modified here.
type ProfileRecord struct {
	Name        string               `json:"name,omitempty"`
	Args        []string             `json:"args"`
	System      SystemSettings       `json:"system"`
	Proxy       *ProxySettings       `json:"proxy,omitempty"`
	Fingerprint *FingerprintSettings `json:"fingerprint,omitempty"`
}

// SystemSettings carries locale-level overrides.
type SystemSettings struct {
	Timezone TimezoneSetting   `json:"timezone,omitempty"`
	Language *LanguageSettings `json:"language,omitempty"`
}

// LanguageSettings carries the Accept-Language value chosen in the editor.
type LanguageSettings struct {
	AcceptLang string `json:"acceptLang,omitempty"`
}

// ProxySettings is the proxy section of a profile record.
type ProxySettings struct {
	ProxyEnabled     bool       `json:"proxyEnabled"`
	ProxyType        string     `json:"proxyType"`
	ProxyHost        string     `json:"proxyHost"`
	ProxyPort        FlexString `json:"proxyPort"`
	ProxyAuthEnabled bool       `json:"proxyAuthEnabled,omitempty"`
	ProxyUsername    string     `json:"proxyUsername,omitempty"`
	ProxyPassword    string     `json:"proxyPassword,omitempty"`
}

// FingerprintSettings is the fingerprint section of a profile record.
// FingerprintResult is kept raw: the editor stores it as a JSON string
// holding a JSON document, API clients send the document itself.
type FingerprintSettings struct {
	FingerprintEnabled bool            `json:"fingerprintEnabled"`
	FingerprintResult  json.RawMessage `json:"fingerprintResult,omitempty"`
	HideWebRtcLeak     bool            `json:"hideWebRtcLeak"`
}

// FlexString accepts a JSON string or number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

// Int parses the value as a base-10 integer.
func (f FlexString) Int() (int, error) {
	return strconv.Atoi(string(f))
}

// TimezoneSetting accepts either a zone name or the editor's
// {"timezone": "<zone>"} object.
type TimezoneSetting string

// UnmarshalJSON implements json.Unmarshaler.
func (t *TimezoneSetting) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TimezoneSetting(strings.TrimSpace(s))
		return nil
	}
	var obj struct {
		Timezone string `json:"timezone"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("timezone: expected string or object: %w", err)
	}
	*t = TimezoneSetting(strings.TrimSpace(obj.Timezone))
	return nil
}

// DecodeRecord decodes a JSON profile record.
func DecodeRecord(data []byte) (*ProfileRecord, error) {
	var rec ProfileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode profile record: %w", err)
	}
	return &rec, nil
}

// LoadRecord reads a profile record from a .json, .yaml or .yml file.
func LoadRecord(path string) (*ProfileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile record: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse profile record: %w", err)
		}
		data, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert profile record: %w", err)
		}
	}

	return DecodeRecord(data)
}
