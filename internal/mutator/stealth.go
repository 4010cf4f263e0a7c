package mutator

import (
	"context"

	"browserprofiles/internal/driver"
	"browserprofiles/internal/profile"

	"github.com/go-rod/stealth"
)

const NameStealth = "stealth-evasions"

// Stealth injects the puppeteer-extra evasions bundle shipped by
// go-rod/stealth. It depends on no spec field, only on configuration.
type Stealth struct {
	Enabled bool
}

func (s Stealth) Name() string { return NameStealth }

func (s Stealth) Apply(ctx context.Context, page driver.Page, _ *profile.LaunchSpec) Outcome {
	if !s.Enabled {
		return Skipped("stealth evasions disabled")
	}
	return FromError("install stealth evasions", page.EvalOnNewDocument(ctx, stealth.JS))
}
