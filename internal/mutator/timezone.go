package mutator

import (
	"context"
	"fmt"
	"time"
	// Zone names must validate on hosts without a zoneinfo database.
	_ "time/tzdata"

	"browserprofiles/internal/driver"
	"browserprofiles/internal/profile"
)

const NameTimezone = "timezone-emulate"

// Timezone overrides the timezone reported to page scripts.
type Timezone struct{}

func (Timezone) Name() string { return NameTimezone }

func (Timezone) Apply(ctx context.Context, page driver.Page, spec *profile.LaunchSpec) Outcome {
	if spec.Timezone == "" {
		return Skipped("no timezone configured")
	}
	if _, err := time.LoadLocation(spec.Timezone); err != nil {
		return Failed(fmt.Sprintf("unknown timezone %q", spec.Timezone), err)
	}
	return FromError("emulate timezone "+spec.Timezone, page.EmulateTimezone(ctx, spec.Timezone))
}
