// Package mutator holds the per-page identity transformations applied to
// every page of a session, and the ordered registry that runs them.
//
// Each mutator is independently failable: whatever happens inside Apply is
// turned into an Outcome and never stops the next mutator or the next page.
package mutator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"browserprofiles/internal/driver"
	"browserprofiles/internal/profile"
)

// Status is the result class of one mutator on one page.
type Status string

const (
	StatusApplied Status = "applied"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Reason used when the page disappeared mid-pass.
const ReasonPageClosed = "page closed"

// Outcome records what one mutator did to one page.
type Outcome struct {
	Mutator  string
	PageID   string
	Status   Status
	Reason   string
	Err      error
	Duration time.Duration
}

// Mutator transforms a page according to the launch spec. Implementations
// report absent spec fields as StatusSkipped.
type Mutator interface {
	Name() string
	Apply(ctx context.Context, page driver.Page, spec *profile.LaunchSpec) Outcome
}

// Applied, Skipped and Failed build outcomes inside Apply. The registry
// fills in the mutator name, page id and duration.
func Applied() Outcome {
	return Outcome{Status: StatusApplied}
}

func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason}
}

func Failed(reason string, err error) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, Err: err}
}

// FromError maps a driver error: nil is applied, a closed page is skipped
// and anything else failed with reason.
func FromError(reason string, err error) Outcome {
	switch {
	case err == nil:
		return Applied()
	case errors.Is(err, driver.ErrPageClosed):
		return Outcome{Status: StatusSkipped, Reason: ReasonPageClosed, Err: err}
	default:
		return Failed(reason, err)
	}
}

// Registry is an ordered, immutable list of mutators. It holds no state
// between calls and is safe for concurrent use across pages.
type Registry struct {
	mutators []Mutator
}

// NewRegistry returns a registry that applies ms in the given order.
func NewRegistry(ms ...Mutator) *Registry {
	return &Registry{mutators: append([]Mutator(nil), ms...)}
}

// Names lists the mutators in application order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.mutators))
	for i, m := range r.mutators {
		names[i] = m.Name()
	}
	return names
}

// Run applies every mutator to page in order and passes each outcome to
// report. Once ctx is done the remaining mutators are abandoned and
// nothing more is reported.
func (r *Registry) Run(ctx context.Context, page driver.Page, spec *profile.LaunchSpec, report func(Outcome)) {
	for _, m := range r.mutators {
		if ctx.Err() != nil {
			return
		}
		out := apply(ctx, m, page, spec)
		if ctx.Err() != nil && out.Status == StatusFailed {
			// Torn down mid-call; the page's state goes with it.
			return
		}
		if report != nil {
			report(out)
		}
	}
}

func apply(ctx context.Context, m Mutator, page driver.Page, spec *profile.LaunchSpec) (out Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = Failed("panic", fmt.Errorf("mutator %s panicked: %v\n%s", m.Name(), r, debug.Stack()))
		}
		out.Mutator = m.Name()
		out.PageID = page.ID()
		out.Duration = time.Since(start)
	}()
	return m.Apply(ctx, page, spec)
}
