// Package telemetry collects mutation outcomes. Outcomes never affect a
// session; they are logged, kept in memory and optionally journaled.
package telemetry

import (
	"context"
	"sync"

	"browserprofiles/internal/mutator"

	"go.uber.org/zap"
)

// Recorder is the outcome sink of one session. Record is safe for
// concurrent use.
type Recorder struct {
	ProfileID string
	Logger    *zap.Logger
	// Journal, when set, persists every outcome.
	Journal *Journal

	mu       sync.Mutex
	outcomes []mutator.Outcome
}

// NewRecorder returns a Recorder for profileID.
func NewRecorder(profileID string, logger *zap.Logger, journal *Journal) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{ProfileID: profileID, Logger: logger, Journal: journal}
}

// Record logs o and stores it.
func (r *Recorder) Record(o mutator.Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()

	fields := []zap.Field{
		zap.String("profile", r.ProfileID),
		zap.String("mutator", o.Mutator),
		zap.String("page", o.PageID),
		zap.String("status", string(o.Status)),
		zap.Duration("elapsed", o.Duration),
	}
	if o.Reason != "" {
		fields = append(fields, zap.String("reason", o.Reason))
	}
	if o.Err != nil {
		fields = append(fields, zap.Error(o.Err))
	}

	logger := r.logger()
	switch o.Status {
	case mutator.StatusFailed:
		logger.Warn("mutation failed", fields...)
	case mutator.StatusSkipped:
		logger.Info("mutation skipped", fields...)
	default:
		logger.Debug("mutation applied", fields...)
	}

	if r.Journal != nil {
		if err := r.Journal.Append(context.Background(), r.ProfileID, o); err != nil {
			logger.Warn("journal append failed", zap.Error(err))
		}
	}
}

// Outcomes returns a copy of everything recorded so far.
func (r *Recorder) Outcomes() []mutator.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mutator.Outcome(nil), r.outcomes...)
}

// Summary counts outcomes per status.
func (r *Recorder) Summary() map[mutator.Status]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[mutator.Status]int, 3)
	for _, o := range r.outcomes {
		counts[o.Status]++
	}
	return counts
}

func (r *Recorder) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
