package telemetry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"browserprofiles/internal/mutator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorder_LogLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewRecorder("shop", zap.New(core), nil)

	r.Record(mutator.Outcome{Mutator: "webrtc-leak-suppress", PageID: "p1", Status: mutator.StatusApplied})
	r.Record(mutator.Outcome{Mutator: "proxy-bind", PageID: "p1", Status: mutator.StatusSkipped, Reason: "no proxy configured"})
	r.Record(mutator.Outcome{Mutator: "timezone-emulate", PageID: "p1", Status: mutator.StatusFailed,
		Reason: `unknown timezone "Invalid/Zone"`, Err: errors.New("unknown time zone Invalid/Zone")})

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)

	failed := entries[2].ContextMap()
	assert.Equal(t, "timezone-emulate", failed["mutator"])
	assert.Equal(t, "p1", failed["page"])
	assert.Equal(t, "shop", failed["profile"])
	assert.Equal(t, "unknown time zone Invalid/Zone", failed["error"])

	assert.Equal(t, map[mutator.Status]int{
		mutator.StatusApplied: 1,
		mutator.StatusSkipped: 1,
		mutator.StatusFailed:  1,
	}, r.Summary())
}

func TestRecorder_Concurrent(t *testing.T) {
	r := NewRecorder("p", nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record(mutator.Outcome{Mutator: "m", Status: mutator.StatusApplied})
		}()
	}
	wg.Wait()
	assert.Len(t, r.Outcomes(), 20)
}

func TestJournal_AppendAndList(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	ctx := context.Background()
	require.NoError(t, j.Append(ctx, "shop", mutator.Outcome{
		Mutator: "proxy-bind", PageID: "p1", Status: mutator.StatusApplied, Duration: 15 * time.Millisecond,
	}))
	require.NoError(t, j.Append(ctx, "other", mutator.Outcome{Mutator: "proxy-bind", PageID: "x", Status: mutator.StatusApplied}))
	require.NoError(t, j.Append(ctx, "shop", mutator.Outcome{
		Mutator: "timezone-emulate", PageID: "p1", Status: mutator.StatusFailed,
		Reason: "unknown timezone", Err: errors.New("bad zone"),
	}))

	all, err := j.ListByProfile(ctx, "shop", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "proxy-bind", all[0].Mutator)
	assert.Equal(t, int64(15), all[0].DurationMS)
	assert.Equal(t, fixed, all[0].CreatedAt)
	assert.Equal(t, mutator.StatusFailed, all[1].Status)
	assert.Equal(t, "unknown timezone", all[1].Reason)
	assert.Equal(t, "bad zone", all[1].Error)

	latest, err := j.ListByProfile(ctx, "shop", 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "timezone-emulate", latest[0].Mutator)

	none, err := j.ListByProfile(ctx, "missing", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(context.Background(), "shop", mutator.Outcome{Mutator: "m", PageID: "p", Status: mutator.StatusSkipped}))
	require.NoError(t, j.Close())

	j, err = OpenJournal(path)
	require.NoError(t, err)
	defer j.Close()
	entries, err := j.ListByProfile(context.Background(), "shop", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, path, j.Path())
}

func TestRecorder_WritesJournal(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	r := NewRecorder("shop", nil, j)
	r.Record(mutator.Outcome{Mutator: "fingerprint-inject", PageID: "p2", Status: mutator.StatusSkipped, Reason: "no fingerprint configured"})

	entries, err := j.ListByProfile(context.Background(), "shop", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p2", entries[0].PageID)
}
