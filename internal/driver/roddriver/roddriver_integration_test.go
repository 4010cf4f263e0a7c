//go:build integration

package roddriver

import (
	"context"
	"os"
	"testing"
	"time"

	"browserprofiles/internal/driver"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func chromePath(t *testing.T) string {
	t.Helper()
	if p := os.Getenv("BROWSERPROFILES_EXECUTABLE"); p != "" {
		return p
	}
	p, ok := launcher.LookPath()
	if !ok {
		t.Skip("no chrome found")
	}
	return p
}

func TestLaunch_NewPageEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	l := NewLauncher(zaptest.NewLogger(t))
	b, err := l.Launch(ctx, driver.LaunchOptions{
		ExecutablePath: chromePath(t),
		UserDataDir:    t.TempDir(),
		Args:           []string{"--lang=en-US"},
		Headless:       true,
	})
	require.NoError(t, err)
	defer b.Close()

	p, err := b.NewPage(ctx, "")
	require.NoError(t, err)
	require.NoError(t, p.EmulateTimezone(ctx, "Europe/Berlin"))
	require.NoError(t, p.EvalOnNewDocument(ctx, "window.__marker = 1"))

	deadline := time.After(30 * time.Second)
	for {
		select {
		case ev := <-b.PageEvents():
			if ev.TargetID() != p.ID() {
				continue
			}
			rp, err := ev.Resolve(ctx)
			require.NoError(t, err)
			require.NotNil(t, rp)
			assert.Equal(t, p.ID(), rp.ID())
			return
		case <-deadline:
			t.Fatal("page created event not observed")
		}
	}
}

func TestClosedPageIsClassified(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	b, err := NewLauncher(nil).Launch(ctx, driver.LaunchOptions{
		ExecutablePath: chromePath(t),
		UserDataDir:    t.TempDir(),
		Headless:       true,
	})
	require.NoError(t, err)
	defer b.Close()

	p, err := b.NewPage(ctx, "")
	require.NoError(t, err)
	require.NoError(t, p.Close())

	err = p.EmulateTimezone(ctx, "UTC")
	assert.ErrorIs(t, err, driver.ErrPageClosed)
}
