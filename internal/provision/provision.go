// Package provision locates or downloads the browser executable.
package provision

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-rod/rod/lib/launcher"
	"go.uber.org/zap"
)

// ErrNoExecutable is returned when no browser could be found or fetched.
var ErrNoExecutable = errors.New("no browser executable available")

// Provisioner resolves the executable a session is launched with. The
// order is: an explicitly configured path, then the pinned revision from
// the local cache (downloading it when missing), then a system install.
type Provisioner struct {
	// ExecutablePath, when set, is used as is and must exist.
	ExecutablePath string
	// RootDir caches downloaded revisions.
	RootDir string
	Logger  *zap.Logger

	// Overridable for tests.
	fetch    func(ctx context.Context, rootDir string, revision int) (string, error)
	lookPath func() (string, bool)
}

// New returns a Provisioner backed by rod's browser downloader.
func New(executablePath, rootDir string, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provisioner{
		ExecutablePath: executablePath,
		RootDir:        rootDir,
		Logger:         logger,
		lookPath:       launcher.LookPath,
	}
	p.fetch = p.download
	return p
}

// ResolveExecutable returns the path of a runnable browser for revision.
func (p *Provisioner) ResolveExecutable(ctx context.Context, revision int) (string, error) {
	if p.ExecutablePath != "" {
		if _, err := os.Stat(p.ExecutablePath); err != nil {
			return "", fmt.Errorf("configured executable: %w", err)
		}
		return p.ExecutablePath, nil
	}

	var fetchErr error
	if p.fetch != nil && p.RootDir != "" {
		bin, err := p.fetch(ctx, p.RootDir, revision)
		if err == nil {
			p.Logger.Debug("using cached browser revision",
				zap.Int("revision", revision),
				zap.String("path", bin))
			return bin, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		fetchErr = err
		p.Logger.Warn("browser revision unavailable, trying system install",
			zap.Int("revision", revision),
			zap.Error(err))
	}

	if p.lookPath != nil {
		if bin, ok := p.lookPath(); ok {
			p.Logger.Info("using system browser", zap.String("path", bin))
			return bin, nil
		}
	}

	if fetchErr != nil {
		return "", fmt.Errorf("%w: %w", ErrNoExecutable, fetchErr)
	}
	return "", ErrNoExecutable
}

func (p *Provisioner) download(ctx context.Context, rootDir string, revision int) (string, error) {
	b := launcher.NewBrowser()
	b.Context = ctx
	b.RootDir = rootDir
	if revision > 0 {
		b.Revision = revision
	}
	b.Logger = zap.NewStdLog(p.Logger)
	bin, err := b.Get()
	if err != nil {
		return "", fmt.Errorf("fetch revision %d: %w", b.Revision, err)
	}
	return bin, nil
}
