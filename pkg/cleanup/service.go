// Package cleanup sweeps expired run-artifact directories, applying
// spec §5's "no mutable global scoring state between documents" to
// disk: old run directories are removed on a retention window, but a
// directory still carrying a valid sealed proof is never deleted
// unless the caller explicitly overrides that protection.
//
// Grounded on tarsy's pkg/cleanup/service.go (periodic retention loop,
// idempotent sweep, start/stop with context cancellation), generalized
// from "soft-delete stale DB rows" to "remove stale artifact
// directories on the filesystem".
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pdmcolombia/pdmaudit/pkg/manifest"
)

// Config governs the sweep: RetentionWindow is how long a run
// directory survives past its last-modified time before becoming
// eligible for removal.
type Config struct {
	ArtifactsDir    string
	RetentionWindow time.Duration
	SweepInterval   time.Duration
	// AllowDeleteVerified, when true, permits removing a run directory
	// even if it carries a valid sealed proof. Defaults to false: a
	// verified run is retained indefinitely unless explicitly overridden.
	AllowDeleteVerified bool
}

// Service periodically sweeps Config.ArtifactsDir for expired run directories.
type Service struct {
	cfg Config

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService constructs a cleanup Service.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// Start launches the background sweep loop. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started",
		"artifacts_dir", s.cfg.ArtifactsDir,
		"retention_window", s.cfg.RetentionWindow,
		"interval", s.cfg.SweepInterval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweepOnce()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Service) sweepOnce() {
	removed, err := Sweep(s.cfg)
	if err != nil {
		slog.Error("artifact sweep failed", "error", err)
		return
	}
	if len(removed) > 0 {
		slog.Info("artifact sweep removed expired run directories", "count", len(removed), "dirs", removed)
	}
}

// Sweep scans cfg.ArtifactsDir for immediate subdirectories whose
// modification time is older than cfg.RetentionWindow and removes
// them, skipping any directory holding a valid sealed proof unless
// cfg.AllowDeleteVerified is set. It is idempotent: re-running after a
// partial failure only removes what remains eligible.
func Sweep(cfg Config) ([]string, error) {
	entries, err := os.ReadDir(cfg.ArtifactsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	cutoff := time.Now().Add(-cfg.RetentionWindow)
	var removed []string

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runDir := filepath.Join(cfg.ArtifactsDir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			slog.Warn("sweep: failed to stat run directory, skipping", "dir", runDir, "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if !cfg.AllowDeleteVerified && isSealedAndVerified(runDir) {
			continue
		}

		if err := os.RemoveAll(runDir); err != nil {
			slog.Warn("sweep: failed to remove expired run directory", "dir", runDir, "error", err)
			continue
		}
		removed = append(removed, runDir)
	}

	return removed, nil
}

// isSealedAndVerified reports whether runDir carries a proof.json/
// proof.hash pair whose digest matches and whose manifest reports success.
func isSealedAndVerified(runDir string) bool {
	m, err := manifest.ReadProofFromDir(runDir)
	if err != nil {
		return false
	}
	return m.Success
}
