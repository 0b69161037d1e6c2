package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfsqueeze/internal/config"
)

var tempPrefixes = []string{"pdfdl-", "s3pdf-", "conv-"}

// CleanupTemps removes downloaded and converted temporaries older than
// maxAge from the system temp dir. Returns the number removed.
func CleanupTemps(maxAge time.Duration) int {
	dir := os.TempDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !hasTempPrefix(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(dir, e.Name())) == nil {
			removed++
		}
	}
	return removed
}

// SweepResults removes result files older than ttl.
func SweepResults(dir string, ttl time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(dir, e.Name())) == nil {
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps temp and result files on cfg.CleanEvery until ctx
// is cancelled.
func StartJanitor(ctx context.Context, cfg config.StorageConfig) {
	go func() {
		ticker := time.NewTicker(cfg.CleanEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				temps := CleanupTemps(time.Hour)
				results := SweepResults(cfg.ResultDir, cfg.ResultTTL)
				if temps+results > 0 {
					log.Info().Int("temps", temps).Int("results", results).Msg("janitor sweep")
				}
			}
		}
	}()
}

func hasTempPrefix(name string) bool {
	for _, p := range tempPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
