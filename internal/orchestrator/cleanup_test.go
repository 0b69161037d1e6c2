package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
}

func TestCleanupTempsRemovesOldPrefixedFiles(t *testing.T) {
	tmp := os.TempDir()
	oldDL := filepath.Join(tmp, "pdfdl-cleanup-test-old.pdf")
	oldS3 := filepath.Join(tmp, "s3pdf-cleanup-test-old.pdf")
	fresh := filepath.Join(tmp, "pdfdl-cleanup-test-fresh.pdf")
	other := filepath.Join(tmp, "cleanup-test-unrelated.pdf")
	writeAged(t, oldDL, 2*time.Hour)
	writeAged(t, oldS3, 2*time.Hour)
	writeAged(t, fresh, time.Minute)
	writeAged(t, other, 2*time.Hour)
	defer func() {
		for _, p := range []string{oldDL, oldS3, fresh, other} {
			os.Remove(p)
		}
	}()

	if removed := CleanupTemps(time.Hour); removed < 2 {
		t.Errorf("removed = %d, want at least the two old temps", removed)
	}
	for _, p := range []string{oldDL, oldS3} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s survived cleanup", filepath.Base(p))
		}
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh temp removed too early")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("unprefixed file must not be touched")
	}
}

func TestSweepResultsHonorsTTL(t *testing.T) {
	dir := t.TempDir()
	expired := filepath.Join(dir, "old.pdf")
	kept := filepath.Join(dir, "new.pdf")
	writeAged(t, expired, 48*time.Hour)
	writeAged(t, kept, time.Hour)

	if removed := SweepResults(dir, 24*time.Hour); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(expired); !os.IsNotExist(err) {
		t.Error("expired result survived sweep")
	}
	if _, err := os.Stat(kept); err != nil {
		t.Error("unexpired result removed")
	}
}
