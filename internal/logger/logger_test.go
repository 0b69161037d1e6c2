package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/axiomhq/axiom-go/axiom"
)

func TestInitTagsEveryLineWithService(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "app.log")
	if err := Init(Options{Level: "info", File: file}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Get().Info().Str("job_id", "j-1").Msg("compression done")

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"service":"pdfsqueeze"`) {
		t.Errorf("log line missing service tag: %s", line)
	}
	if !strings.Contains(line, `"job_id":"j-1"`) {
		t.Errorf("log line missing job field: %s", line)
	}
}

func TestAxiomWriterDropsDebugAndTagsService(t *testing.T) {
	ac := &axiomClient{ch: make(chan axiom.Event, 4)}
	w := &axiomWriter{client: ac}

	if _, err := w.Write([]byte(`{"level":"debug","message":"attempt q=85 dpi=150"}`)); err != nil {
		t.Fatalf("write debug: %v", err)
	}
	if _, err := w.Write([]byte(`{"level":"info","message":"job done"}`)); err != nil {
		t.Fatalf("write info: %v", err)
	}

	if got := len(ac.ch); got != 1 {
		t.Fatalf("forwarded %d events, want 1", got)
	}
	ev := <-ac.ch
	if ev["service"] != serviceName {
		t.Errorf("service = %v, want %q", ev["service"], serviceName)
	}
}
