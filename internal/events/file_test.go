package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bgservice/internal/config"
)

var fileTestTimestamp = time.Date(2026, 2, 24, 10, 30, 45, 0, time.UTC)

func TestFileSink_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	s, err := NewFileSink(config.FileConfig{FilePath: path, MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	ctx := context.Background()
	for _, to := range []string{"running", "running-foreground"} {
		e := &Event{Service: "sync", Kind: KindTransition, To: to, Timestamp: fileTestTimestamp, Hostname: "h", PID: 42}
		if err := s.Publish(ctx, e); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line is not JSON: %v: %s", err, sc.Text())
		}
		lines = append(lines, m)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	first := lines[0]
	if first["service"] != "sync" || first["kind"] != "transition" || first["to"] != "running" {
		t.Errorf("unexpected first line: %v", first)
	}
	if first["timestamp"] != "2026-02-24T10:30:45Z" || first["pid"] != float64(42) {
		t.Errorf("unexpected timestamp/pid: %v", first)
	}
	if _, ok := first["rss_bytes"]; ok {
		t.Error("transition events should omit rss_bytes")
	}
}

func TestFileSink_PublishAfterClose(t *testing.T) {
	s, err := NewFileSink(config.FileConfig{FilePath: filepath.Join(t.TempDir(), "e.jsonl")})
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	s.Close()
	if err := s.Publish(context.Background(), &Event{}); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("expected ErrSinkClosed, got %v", err)
	}
}

func TestFileSink_RequiresPath(t *testing.T) {
	if _, err := NewFileSink(config.FileConfig{}); err == nil {
		t.Fatal("expected error for empty FilePath")
	}
}
