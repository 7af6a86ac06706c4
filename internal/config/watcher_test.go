package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bgservice/internal/logger"
)

func TestServiceWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Service.json")
	if err := os.WriteFile(path, []byte(`{"Name": "before"}`), 0644); err != nil {
		t.Fatal(err)
	}

	got := make(chan *Config, 4)
	w, err := NewServiceWatcher(path, func(cfg *Config) { got <- cfg })
	if err != nil {
		t.Fatalf("NewServiceWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`{"Name": "after"}`), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-got:
		if cfg.Name != "after" {
			t.Errorf("expected reloaded Name=after, got %q", cfg.Name)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report the change")
	}
}

func TestServiceWatcher_SkipsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Service.json")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}

	called := make(chan struct{}, 1)
	w, err := NewServiceWatcher(path, func(*Config) { called <- struct{}{} })
	if err != nil {
		t.Fatalf("NewServiceWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`{"SinkType": "mqtt"}`), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-called:
		t.Fatal("callback invoked for an invalid configuration")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestFileWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Logging.json")
	w, err := NewLoggingWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewLoggingWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !w.IsRunning() {
		t.Fatal("watcher not running after Start")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("watcher still running after Stop")
	}
	w.Stop()
}

func TestReloader_SkipsUnchangedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Logging.json")
	if err := os.WriteFile(path, []byte(`{"Level":"info"}`), 0644); err != nil {
		t.Fatal(err)
	}

	var applied []string
	r := &reloader[*logger.Config]{
		path:  path,
		load:  ParseLogging,
		apply: func(lc *logger.Config) { applied = append(applied, lc.Level) },
	}

	r.reload()
	r.reload()
	if err := os.WriteFile(path, []byte(`{"Level":"debug"}`), 0644); err != nil {
		t.Fatal(err)
	}
	r.reload()

	if len(applied) != 2 || applied[0] != "info" || applied[1] != "debug" {
		t.Errorf("applied = %v, want [info debug]", applied)
	}
}

func TestReloader_InvalidContentKeepsLast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Service.json")
	if err := os.WriteFile(path, []byte(`{"Name":"a"}`), 0644); err != nil {
		t.Fatal(err)
	}

	var names []string
	r := &reloader[*Config]{path: path, load: Parse, apply: func(c *Config) { names = append(names, c.Name) }}
	r.reload()

	if err := os.WriteFile(path, []byte(`{"Name":`), 0644); err != nil {
		t.Fatal(err)
	}
	r.reload()
	if err := os.WriteFile(path, []byte(`{"Name":"a"}`), 0644); err != nil {
		t.Fatal(err)
	}
	r.reload()

	if len(names) != 1 || names[0] != "a" {
		t.Errorf("applied names = %v, want [a]", names)
	}
}
