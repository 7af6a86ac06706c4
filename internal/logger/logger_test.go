package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// blockingWriter simulates a console nobody is reading from.
type blockingWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	blockCh chan struct{}
}

func newBlockingWriter() *blockingWriter {
	return &blockingWriter{blockCh: make(chan struct{})}
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	<-w.blockCh
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *blockingWriter) Unblock() { close(w.blockCh) }

func (w *blockingWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestAsyncWriter_DoesNotBlockCaller(t *testing.T) {
	bw := newBlockingWriter()
	aw := newAsyncWriter(bw, 100)

	done := make(chan struct{})
	go func() {
		aw.Write([]byte("hello"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write blocked on a stalled console")
	}

	bw.Unblock()
	aw.Close()
	if bw.String() != "hello" {
		t.Errorf("expected %q, got %q", "hello", bw.String())
	}
}

func TestAsyncWriter_DropsWhenBufferFull(t *testing.T) {
	bw := newBlockingWriter()
	aw := newAsyncWriter(bw, 2)
	defer func() {
		bw.Unblock()
		aw.Close()
	}()

	for i := 0; i < 4; i++ {
		aw.Write([]byte("msg"))
	}

	done := make(chan struct{})
	go func() {
		aw.Write([]byte("overflow"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write blocked on full buffer")
	}
}

func TestAsyncWriter_WriteAfterClose(t *testing.T) {
	var buf bytes.Buffer
	aw := newAsyncWriter(&buf, 10)
	aw.Write([]byte("a"))
	aw.Close()

	n, err := aw.Write([]byte("after-close"))
	if err != nil || n != len("after-close") {
		t.Errorf("Write after Close = (%d, %v)", n, err)
	}
	if buf.String() != "a" {
		t.Errorf("expected drained %q, got %q", "a", buf.String())
	}
}

func TestInit_WritesJSONToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "svc.log")

	if err := Init(Config{Level: "info", FilePath: logFile}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	log := WithComponent("controller")
	log.Info().Str("to", "running").Msg("State changed")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	content := string(data)
	for _, want := range []string{`"component":"controller"`, `"to":"running"`, `"message":"State changed"`, `"pid":`} {
		if !strings.Contains(content, want) {
			t.Errorf("log file missing %s: %s", want, content)
		}
	}
}

func TestInit_FixedFormat(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "svc.log")

	if err := Init(Config{Level: "debug", FilePath: logFile, Format: "fixed"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	log := WithComponent("local-host")
	log.Debug().Msg("Request queued")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "[DBG] [local-host     ] Request queued") {
		t.Errorf("unexpected fixed format output: %q", string(data))
	}
}

func TestInit_ReInitKeepsAppending(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "svc.log")
	cfg := Config{Level: "info", FilePath: logFile}

	if err := Init(cfg); err != nil {
		t.Fatalf("first Init failed: %v", err)
	}
	Logger().Info().Msg("first message")

	if err := Init(cfg); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	Logger().Info().Msg("second message")

	data, _ := os.ReadFile(logFile)
	if !bytes.Contains(data, []byte("first message")) || !bytes.Contains(data, []byte("second message")) {
		t.Errorf("log file missing messages across re-init: %s", data)
	}
}

func TestInit_ServiceModeSuppressesConsole(t *testing.T) {
	SetServiceMode(true)
	defer SetServiceMode(false)

	if err := Init(Config{Level: "info", Console: true}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if active.console != nil {
		t.Error("console writer created in service mode")
	}
}

func TestInit_UnknownLevelFallsBackToInfo(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "svc.log")
	if err := Init(Config{Level: "loud", FilePath: logFile}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Logger().Debug().Msg("hidden")
	Logger().Info().Msg("shown")

	data, _ := os.ReadFile(logFile)
	if bytes.Contains(data, []byte("hidden")) {
		t.Error("debug message written at info level")
	}
	if !bytes.Contains(data, []byte("shown")) {
		t.Error("info message missing")
	}
}
