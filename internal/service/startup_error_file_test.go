package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readStartupError(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, StartupErrorFile))
	if err != nil {
		t.Fatalf("failed to read %s: %v", StartupErrorFile, err)
	}
	return string(data)
}

func TestWriteStartupErrorFile_RecordsServiceAndError(t *testing.T) {
	dir := t.TempDir()
	WriteStartupErrorFile(dir, "bgservice", fmt.Errorf("invalid HeartbeatInterval duration: time: invalid duration \"soon\""))

	content := readStartupError(t, dir)
	if !strings.Contains(content, "bgservice STARTUP ERROR") {
		t.Errorf("expected service label, got:\n%s", content)
	}
	if !strings.Contains(content, `invalid duration "soon"`) {
		t.Errorf("expected error message, got:\n%s", content)
	}
}

func TestWriteStartupErrorFile_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log", "bgservice")
	WriteStartupErrorFile(dir, "bgservice", fmt.Errorf("test error"))

	if !strings.Contains(readStartupError(t, dir), "test error") {
		t.Error("error message not written")
	}
}

func TestWriteStartupErrorFile_OverwritesPreviousFile(t *testing.T) {
	dir := t.TempDir()
	WriteStartupErrorFile(dir, "bgservice", fmt.Errorf("first error"))
	WriteStartupErrorFile(dir, "bgservice", fmt.Errorf("second error"))

	content := readStartupError(t, dir)
	if strings.Contains(content, "first error") {
		t.Error("expected first error to be overwritten")
	}
	if !strings.Contains(content, "second error") {
		t.Errorf("expected second error in file, got: %s", content)
	}
}

func TestClearStartupErrorFile(t *testing.T) {
	dir := t.TempDir()
	WriteStartupErrorFile(dir, "bgservice", nil)
	ClearStartupErrorFile(dir)

	if _, err := os.Stat(filepath.Join(dir, StartupErrorFile)); !os.IsNotExist(err) {
		t.Errorf("expected file removed, stat err = %v", err)
	}
	ClearStartupErrorFile(dir)
}
