package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StartupErrorFile is the name of the file written by WriteStartupErrorFile.
const StartupErrorFile = "startup-error.log"

// WriteStartupErrorFile records why the daemon failed to start, for use
// before the logger exists. Only the most recent error is kept.
func WriteStartupErrorFile(logDir, serviceName string, err error) {
	_ = os.MkdirAll(logDir, 0755)

	f, ferr := os.Create(filepath.Join(logDir, StartupErrorFile))
	if ferr != nil {
		return
	}
	defer f.Close()

	ts := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] %s STARTUP ERROR\n%v\n", ts, serviceName, err)
}

// ClearStartupErrorFile removes a stale startup error after a successful start.
func ClearStartupErrorFile(logDir string) {
	_ = os.Remove(filepath.Join(logDir, StartupErrorFile))
}
