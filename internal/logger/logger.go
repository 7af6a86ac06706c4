// Package logger provides the process-wide structured logger: zerolog JSON
// (or fixed columns) to a lumberjack-rotated file, plus an optional
// non-blocking console.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const consoleBuffer = 1000

// Config holds the logger configuration (Logging.json).
type Config struct {
	Level      string `json:"Level"`
	FilePath   string `json:"FilePath"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	MaxAgeDays int    `json:"MaxAgeDays"`
	Compress   bool   `json:"Compress"`
	Console    bool   `json:"Console"`
	Format     string `json:"Format"` // "json" (default) or "fixed"
}

// DefaultConfig returns the logging defaults.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		FilePath:   "log/bgservice/bgservice.log",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
		Format:     "json",
	}
}

// sinks is the set of writers built by one Init call.
type sinks struct {
	file    *lumberjack.Logger
	console *asyncWriter
}

func (s sinks) close() {
	if s.file != nil {
		s.file.Close()
	}
	if s.console != nil {
		s.console.Close()
	}
}

var (
	mu          sync.RWMutex
	root        = zerolog.Nop()
	serviceMode bool
	active      sinks
)

// SetServiceMode turns console output off regardless of configuration.
// Processes started by an init system or the SCM have no usable stdout.
func SetServiceMode(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	serviceMode = enabled
}

// Init replaces the process logger. It is called once at startup and again
// whenever Logging.json changes; the writers of the previous call are closed.
// An unknown level falls back to info.
func Init(cfg Config) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	mu.Lock()
	defer mu.Unlock()

	next, out, err := openSinks(cfg, serviceMode)
	if err != nil {
		return err
	}

	active.close()
	active = next
	root = zerolog.New(out).With().
		Timestamp().
		Int("pid", os.Getpid()).
		Caller().
		Logger()
	return nil
}

func openSinks(cfg Config, quiet bool) (sinks, io.Writer, error) {
	var (
		s       sinks
		writers []io.Writer
	)

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return sinks{}, nil, err
		}
		s.file = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		if cfg.Format == "fixed" {
			writers = append(writers, NewFixedFormatWriter(s.file))
		} else {
			writers = append(writers, s.file)
		}
	}

	if cfg.Console && !quiet {
		s.console = newAsyncWriter(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}, consoleBuffer)
		writers = append(writers, s.console)
	}

	switch {
	case len(writers) == 0 && quiet:
		return s, io.Discard, nil
	case len(writers) == 0:
		return s, os.Stdout, nil
	case len(writers) == 1:
		return s, writers[0], nil
	default:
		return s, zerolog.MultiLevelWriter(writers...), nil
	}
}

// Logger returns a copy of the process logger.
func Logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := root
	return &l
}

// WithComponent returns a logger tagged with the emitting component.
func WithComponent(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}
