package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"bgservice/internal/config"
	"bgservice/internal/logger"
)

// FileSink writes events as JSON lines to a rotated file and optionally to stdout.
type FileSink struct {
	writer  *lumberjack.Logger
	console bool
	mu      sync.Mutex
	closed  bool
}

// NewFileSink creates a FileSink, creating the parent directory if needed.
func NewFileSink(cfg config.FileConfig) (*FileSink, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("file sink requires FilePath")
	}

	dir := filepath.Dir(cfg.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create event directory: %w", err)
		}
	}

	log := logger.WithComponent("file-sink")
	log.Info().
		Str("file_path", cfg.FilePath).
		Bool("console", cfg.Console).
		Msg("FileSink initialized")

	return &FileSink{
		writer: &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		},
		console: cfg.Console,
	}, nil
}

// Publish appends e as one JSON line.
func (s *FileSink) Publish(_ context.Context, e *Event) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if _, err := s.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	if s.console {
		fmt.Println(string(line))
	}
	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}
