//go:build !windows
// +build !windows

package service

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bgservice/internal/logger"
)

// UnixService runs the daemon until SIGINT or SIGTERM. SIGHUP reloads.
type UnixService struct {
	*runner
}

// NewService creates a new platform-specific service.
func NewService(name string, runFunc RunFunc, opts ...Option) Service {
	return &UnixService{runner: newRunner(name, runFunc, opts)}
}

// Run starts runFunc and handles signals. After a shutdown signal Run waits
// up to the stop timeout; a second shutdown signal returns immediately.
func (s *UnixService) Run(ctx context.Context) error {
	log := logger.WithComponent("unix-service")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	done := s.launch(ctx)
	log.Info().Str("service", s.name).Int("pid", os.Getpid()).Msg("Service started")

	for {
		select {
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				s.reload()
				continue
			}
			log.Info().Str("signal", sig.String()).Msg("Shutting down")
			return s.shutdown(done, signals)

		case err := <-done:
			return err
		}
	}
}

func (s *UnixService) shutdown(done <-chan error, signals <-chan os.Signal) error {
	log := logger.WithComponent("unix-service")
	result := make(chan error, 1)
	go func() { result <- s.stopAndWait(done) }()

	for {
		select {
		case err := <-result:
			if err == ErrStopTimeout {
				log.Warn().Dur("timeout", s.opts.stopTimeout).Msg("Service did not stop in time")
			}
			return err
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				continue
			}
			log.Warn().Str("signal", sig.String()).Msg("Second signal, exiting without waiting")
			return nil
		}
	}
}

// IsService reports whether stdin is not a terminal, as under systemd.
func (s *UnixService) IsService() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice == 0
}
