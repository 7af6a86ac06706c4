//go:build windows
// +build windows

package service

import (
	"context"

	"golang.org/x/sys/windows/svc"

	"bgservice/internal/logger"
)

// WindowsService runs the daemon under the Service Control Manager.
type WindowsService struct {
	*runner
}

// NewService creates a new platform-specific service.
func NewService(name string, runFunc RunFunc, opts ...Option) Service {
	return &WindowsService{runner: newRunner(name, runFunc, opts)}
}

// Run runs interactively, or hands control to the SCM when started as a service.
func (s *WindowsService) Run(ctx context.Context) error {
	if !s.IsService() {
		return <-s.launch(ctx)
	}
	return svc.Run(s.name, s)
}

// IsService returns true if running as a Windows service.
func (s *WindowsService) IsService() bool {
	ok, err := svc.IsWindowsService()
	return err == nil && ok
}

func (s *WindowsService) accepted() svc.Accepted {
	a := svc.AcceptStop | svc.AcceptShutdown
	if s.opts.onReload != nil {
		a |= svc.AcceptParamChange
	}
	return a
}

// Execute implements svc.Handler.
func (s *WindowsService) Execute(_ []string, requests <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	log := logger.WithComponent("windows-service")

	status <- svc.Status{State: svc.StartPending}
	done := s.launch(context.Background())
	status <- svc.Status{State: svc.Running, Accepts: s.accepted()}
	log.Info().Str("service", s.name).Msg("Running under the service control manager")

	for {
		select {
		case req := <-requests:
			switch req.Cmd {
			case svc.Interrogate:
				status <- req.CurrentStatus
			case svc.ParamChange:
				s.reload()
			case svc.Stop, svc.Shutdown:
				status <- svc.Status{State: svc.StopPending}
				if err := s.stopAndWait(done); err != nil {
					log.Warn().Err(err).Msg("Service stopped uncleanly")
				}
				status <- svc.Status{State: svc.Stopped}
				return false, 0
			default:
				log.Warn().Uint32("cmd", uint32(req.Cmd)).Msg("Ignoring service control request")
			}

		case err := <-done:
			status <- svc.Status{State: svc.Stopped}
			if err != nil {
				log.Error().Err(err).Msg("Service exited with error")
				return true, 1
			}
			return false, 0
		}
	}
}
