// Package service runs the daemon under the platform's process supervisor.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"bgservice/internal/logger"
)

// ErrStopTimeout is returned when RunFunc does not return within the stop
// timeout after a stop request.
var ErrStopTimeout = errors.New("service did not stop in time")

const defaultStopTimeout = 30 * time.Second

// Service runs a RunFunc as a system service.
type Service interface {
	// Run starts the service. It blocks until the service is stopped.
	Run(ctx context.Context) error

	// Stop requests the service to stop.
	Stop() error

	// IsService returns true if running under a service manager.
	IsService() bool
}

// RunFunc is the daemon body. It returns when ctx is cancelled.
type RunFunc func(ctx context.Context) error

// Option configures a Service.
type Option func(*options)

type options struct {
	onReload    func()
	stopTimeout time.Duration
}

// WithReload installs a callback for reload requests: SIGHUP on Unix and
// the parameter-change control on Windows.
func WithReload(fn func()) Option {
	return func(o *options) { o.onReload = fn }
}

// WithStopTimeout bounds how long a stop request waits for RunFunc.
func WithStopTimeout(d time.Duration) Option {
	return func(o *options) { o.stopTimeout = d }
}

func applyOptions(opts []Option) options {
	o := options{stopTimeout: defaultStopTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// runner is the part of a Service common to every platform.
type runner struct {
	name    string
	runFunc RunFunc
	opts    options

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

func newRunner(name string, runFunc RunFunc, opts []Option) *runner {
	return &runner{name: name, runFunc: runFunc, opts: applyOptions(opts)}
}

// launch starts RunFunc in a goroutine; its result arrives on the returned
// channel.
func (r *runner) launch(ctx context.Context) <-chan error {
	r.mu.Lock()
	ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- r.runFunc(ctx)
	}()
	return done
}

// Stop cancels the RunFunc context. Repeated calls do nothing.
func (r *runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil && !r.stopped {
		r.stopped = true
		r.cancel()
	}
	return nil
}

func (r *runner) reload() {
	if r.opts.onReload == nil {
		return
	}
	log := logger.WithComponent("service")
	log.Info().Str("service", r.name).Msg("Reloading configuration")
	r.opts.onReload()
}

// stopAndWait cancels RunFunc and waits for it up to the stop timeout.
func (r *runner) stopAndWait(done <-chan error) error {
	r.Stop()
	timer := time.NewTimer(r.opts.stopTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrStopTimeout
	}
}
