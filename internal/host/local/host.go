// Package local simulates an OS service manager inside the current process.
//
// Requests are queued and handled by one goroutine, the service-management
// thread, which constructs and destroys the single service instance and
// calls the attached lifecycle in the same order an OS would. It also keeps
// a notification tray, applies a background-start policy and restarts
// sticky services after an OS-initiated kill.
package local

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff"

	"bgservice/internal/controller"
	"bgservice/internal/logger"
)

var (
	// ErrBackgroundStartNotAllowed is returned by RequestStart when the
	// background-start policy refuses the request.
	ErrBackgroundStartNotAllowed = errors.New("background service start not allowed")
	// ErrHostStopped is returned for requests made while the host is not running.
	ErrHostStopped = errors.New("service host is not running")
	// ErrInstanceDestroyed is returned by Instance methods after destruction.
	ErrInstanceDestroyed = errors.New("service instance destroyed")
)

const (
	defaultQueueSize           = 16
	defaultRestartInitialDelay = time.Second
	defaultRestartMaxDelay     = time.Minute
)

type requestKind int

const (
	reqStart requestKind = iota
	reqStop
	reqKill
	reqRestart
	reqFlush
)

func (k requestKind) String() string {
	switch k {
	case reqStart:
		return "start"
	case reqStop:
		return "stop"
	case reqKill:
		return "kill"
	case reqRestart:
		return "restart"
	default:
		return "flush"
	}
}

type request struct {
	kind requestKind
	done chan struct{}
	gen  uint64 // restart generation, reqRestart only
}

// Option configures a Host.
type Option func(*Host)

// WithClock sets the clock used for restart delays.
func WithClock(clk clock.Clock) Option {
	return func(h *Host) { h.clk = clk }
}

// WithSticky makes the host restart the service after an OS-initiated kill.
func WithSticky(sticky bool) Option {
	return func(h *Host) { h.sticky = sticky }
}

// WithRestartBackoff sets the first and the largest sticky restart delay.
func WithRestartBackoff(initial, max time.Duration) Option {
	return func(h *Host) {
		h.restartInitial = initial
		h.restartMax = max
	}
}

// WithBackgroundStartPolicy installs a policy consulted on every start
// request. Returning false refuses the request.
func WithBackgroundStartPolicy(allow func() bool) Option {
	return func(h *Host) { h.allowStart = allow }
}

// WithQueueSize sets the capacity of the request queue. Requests beyond it
// block the caller until the service-management goroutine catches up.
func WithQueueSize(n int) Option {
	return func(h *Host) { h.queueSize = n }
}

// Host is an in-process service manager.
type Host struct {
	clk            clock.Clock
	sticky         bool
	restartInitial time.Duration
	restartMax     time.Duration
	allowStart     func() bool
	queueSize      int

	reqs    chan request
	backoff *backoff.ExponentialBackOff

	mu           sync.Mutex
	lifecycle    controller.Lifecycle
	running      bool
	stopCh       chan struct{}
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	instance     *instance
	restartTimer *clock.Timer
	restartGen   uint64
	tray         tray
}

// New creates a stopped host. Call Attach and Start before issuing requests.
func New(opts ...Option) *Host {
	h := &Host{
		clk:            clock.New(),
		restartInitial: defaultRestartInitialDelay,
		restartMax:     defaultRestartMaxDelay,
		allowStart:     func() bool { return true },
		queueSize:      defaultQueueSize,
		tray:           newTray(),
	}
	for _, opt := range opts {
		opt(h)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.restartInitial
	b.MaxInterval = h.restartMax
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Clock = h.clk
	b.Reset()
	h.backoff = b

	if h.queueSize <= 0 {
		h.queueSize = defaultQueueSize
	}
	h.reqs = make(chan request, h.queueSize)
	return h
}

// Attach sets the lifecycle that receives create, start-command and destroy
// callbacks.
func (h *Host) Attach(l controller.Lifecycle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lifecycle = l
}

// Available reports false: an in-process host is not an OS service.
func (h *Host) Available() bool {
	return false
}

// Start launches the service-management goroutine.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	h.running = true
	h.stopCh = make(chan struct{})

	ctx, h.cancel = context.WithCancel(ctx)
	h.wg.Add(1)
	go h.loop(ctx)

	log := logger.WithComponent("local-host")
	log.Info().Bool("sticky", h.sticky).Msg("Service host started")
	return nil
}

// Stop shuts the host down. A live instance is destroyed first, as when
// the process hosting a service goes away.
func (h *Host) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.stopCh)
	h.cancel()
	h.mu.Unlock()

	h.wg.Wait()

	log := logger.WithComponent("local-host")
	log.Info().Msg("Service host stopped")
}

// RequestStart queues a start intent.
func (h *Host) RequestStart(ctx context.Context) error {
	if !h.allowStart() {
		return ErrBackgroundStartNotAllowed
	}
	return h.enqueue(ctx, request{kind: reqStart})
}

// RequestStop queues a stop intent.
func (h *Host) RequestStop(ctx context.Context) error {
	return h.enqueue(ctx, request{kind: reqStop})
}

// Kill destroys the service the way an OS reclaiming memory would. Sticky
// services are restarted after the current backoff delay.
func (h *Host) Kill(ctx context.Context) error {
	return h.enqueue(ctx, request{kind: reqKill})
}

// Flush returns once every request queued before it has been handled.
func (h *Host) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := h.enqueue(ctx, request{kind: reqFlush, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) enqueue(ctx context.Context, r request) error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHostStopped
	}
	stopCh := h.stopCh
	h.mu.Unlock()

	select {
	case h.reqs <- r:
		return nil
	case <-stopCh:
		return ErrHostStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) loop(ctx context.Context) {
	defer h.wg.Done()

	for {
		select {
		case <-ctx.Done():
			h.cancelRestart()
			h.destroy()
			h.drain()
			return
		case r := <-h.reqs:
			h.handle(r)
		}
	}
}

// drain releases Flush callers whose requests will never be handled.
func (h *Host) drain() {
	for {
		select {
		case r := <-h.reqs:
			if r.done != nil {
				close(r.done)
			}
		default:
			return
		}
	}
}

func (h *Host) handle(r request) {
	log := logger.WithComponent("local-host")
	log.Debug().Str("request", r.kind.String()).Msg("Handling request")

	switch r.kind {
	case reqStart:
		h.cancelRestart()
		h.backoff.Reset()
		h.create()
		h.startCommand()
	case reqStop:
		h.cancelRestart()
		h.backoff.Reset()
		h.destroy()
	case reqKill:
		if h.destroy() && h.sticky {
			h.scheduleRestart()
		}
	case reqRestart:
		h.mu.Lock()
		stale := r.gen != h.restartGen
		if !stale {
			h.restartTimer = nil
		}
		h.mu.Unlock()
		if stale {
			log.Debug().Uint64("gen", r.gen).Msg("Dropping cancelled restart")
			return
		}
		if h.create() {
			log.Info().Msg("Sticky service restarted")
			h.startCommand()
		}
	case reqFlush:
		close(r.done)
	}
}

// create constructs the instance if none exists and reports whether it did.
func (h *Host) create() bool {
	h.mu.Lock()
	if h.instance != nil {
		h.mu.Unlock()
		return false
	}
	inst := &instance{host: h}
	h.instance = inst
	l := h.lifecycle
	h.mu.Unlock()

	if l != nil {
		l.OnCreate(inst)
	}
	return true
}

func (h *Host) startCommand() {
	h.mu.Lock()
	l := h.lifecycle
	h.mu.Unlock()

	if l != nil {
		l.OnStartCommand()
	}
}

// destroy tears down the instance, removing its foreground notification,
// and reports whether there was one.
func (h *Host) destroy() bool {
	h.mu.Lock()
	inst := h.instance
	if inst == nil {
		h.mu.Unlock()
		return false
	}
	h.instance = nil
	inst.destroyed = true
	if inst.foregroundID != 0 {
		h.tray.remove(inst.foregroundID)
		inst.foregroundID = 0
	}
	l := h.lifecycle
	h.mu.Unlock()

	if l != nil {
		l.OnDestroy()
	}
	return true
}

func (h *Host) scheduleRestart() {
	log := logger.WithComponent("local-host")

	delay := h.backoff.NextBackOff()
	if delay == backoff.Stop {
		log.Warn().Msg("Sticky restart abandoned")
		return
	}

	h.mu.Lock()
	stopCh := h.stopCh
	h.restartGen++
	gen := h.restartGen
	h.restartTimer = h.clk.AfterFunc(delay, func() {
		select {
		case h.reqs <- request{kind: reqRestart, gen: gen}:
		case <-stopCh:
		}
	})
	h.mu.Unlock()

	log.Info().Dur("delay", delay).Msg("Sticky restart scheduled")
}

// cancelRestart stops a pending restart timer. A timer that already fired
// may still have a request in flight; bumping the generation makes the loop
// drop it.
func (h *Host) cancelRestart() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.restartGen++
	if h.restartTimer != nil {
		h.restartTimer.Stop()
		h.restartTimer = nil
	}
}

// RestartPending reports whether a sticky restart is scheduled.
func (h *Host) RestartPending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restartTimer != nil
}
