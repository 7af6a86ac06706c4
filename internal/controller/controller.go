// Package controller owns the state of the single background service
// instance and translates start/stop/foreground requests into host calls.
//
// The host OS drives the lifecycle: Start and Stop only queue requests, and
// the controller learns about the outcome through OnCreate, OnStartCommand
// and OnDestroy, which the host calls from its service-management thread.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bgservice/internal/logger"
	"bgservice/internal/notification"
)

var (
	// ErrStartRejected wraps a host's synchronous refusal to start the service.
	ErrStartRejected = errors.New("service start rejected")
	// ErrHostUnavailable is returned when no OS host is attached.
	ErrHostUnavailable = errors.New("service host unavailable")
)

// Host is the OS service manager. Its requests are fire-and-forget: a nil
// error means the request was queued, not that the service changed state.
type Host interface {
	RequestStart(ctx context.Context) error
	RequestStop(ctx context.Context) error
	// Available reports whether the host can run a real service.
	Available() bool
}

// Instance is the live service object the host constructed. Its methods
// must not call back into the controller.
type Instance interface {
	CreateNotificationChannel(ctx context.Context, ch notification.Channel) error
	StartForeground(ctx context.Context, n notification.Notification) error
	StopForeground(ctx context.Context, removeNotification bool) error
}

// Lifecycle receives the host's callbacks. ServiceController implements it.
type Lifecycle interface {
	OnCreate(inst Instance)
	OnStartCommand()
	OnDestroy()
	OnBind() bool
}

// Option configures a ServiceController.
type Option func(*ServiceController)

// WithChannel sets the notification channel registered before going foreground.
func WithChannel(ch notification.Channel) Option {
	return func(c *ServiceController) { c.channel = ch }
}

// WithNotification sets the foreground notification.
func WithNotification(n notification.Notification) Option {
	return func(c *ServiceController) { c.notification = n }
}

// WithName sets the service name used in logs and transitions.
func WithName(name string) Option {
	return func(c *ServiceController) { c.name = name }
}

// WithNow overrides the transition timestamp source.
func WithNow(now func() time.Time) Option {
	return func(c *ServiceController) { c.now = now }
}

// ServiceController tracks the single service instance and its flags.
// ForegroundFlag implies RunningFlag at every point observable by callers.
type ServiceController struct {
	host         Host
	name         string
	channel      notification.Channel
	notification notification.Notification
	now          func() time.Time

	mu         sync.Mutex
	instance   Instance
	running    bool
	foreground bool
	pending    []Transition
	delivering bool

	obsMu     sync.Mutex
	observers map[int]func(Transition)
	nextObsID int
}

// New creates a controller bound to host. Attach it to the host's lifecycle
// callbacks separately; the controller does not do this itself.
func New(host Host, opts ...Option) *ServiceController {
	c := &ServiceController{
		host:         host,
		name:         "bgservice",
		channel:      notification.DefaultChannel(),
		notification: notification.Default(),
		now:          time.Now,
		observers:    make(map[int]func(Transition)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the service name.
func (c *ServiceController) Name() string {
	return c.name
}

// Start asks the host to start the service.
func (c *ServiceController) Start(ctx context.Context) error {
	if c.host == nil {
		return ErrHostUnavailable
	}
	log := logger.WithComponent("controller")

	if err := c.host.RequestStart(ctx); err != nil {
		log.Warn().Err(err).Str("service", c.name).Msg("Start request refused")
		return fmt.Errorf("%w: %w", ErrStartRejected, err)
	}
	log.Debug().Str("service", c.name).Msg("Start requested")
	return nil
}

// Stop asks the host to stop the service. Destruction is reported later
// through OnDestroy.
func (c *ServiceController) Stop(ctx context.Context) error {
	if c.host == nil {
		return ErrHostUnavailable
	}
	if err := c.host.RequestStop(ctx); err != nil {
		return fmt.Errorf("failed to request service stop: %w", err)
	}
	log := logger.WithComponent("controller")
	log.Debug().Str("service", c.name).Msg("Stop requested")
	return nil
}

// EnterForeground promotes the running service to the foreground with the
// configured notification. Without a running instance it does nothing.
// When already in the foreground the notification is posted again, which
// updates its content.
func (c *ServiceController) EnterForeground(ctx context.Context) error {
	c.mu.Lock()
	if c.instance == nil || !c.running {
		c.mu.Unlock()
		log := logger.WithComponent("controller")
		log.Debug().Str("service", c.name).Msg("No running instance, enter foreground ignored")
		return nil
	}

	if err := c.promoteLocked(ctx); err != nil {
		c.mu.Unlock()
		return err
	}

	from := c.stateLocked()
	c.foreground = true
	changed := c.transitionLocked(from, TriggerEnterForeground)
	c.mu.Unlock()

	if changed {
		c.deliver()
	}
	return nil
}

func (c *ServiceController) promoteLocked(ctx context.Context) error {
	if err := c.channel.Validate(); err != nil {
		return err
	}
	if err := c.notification.Validate(); err != nil {
		return err
	}
	if err := c.instance.CreateNotificationChannel(ctx, c.channel); err != nil {
		return fmt.Errorf("failed to create notification channel %s: %w", c.channel.ID, err)
	}
	if err := c.instance.StartForeground(ctx, c.notification); err != nil {
		return fmt.Errorf("failed to start foreground: %w", err)
	}
	return nil
}

// LeaveForeground demotes the service to the background and removes its
// notification. RunningFlag is unaffected. Without an instance it does nothing.
func (c *ServiceController) LeaveForeground(ctx context.Context) error {
	c.mu.Lock()
	if c.instance == nil {
		c.mu.Unlock()
		log := logger.WithComponent("controller")
		log.Debug().Str("service", c.name).Msg("No instance, leave foreground ignored")
		return nil
	}

	if err := c.instance.StopForeground(ctx, true); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to stop foreground: %w", err)
	}

	from := c.stateLocked()
	c.foreground = false
	changed := c.transitionLocked(from, TriggerLeaveForeground)
	c.mu.Unlock()

	if changed {
		c.deliver()
	}
	return nil
}

// SetNotification replaces the foreground notification. A service already
// in the foreground shows the new content immediately.
func (c *ServiceController) SetNotification(ctx context.Context, n notification.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.notification = n
	if c.instance == nil || !c.foreground {
		return nil
	}
	if err := c.instance.StartForeground(ctx, n); err != nil {
		return fmt.Errorf("failed to update foreground notification: %w", err)
	}
	return nil
}

// Notification returns the notification used for the foreground state.
func (c *ServiceController) Notification() notification.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notification
}

// OnCreate records the instance the host constructed.
func (c *ServiceController) OnCreate(inst Instance) {
	c.mu.Lock()
	c.instance = inst
	c.mu.Unlock()

	log := logger.WithComponent("controller")
	log.Debug().Str("service", c.name).Msg("Service instance created")
}

// OnStartCommand marks the service running. The host calls it for every
// start request, including repeated ones and sticky restarts.
func (c *ServiceController) OnStartCommand() {
	c.mu.Lock()
	if c.instance == nil {
		c.mu.Unlock()
		log := logger.WithComponent("controller")
		log.Warn().Str("service", c.name).Msg("Start command without an instance, ignored")
		return
	}
	from := c.stateLocked()
	c.running = true
	changed := c.transitionLocked(from, TriggerStartCommand)
	c.mu.Unlock()

	if changed {
		c.deliver()
	}
}

// OnDestroy clears the instance and both flags, whatever the prior state.
func (c *ServiceController) OnDestroy() {
	c.mu.Lock()
	from := c.stateLocked()
	c.instance = nil
	c.running = false
	c.foreground = false
	changed := c.transitionLocked(from, TriggerDestroy)
	c.mu.Unlock()

	if changed {
		c.deliver()
	}
}

// OnBind reports whether binding is supported. It is not.
func (c *ServiceController) OnBind() bool {
	return false
}

// IsRunning reports RunningFlag.
func (c *ServiceController) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// IsForeground reports ForegroundFlag.
func (c *ServiceController) IsForeground() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.foreground
}

// HasInstance reports whether the host has a live service instance.
func (c *ServiceController) HasInstance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instance != nil
}

// State returns the current state.
func (c *ServiceController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Snapshot returns State, RunningFlag, ForegroundFlag and the handle's
// presence as one consistent reading.
func (c *ServiceController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:       c.stateLocked(),
		Running:     c.running,
		Foreground:  c.foreground,
		HasInstance: c.instance != nil,
	}
}

// Available reports whether the host can run a real OS service.
func (c *ServiceController) Available() bool {
	return c.host != nil && c.host.Available()
}

func (c *ServiceController) stateLocked() State {
	switch {
	case c.running && c.foreground:
		return StateRunningForeground
	case c.running:
		return StateRunning
	default:
		return StateNotRunning
	}
}

// transitionLocked queues a Transition for observers if the state changed.
func (c *ServiceController) transitionLocked(from State, trigger Trigger) bool {
	to := c.stateLocked()
	if from == to {
		return false
	}
	tr := Transition{
		Service: c.name,
		From:    from,
		To:      to,
		Trigger: trigger,
		At:      c.now(),
	}
	c.pending = append(c.pending, tr)

	log := logger.WithComponent("controller")
	log.Info().
		Str("service", c.name).
		Str("from", from.String()).
		Str("to", to.String()).
		Str("trigger", string(trigger)).
		Msg("State changed")
	return true
}
