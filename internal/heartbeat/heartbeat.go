// Package heartbeat periodically publishes the service state together with
// the resource usage of the hosting process.
package heartbeat

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v3/process"

	"bgservice/internal/controller"
	"bgservice/internal/events"
	"bgservice/internal/logger"
)

// StateSource reports the current service state.
type StateSource interface {
	Name() string
	State() controller.State
}

// Publisher accepts events without blocking.
type Publisher interface {
	Publish(e *events.Event) bool
}

// Usage is a resource usage sample.
type Usage struct {
	RSSBytes   uint64
	CPUPercent float64
}

// Sampler measures resource usage.
type Sampler interface {
	Sample(ctx context.Context) (Usage, error)
}

// ProcessSampler samples the current process with gopsutil. CPU percent is
// measured between consecutive samples; the first sample reports 0.
type ProcessSampler struct {
	mu   sync.Mutex
	proc *process.Process
}

// NewProcessSampler returns a sampler for the calling process.
func NewProcessSampler() (*ProcessSampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open own process: %w", err)
	}
	return &ProcessSampler{proc: p}, nil
}

// Sample reads RSS and CPU usage.
func (s *ProcessSampler) Sample(ctx context.Context) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to read memory info: %w", err)
	}
	cpu, err := s.proc.PercentWithContext(ctx, 0)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	return Usage{RSSBytes: mem.RSS, CPUPercent: cpu}, nil
}

// Option configures a Heartbeat.
type Option func(*Heartbeat)

// WithClock sets the clock driving the ticker and event timestamps.
func WithClock(clk clock.Clock) Option {
	return func(h *Heartbeat) { h.clk = clk }
}

// WithSampler replaces the process sampler. A nil sampler omits usage.
func WithSampler(s Sampler) Option {
	return func(h *Heartbeat) { h.sampler = s }
}

// Heartbeat publishes a heartbeat event every interval.
type Heartbeat struct {
	source   StateSource
	pub      Publisher
	interval time.Duration
	clk      clock.Clock
	sampler  Sampler

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a stopped heartbeat.
func New(source StateSource, pub Publisher, interval time.Duration, opts ...Option) *Heartbeat {
	h := &Heartbeat{
		source:   source,
		pub:      pub,
		interval: interval,
		clk:      clock.New(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start begins publishing. A non-positive interval disables the heartbeat.
func (h *Heartbeat) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running || h.interval <= 0 {
		return nil
	}
	h.running = true

	ctx, h.cancel = context.WithCancel(ctx)
	ticker := h.clk.Ticker(h.interval)

	log := logger.WithComponent("heartbeat")
	log.Info().Dur("interval", h.interval).Msg("Starting heartbeat")

	h.wg.Add(1)
	go h.run(ctx, ticker)
	return nil
}

// Stop stops publishing and waits for the loop to exit.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.cancel()
	h.mu.Unlock()

	h.wg.Wait()

	log := logger.WithComponent("heartbeat")
	log.Info().Msg("Heartbeat stopped")
}

// IsRunning returns whether the heartbeat loop is active.
func (h *Heartbeat) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *Heartbeat) run(ctx context.Context, ticker *clock.Ticker) {
	defer h.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Beat(ctx)
		}
	}
}

// Beat publishes one heartbeat immediately.
func (h *Heartbeat) Beat(ctx context.Context) {
	log := logger.WithComponent("heartbeat")

	e := &events.Event{
		Service:   h.source.Name(),
		Kind:      events.KindHeartbeat,
		To:        h.source.State().String(),
		Timestamp: h.clk.Now(),
	}

	if h.sampler != nil {
		sampleCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		u, err := h.sampler.Sample(sampleCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to sample process usage")
		} else {
			e.RSSBytes = u.RSSBytes
			e.CPUPercent = u.CPUPercent
		}
	}

	if !h.pub.Publish(e) {
		log.Warn().Str("state", e.To).Msg("Heartbeat dropped")
		return
	}
	log.Debug().
		Str("state", e.To).
		Uint64("rss_bytes", e.RSSBytes).
		Float64("cpu_percent", e.CPUPercent).
		Msg("Heartbeat published")
}
