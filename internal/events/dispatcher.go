package events

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"bgservice/internal/controller"
	"bgservice/internal/logger"
)

const (
	defaultQueueSize      = 256
	defaultPublishTimeout = 10 * time.Second
)

// Dispatcher queues events and publishes them to a sink from one goroutine,
// so observers never block on network I/O. When the queue is full new
// events are dropped.
type Dispatcher struct {
	sink     Sink
	hostname string
	pid      int
	timeout  time.Duration

	ch      chan *Event
	done    chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewDispatcher starts a dispatcher in front of sink. queueSize <= 0 selects
// the default.
func NewDispatcher(sink Sink, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	d := &Dispatcher{
		sink:     sink,
		hostname: hostname,
		pid:      os.Getpid(),
		timeout:  defaultPublishTimeout,
		ch:       make(chan *Event, queueSize),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish stamps e with the host identity and queues it. It reports false
// if the event was dropped.
func (d *Dispatcher) Publish(e *Event) bool {
	if e.Hostname == "" {
		e.Hostname = d.hostname
	}
	if e.PID == 0 {
		e.PID = d.pid
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.ch <- e:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

// Observe publishes a controller transition. Pass it to Subscribe.
func (d *Dispatcher) Observe(tr controller.Transition) {
	d.Publish(FromTransition(tr))
}

// Dropped returns the number of events discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	log := logger.WithComponent("event-dispatcher")

	for e := range d.ch {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.sink.Publish(ctx, e); err != nil {
			log.Error().Err(err).
				Str("kind", string(e.Kind)).
				Str("to", e.To).
				Msg("Failed to publish event")
		}
		cancel()
	}
}

// Close publishes the events already queued, then closes the sink.
func (d *Dispatcher) Close() error {
	var err error
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.ch)
		d.mu.Unlock()

		<-d.done
		err = d.sink.Close()
	})
	return err
}
