// Package host selects the service manager the controller runs against.
package host

import (
	"context"
	"time"

	"bgservice/internal/controller"
)

// Host is a service manager that can be attached to a controller and run.
type Host interface {
	controller.Host
	Attach(l controller.Lifecycle)
	Start(ctx context.Context) error
	Stop()
}

// Config holds host settings. Only the local host uses them; Android owns
// restart and background-start policy itself.
type Config struct {
	Sticky               bool
	RestartInitialDelay  time.Duration
	RestartMaxDelay      time.Duration
	AllowBackgroundStart bool
	QueueSize            int
}

// DefaultConfig returns a sticky host that permits background starts.
func DefaultConfig() Config {
	return Config{
		Sticky:               true,
		RestartInitialDelay:  time.Second,
		RestartMaxDelay:      time.Minute,
		AllowBackgroundStart: true,
		QueueSize:            16,
	}
}
