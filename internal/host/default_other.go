//go:build !android

package host

import (
	"bgservice/internal/host/local"
)

// Default returns the in-process host configured from cfg.
func Default(cfg Config) Host {
	allow := cfg.AllowBackgroundStart
	return local.New(
		local.WithSticky(cfg.Sticky),
		local.WithRestartBackoff(cfg.RestartInitialDelay, cfg.RestartMaxDelay),
		local.WithBackgroundStartPolicy(func() bool { return allow }),
		local.WithQueueSize(cfg.QueueSize),
	)
}

// Available reports whether the platform has a real OS service manager.
func Available() bool {
	return false
}
