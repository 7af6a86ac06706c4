//go:build android

package host

import (
	"bgservice/internal/host/android"
)

// Default returns the Android host. cfg is ignored.
func Default(Config) Host {
	return android.New()
}

// Available reports whether the platform has a real OS service manager.
func Available() bool {
	return true
}
