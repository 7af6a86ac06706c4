//go:build windows
// +build windows

package service

import (
	"fmt"

	"golang.org/x/sys/windows/svc/eventlog"
)

// startupFailedEventID is the Event Log ID of a configuration or wiring
// failure before the logger exists.
const startupFailedEventID = 1001

// ReportStartupError records err in the Windows Application log under
// serviceName. The event source is registered on first use.
func ReportStartupError(serviceName string, err error) {
	// fails harmlessly when the source already exists
	_ = eventlog.InstallAsEventCreate(serviceName, eventlog.Error|eventlog.Warning|eventlog.Info)

	el, openErr := eventlog.Open(serviceName)
	if openErr != nil {
		return
	}
	defer el.Close()

	_ = el.Error(startupFailedEventID, fmt.Sprintf("%s could not start: %v", serviceName, err))
}
