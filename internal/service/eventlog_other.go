//go:build !windows
// +build !windows

package service

// ReportStartupError is a no-op outside Windows; see WriteStartupErrorFile.
func ReportStartupError(serviceName string, err error) {}
