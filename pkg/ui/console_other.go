//go:build !windows

package ui

// EnableConsole is a no-op outside Windows.
func EnableConsole() {}
