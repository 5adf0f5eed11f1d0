//go:build windows

package ui

import (
	"golang.org/x/sys/windows"
)

// EnableConsole switches the Windows console to UTF-8 and turns on
// ANSI escape processing for stdout and stderr. Redirected handles are
// left alone.
func EnableConsole() {
	const cpUTF8 = 65001
	_ = windows.SetConsoleOutputCP(cpUTF8)

	for _, std := range []uint32{windows.STD_ERROR_HANDLE, windows.STD_OUTPUT_HANDLE} {
		h, err := windows.GetStdHandle(std)
		if err != nil {
			continue
		}
		var mode uint32
		if windows.GetConsoleMode(h, &mode) != nil {
			continue
		}
		_ = windows.SetConsoleMode(h, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
	}
}
