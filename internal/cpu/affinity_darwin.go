//go:build darwin

package cpu

import (
	"runtime"
)

// BindUnit dedicates the calling goroutine's OS thread to it for the rest of
// its life. CPU pinning is not available on macOS, pin is ignored.
func BindUnit(_ int, _ bool) error {
	runtime.LockOSThread()
	return nil
}
