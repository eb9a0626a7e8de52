//go:build !linux && !darwin && !windows

package cpu

import "runtime"

// BindUnit dedicates the calling goroutine's OS thread to it for the rest of
// its life. Pinning is not supported on this platform.
func BindUnit(_ int, _ bool) error {
	runtime.LockOSThread()
	return nil
}
