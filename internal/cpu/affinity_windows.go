//go:build windows

package cpu

import (
	"runtime"
	"syscall"
)

var (
	kernel32              = syscall.NewLazyDLL("kernel32.dll")
	setThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
	getCurrentThread      = kernel32.NewProc("GetCurrentThread")
)

// pinToCore pins the current OS thread to a specific CPU core.
// Must be called after runtime.LockOSThread().
func pinToCore(cpuID int) (int, error) {
	cpuID = foldCPU(cpuID)

	handle, _, _ := getCurrentThread.Call()

	// Bit N = CPU N
	mask := uintptr(1 << cpuID)

	prevMask, _, err := setThreadAffinityMask.Call(handle, mask)
	if prevMask == 0 {
		return 0, err
	}
	return cpuID, nil
}

// BindUnit dedicates the calling goroutine's OS thread to it for the rest of
// its life and, when pin is set, restricts that thread to one core chosen
// from unitID.
func BindUnit(unitID int, pin bool) error {
	runtime.LockOSThread()
	if !pin {
		return nil
	}
	_, err := pinToCore(unitID)
	return err
}
