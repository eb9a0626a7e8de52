//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCore pins the current OS thread to a specific CPU core.
// Must be called after runtime.LockOSThread().
//
// cpuID is folded into [0, runtime.NumCPU()-1].
func pinToCore(cpuID int) (int, error) {
	cpuID = foldCPU(cpuID)

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpuID)

	if err := unix.SchedSetaffinity(0, &mask); err != nil { // 0 = current thread
		return 0, err
	}
	return cpuID, nil
}

// BindUnit dedicates the calling goroutine's OS thread to it for the rest of
// its life and, when pin is set, restricts that thread to one core chosen
// from unitID.
//
// The thread is never unlocked: when the goroutine exits the runtime
// terminates the thread instead of returning it to the scheduler, so every
// unit owns a real kernel thread from start to end.
func BindUnit(unitID int, pin bool) error {
	runtime.LockOSThread()
	if !pin {
		return nil
	}
	_, err := pinToCore(unitID)
	return err
}
