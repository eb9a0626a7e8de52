// Package cpu binds pool units to operating system threads and cores.
package cpu

import "runtime"

// NumCPU returns the number of logical CPUs available.
func NumCPU() int {
	return runtime.NumCPU()
}

func foldCPU(cpuID int) int {
	n := runtime.NumCPU()
	if cpuID < 0 {
		cpuID = -cpuID
	}
	return cpuID % n
}
