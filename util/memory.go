package util

import (
	"github.com/shirou/gopsutil/mem"
)

// MemoryEstimator reports how many bytes a job may use for buffers.
type MemoryEstimator func() (uint64, error)

// AvailableMemory returns the memory the OS reports as available for new allocations.
func AvailableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, WrapErr("virtual memory", err)
	}
	return vm.Available, nil
}

// FractionOf scales an estimator, keeping headroom for the rest of the process.
func FractionOf(est MemoryEstimator, fraction float64) MemoryEstimator {
	return func() (uint64, error) {
		avail, err := est()
		if err != nil {
			return 0, err
		}
		if fraction <= 0 || fraction > 1 {
			return avail, nil
		}
		return uint64(float64(avail) * fraction), nil
	}
}

// FixedMemory is an estimator that always reports n bytes.
func FixedMemory(n uint64) MemoryEstimator {
	return func() (uint64, error) { return n, nil }
}
