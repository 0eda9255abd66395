// Package cpuspec reports CPU topology used to size inference thread pools.
package cpuspec

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec contains information about CPU specifications
type CPUSpec struct {
	BrandName     string
	PhysicalCores int
	LogicalCores  int
	Hybrid        bool // performance and efficiency cores mixed
	AVX2          bool
}

// GetCPUSpec returns the specification of the host CPU
func GetCPUSpec() CPUSpec {
	return CPUSpec{
		BrandName:     cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		Hybrid:        cpuid.CPU.Supports(cpuid.HYBRID_CPU),
		AVX2:          cpuid.CPU.Supports(cpuid.AVX2),
	}
}

// OptimalThreadCount returns the recommended interpreter thread count.
// Convolutional inference gains little from SMT siblings, so physical cores
// are preferred; the result never exceeds the CPUs available to the process.
func (c CPUSpec) OptimalThreadCount() int {
	return c.threadCount(runtime.NumCPU())
}

func (c CPUSpec) threadCount(available int) int {
	threads := c.PhysicalCores
	if threads <= 0 {
		threads = c.LogicalCores
	}
	if threads <= 0 || threads > available {
		threads = available
	}
	return max(threads, 1)
}

// ThreadCount resolves a configured thread count. Zero picks the optimal
// count; values above the available CPUs are capped.
func ThreadCount(configured int) int {
	available := runtime.NumCPU()
	if configured <= 0 {
		return GetCPUSpec().OptimalThreadCount()
	}
	return min(configured, available)
}
