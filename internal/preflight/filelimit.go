package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the minimum required open-file-descriptor limit.
// An HNSW collection with many segments plus the telemetry and archive
// files can otherwise exhaust a default 256-descriptor soft limit.
const MinFileDescriptors = 1024

// CheckFileDescriptors reports whether the process's soft RLIMIT_NOFILE
// meets MinFileDescriptors.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}

	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", limit.Cur, MinFileDescriptors)
	if limit.Cur < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = "Run 'ulimit -n 10240' to increase the limit"
		return result
	}

	result.Status = StatusPass
	return result
}
