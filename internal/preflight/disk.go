package preflight

import (
	"fmt"
	"syscall"
)

// MinDiskSpaceBytes is the minimum required free disk space (100MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// CheckDiskSpace reports whether path's filesystem has at least
// MinDiskSpaceBytes free.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	available := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum: 100 MB)", formatBytes(available))

	if available < MinDiskSpaceBytes {
		result.Status = StatusFail
		return result
	}
	result.Status = StatusPass
	return result
}

// byteUnit is one step of formatBytes's unit ladder.
type byteUnit struct {
	threshold uint64
	suffix    string
}

var byteUnits = []byteUnit{
	{1024 * 1024 * 1024 * 1024, "TB"},
	{1024 * 1024 * 1024, "GB"},
	{1024 * 1024, "MB"},
	{1024, "KB"},
}

// formatBytes renders bytes using the largest unit whose threshold it meets.
func formatBytes(bytes uint64) string {
	for _, u := range byteUnits {
		if bytes >= u.threshold {
			return fmt.Sprintf("%.1f %s", float64(bytes)/float64(u.threshold), u.suffix)
		}
	}
	return fmt.Sprintf("%d bytes", bytes)
}
