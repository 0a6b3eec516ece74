package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the descriptor limit below which a refresh may run
// out of handles while bleve merges segments.
const MinFileDescriptors = 1024

// CheckFileDescriptors warns when the file descriptor limit is low.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{
		Name: "file_descriptors",
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusWarn
		result.Details = "Run 'ulimit -n 10240' to increase the limit"
		return result
	}
	result.Status = StatusPass
	return result
}
