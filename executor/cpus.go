package executor

import "runtime"

// defaultPoolSize returns the worker count for the shared compute pool,
// sized to the host's logical processor count (§4.D). cpuQuota (Linux)
// overrides this when the process's CPU affinity mask allows fewer CPUs
// than the visible processor count.
func defaultPoolSize() int {
	if n := cpuQuota(); n > 0 && n < runtime.NumCPU() {
		return n
	}
	return runtime.NumCPU()
}
