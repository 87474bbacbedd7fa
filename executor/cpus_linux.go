//go:build linux

package executor

import "golang.org/x/sys/unix"

// cpuQuota reads the calling thread's CPU affinity mask under Linux so
// the pool does not oversubscribe a cgroup-limited container beyond
// the CPUs it can actually schedule on. Returns 0 if the affinity mask
// cannot be read, leaving the caller to fall back to runtime.NumCPU().
func cpuQuota() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0
	}
	return set.Count()
}
