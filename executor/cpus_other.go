//go:build !linux

package executor

func cpuQuota() int { return 0 }
