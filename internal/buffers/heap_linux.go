//go:build linux

package buffers

import "golang.org/x/sys/unix"

func systemFreeMemory() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return runtimeFreeMemory()
	}
	return uint64(info.Freeram) * uint64(info.Unit)
}

func systemTotalMemory() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return runtimeTotalMemory()
	}
	return uint64(info.Totalram) * uint64(info.Unit)
}
