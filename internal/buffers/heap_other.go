//go:build !linux

package buffers

func systemFreeMemory() uint64 {
	return runtimeFreeMemory()
}

func systemTotalMemory() uint64 {
	return runtimeTotalMemory()
}
