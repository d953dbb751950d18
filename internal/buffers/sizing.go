package buffers

const (
	SmallDownloadBufferSize   = 32768
	DefaultDownloadBufferSize = 65536
	LargeDownloadBufferSize   = 131072
	XLargeDownloadBufferSize  = 262144
	MinDownloadBufferSize     = 16384

	SmallWriteBufferSize   = 16384
	DefaultWriteBufferSize = 32768
	LargeWriteBufferSize   = 65536
	MinWriteBufferSize     = 8192

	DoubleBufferCount = 2

	MinFreeHeapRequired = 80000
	HeapSafetyMargin    = 0.15
)

// DownloadSizeFor maps a free heap reading to a download buffer tier.
func DownloadSizeFor(freeHeap uint64) int {
	switch {
	case freeHeap > 500000:
		return XLargeDownloadBufferSize
	case freeHeap > 350000:
		return LargeDownloadBufferSize
	case freeHeap > 200000:
		return DefaultDownloadBufferSize
	case freeHeap > 120000:
		return SmallDownloadBufferSize
	}
	return MinDownloadBufferSize
}

// WriteSizeFor maps a free heap reading to a write buffer tier.
func WriteSizeFor(freeHeap uint64) int {
	switch {
	case freeHeap > 500000:
		return LargeWriteBufferSize
	case freeHeap > 300000:
		return DefaultWriteBufferSize
	case freeHeap > 150000:
		return SmallWriteBufferSize
	}
	return MinWriteBufferSize
}

func safetyBuffer(freeHeap uint64) uint64 {
	return uint64(float64(freeHeap) * HeapSafetyMargin)
}

// usableAfter subtracts reserve from freeHeap without wrapping below zero.
func usableAfter(freeHeap, reserve uint64) uint64 {
	if reserve >= freeHeap {
		return 0
	}
	return freeHeap - reserve
}

// headroom is the plain headroom check: the smaller of the two margins.
func headroom(freeHeap uint64) uint64 {
	return usableAfter(freeHeap, min(safetyBuffer(freeHeap), MinFreeHeapRequired))
}

// doubleBufferHeadroom is stricter: the larger of the two margins.
func doubleBufferHeadroom(freeHeap uint64) uint64 {
	return usableAfter(freeHeap, max(safetyBuffer(freeHeap), MinFreeHeapRequired))
}
