package buffers

import (
	"fmt"
)

// MemoryStatus summarises heap state at a point in time.
type MemoryStatus struct {
	TotalHeap      uint64
	FreeHeap       uint64
	MinFreeHeap    uint64
	MaxAllocatable uint64
	Healthy        bool
	Message        string
}

// Diagnostics is a read-only report of heap and pool state.
type Diagnostics struct {
	MemoryStatus
	UsagePercent      uint64
	DoubleCapable     bool
	SmartDownloadSize int
	SmartWriteSize    int
	Allocated         bool
	DoubleBuffering   bool
	DownloadSize      int
	WriteSize         int
	SlotCount         int
	PoolBytes         int
}

// CheckHealth reports whether the heap is above the required floor and the
// recorded low-water mark is above half of it.
func CheckHealth(probe HeapProbe) bool {
	healthy := true
	if probe.FreeHeap() < MinFreeHeapRequired {
		healthy = false
	}
	if probe.MinFreeHeap() < MinFreeHeapRequired/2 {
		healthy = false
	}
	return healthy
}

// CanDoubleBufferAt reports whether the smart sizes for the current free heap
// could be double buffered.
func CanDoubleBufferAt(probe HeapProbe) bool {
	free := probe.FreeHeap()
	total := uint64(DownloadSizeFor(free)+WriteSizeFor(free)) * DoubleBufferCount
	return total <= doubleBufferHeadroom(free)
}

// Status returns the heap summary. It has no effect on allocation state.
func Status(probe HeapProbe) MemoryStatus {
	s := MemoryStatus{
		TotalHeap:      probe.TotalHeap(),
		FreeHeap:       probe.FreeHeap(),
		MinFreeHeap:    probe.MinFreeHeap(),
		MaxAllocatable: probe.MaxAllocatable(),
		Healthy:        CheckHealth(probe),
	}
	double := "NO"
	if CanDoubleBufferAt(probe) {
		double = "YES"
	}
	s.Message = fmt.Sprintf("Free: %d KB, Min: %d KB, Double Buffering: %s", s.FreeHeap/1024, s.MinFreeHeap/1024, double)
	return s
}

func (m *Manager) Status() MemoryStatus {
	return Status(m.heap)
}

func (m *Manager) CheckHealth() bool {
	healthy := CheckHealth(m.heap)
	if !healthy {
		m.log.Warn().Uint64("free", m.heap.FreeHeap()).Uint64("min_free", m.heap.MinFreeHeap()).Msg("low heap memory")
	}
	return healthy
}

// Diagnostics reports heap telemetry together with the pool configuration.
func (m *Manager) Diagnostics() Diagnostics {
	status := m.Status()
	d := Diagnostics{
		MemoryStatus:      status,
		DoubleCapable:     CanDoubleBufferAt(m.heap),
		SmartDownloadSize: DownloadSizeFor(status.FreeHeap),
		SmartWriteSize:    WriteSizeFor(status.FreeHeap),
		Allocated:         m.allocated,
		DoubleBuffering:   m.double,
		DownloadSize:      m.sizes[RoleDownload],
		WriteSize:         m.sizes[RoleWrite],
	}
	if status.TotalHeap > 0 && status.TotalHeap >= status.FreeHeap {
		d.UsagePercent = (status.TotalHeap - status.FreeHeap) * 100 / status.TotalHeap
	}
	if m.allocated {
		d.SlotCount = m.slotCount()
		d.PoolBytes = (d.DownloadSize + d.WriteSize) * d.SlotCount
	}
	return d
}
