// Package buffers owns transfer buffer memory. It sizes buffers from live
// heap telemetry, optionally double-buffers them, and never leaves a
// partially allocated pool behind.
package buffers

import (
	"errors"
	"runtime"
)

// HeapProbe reports heap telemetry used for sizing decisions.
type HeapProbe interface {
	FreeHeap() uint64
	TotalHeap() uint64
	MinFreeHeap() uint64
	MaxAllocatable() uint64
}

// Allocator hands out byte regions. Free must accept any slice returned by
// Alloc exactly once.
type Allocator interface {
	Alloc(n int) ([]byte, error)
	Free(b []byte)
}

// Heap is a probe that can also allocate, which is what the Manager needs.
type Heap interface {
	HeapProbe
	Allocator
}

var ErrOutOfMemory = errors.New("out of memory")

// SystemHeap reads host memory telemetry and allocates from the Go heap.
type SystemHeap struct {
	minFree uint64
}

func NewSystemHeap() *SystemHeap {
	return &SystemHeap{}
}

func (s *SystemHeap) FreeHeap() uint64 {
	free := systemFreeMemory()
	if s.minFree == 0 || free < s.minFree {
		s.minFree = free
	}
	return free
}

func (s *SystemHeap) TotalHeap() uint64 {
	return systemTotalMemory()
}

func (s *SystemHeap) MinFreeHeap() uint64 {
	if s.minFree == 0 {
		return s.FreeHeap()
	}
	return s.minFree
}

func (s *SystemHeap) MaxAllocatable() uint64 {
	return s.FreeHeap()
}

func (s *SystemHeap) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, ErrOutOfMemory
	}
	return make([]byte, n), nil
}

func (s *SystemHeap) Free(b []byte) {}

func runtimeFreeMemory() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys - ms.HeapInuse
}

func runtimeTotalMemory() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys
}
