package buffers

import (
	"sync"
)

// BudgetHeap emulates a device heap with a fixed capacity. Allocations are
// charged against the budget and refunded on Free.
type BudgetHeap struct {
	mu        sync.Mutex
	total     uint64
	used      uint64
	lowWater  uint64
	reserved  uint64
	failAfter int
	allocs    int
	live      map[*byte]uint64
}

func NewBudgetHeap(total uint64) *BudgetHeap {
	return &BudgetHeap{
		total:     total,
		lowWater:  total,
		failAfter: -1,
		live:      make(map[*byte]uint64),
	}
}

// Reserve takes n bytes out of the budget without handing out a buffer,
// simulating memory held by other firmware subsystems.
func (b *BudgetHeap) Reserve(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > b.total-b.used {
		n = b.total - b.used
	}
	b.used += n
	b.reserved += n
	b.trackLowWater()
}

// FailAfter makes every allocation after the next n successful ones fail.
// A negative n disables fault injection.
func (b *BudgetHeap) FailAfter(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAfter = n
	b.allocs = 0
}

func (b *BudgetHeap) FreeHeap() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total - b.used
}

func (b *BudgetHeap) TotalHeap() uint64 {
	return b.total
}

func (b *BudgetHeap) MinFreeHeap() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lowWater
}

func (b *BudgetHeap) MaxAllocatable() uint64 {
	return b.FreeHeap()
}

// Used reports bytes currently handed out, excluding reservations.
func (b *BudgetHeap) Used() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used - b.reserved
}

func (b *BudgetHeap) Alloc(n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || uint64(n) > b.total-b.used {
		return nil, ErrOutOfMemory
	}
	if b.failAfter >= 0 && b.allocs >= b.failAfter {
		return nil, ErrOutOfMemory
	}
	b.allocs++
	buf := make([]byte, n)
	b.used += uint64(n)
	b.live[&buf[0]] = uint64(n)
	b.trackLowWater()
	return buf, nil
}

func (b *BudgetHeap) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := &buf[0]
	if n, ok := b.live[key]; ok {
		b.used -= n
		delete(b.live, key)
	}
}

func (b *BudgetHeap) trackLowWater() {
	if free := b.total - b.used; free < b.lowWater {
		b.lowWater = free
	}
}
