package buffers

import "sync"

// Scratch is a buffer owned by a single call. Release returns it to the
// allocator and is safe to call more than once, so callers defer it.
type Scratch struct {
	alloc Allocator
	buf   []byte
	once  sync.Once
}

func NewScratch(alloc Allocator, size int) (*Scratch, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if alloc == nil {
		alloc = NewSystemHeap()
	}
	buf, err := alloc.Alloc(size)
	if err != nil {
		return nil, err
	}
	return &Scratch{alloc: alloc, buf: buf}, nil
}

func (s *Scratch) Bytes() []byte {
	return s.buf
}

func (s *Scratch) Release() {
	s.once.Do(func() {
		s.alloc.Free(s.buf)
		s.buf = nil
	})
}
