package buffers

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Role selects which pool a buffer belongs to.
type Role int

const (
	RoleDownload Role = iota
	RoleWrite
)

func (r Role) String() string {
	if r == RoleWrite {
		return "write"
	}
	return "download"
}

var (
	ErrInsufficientMemory = errors.New("insufficient memory for buffers")
	ErrInvalidSize        = errors.New("buffer size must be positive")
)

// Manager owns the download and write buffer pools. It is not safe for use
// by more than one transfer at a time.
type Manager struct {
	heap   Heap
	log    zerolog.Logger
	slots  [2][DoubleBufferCount][]byte
	sizes  [2]int
	active [2]int

	allocated bool
	double    bool
}

func NewManager(heap Heap) *Manager {
	if heap == nil {
		heap = NewSystemHeap()
	}
	return &Manager{
		heap: heap,
		log:  log.With().Str("op", "buffers/manager").Logger(),
	}
}

// Heap returns the heap the manager allocates from.
func (m *Manager) Heap() Heap {
	return m.heap
}

// Allocate sizes both pools from the current free heap and allocates them.
func (m *Manager) Allocate() error {
	m.Deallocate()
	free := m.heap.FreeHeap()
	dl, wr := DownloadSizeFor(free), WriteSizeFor(free)
	m.log.Info().Str("download", FormatKB(dl)).Str("write", FormatKB(wr)).Uint64("free", free).Msg("smart scaling buffer sizes selected")
	return m.allocate(dl, wr)
}

// AllocateSized allocates both pools with caller-supplied sizes.
func (m *Manager) AllocateSized(downloadSize, writeSize int) error {
	if downloadSize <= 0 || writeSize <= 0 {
		return ErrInvalidSize
	}
	m.Deallocate()
	return m.allocate(downloadSize, writeSize)
}

func (m *Manager) allocate(dl, wr int) error {
	m.double = m.CanDoubleBuffer(dl, wr)
	count := m.slotCount()
	required := uint64(dl+wr) * uint64(count)
	if !m.HasEnoughMemory(required) {
		m.log.Warn().Uint64("required", required).Uint64("free", m.heap.FreeHeap()).Msg("insufficient memory for buffers")
		if !m.double {
			return fmt.Errorf("%w: need %d bytes", ErrInsufficientMemory, required)
		}
		m.log.Warn().Msg("falling back to single buffering")
		m.double = false
		count = 1
		required = uint64(dl + wr)
		if !m.HasEnoughMemory(required) {
			return fmt.Errorf("%w: even single buffering needs %d bytes", ErrInsufficientMemory, required)
		}
	}

	for i := range count {
		var err error
		if m.slots[RoleDownload][i], err = m.heap.Alloc(dl); err != nil {
			m.Deallocate()
			return fmt.Errorf("allocating download buffer %d: %w", i, err)
		}
		if m.slots[RoleWrite][i], err = m.heap.Alloc(wr); err != nil {
			m.Deallocate()
			return fmt.Errorf("allocating write buffer %d: %w", i, err)
		}
	}

	m.sizes = [2]int{dl, wr}
	m.active = [2]int{0, 0}
	m.allocated = true
	m.log.Info().
		Bool("double", m.double).
		Str("download", fmt.Sprintf("%s x%d", FormatKB(dl), count)).
		Str("write", fmt.Sprintf("%s x%d", FormatKB(wr), count)).
		Str("total", FormatKB(int(required))).
		Msg("buffer allocation success")
	return nil
}

// Deallocate releases every slot and resets sizing and mode state. It is
// safe to call when nothing is allocated.
func (m *Manager) Deallocate() {
	released := false
	for r := range m.slots {
		for i := range m.slots[r] {
			if m.slots[r][i] != nil {
				m.heap.Free(m.slots[r][i])
				m.slots[r][i] = nil
				released = true
			}
		}
	}
	m.sizes = [2]int{}
	m.active = [2]int{}
	m.allocated = false
	m.double = false
	if released {
		m.log.Debug().Msg("buffers deallocated")
	}
}

// ActiveBuffer returns the buffer in the active slot for role, or nil.
func (m *Manager) ActiveBuffer(role Role) []byte {
	return m.Buffer(role, -1)
}

// Buffer returns the buffer at index for role; -1 means the active slot.
// Out-of-range indexes return nil.
func (m *Manager) Buffer(role Role, index int) []byte {
	if role != RoleDownload && role != RoleWrite {
		return nil
	}
	if index == -1 {
		index = m.active[role]
	}
	if index < 0 || index >= DoubleBufferCount {
		return nil
	}
	return m.slots[role][index]
}

func (m *Manager) BufferSize(role Role) int {
	if role != RoleDownload && role != RoleWrite {
		return 0
	}
	return m.sizes[role]
}

func (m *Manager) ActiveIndex(role Role) int {
	if role != RoleDownload && role != RoleWrite {
		return 0
	}
	return m.active[role]
}

// Swap advances the active slot for role. No-op unless double buffering is
// enabled and buffers are allocated.
func (m *Manager) Swap(role Role) {
	if !m.double || !m.allocated {
		return
	}
	if role != RoleDownload && role != RoleWrite {
		return
	}
	m.active[role] = (m.active[role] + 1) % DoubleBufferCount
	m.log.Trace().Str("role", role.String()).Int("index", m.active[role]).Msg("swapped buffer")
}

func (m *Manager) Allocated() bool {
	return m.allocated
}

func (m *Manager) DoubleBuffering() bool {
	return m.double
}

// HasEnoughMemory reports whether required bytes fit in free heap minus the
// smaller of the percentage margin and the fixed floor.
func (m *Manager) HasEnoughMemory(required uint64) bool {
	return required <= headroom(m.heap.FreeHeap())
}

// CanDoubleBuffer reports whether two copies of each pool fit in free heap
// minus the larger of the percentage margin and the fixed floor.
func (m *Manager) CanDoubleBuffer(downloadSize, writeSize int) bool {
	total := uint64(downloadSize+writeSize) * DoubleBufferCount
	return total <= doubleBufferHeadroom(m.heap.FreeHeap())
}

// Validate checks that every slot required by the current mode is present.
func (m *Manager) Validate() bool {
	if !m.allocated {
		return false
	}
	if m.slots[RoleDownload][0] == nil || m.sizes[RoleDownload] == 0 {
		return false
	}
	if m.slots[RoleWrite][0] == nil || m.sizes[RoleWrite] == 0 {
		return false
	}
	if m.double && (m.slots[RoleDownload][1] == nil || m.slots[RoleWrite][1] == nil) {
		return false
	}
	return true
}

func (m *Manager) slotCount() int {
	if m.double {
		return DoubleBufferCount
	}
	return 1
}

// FormatKB renders a byte count as whole kilobytes.
func FormatKB(n int) string {
	return fmt.Sprintf("%d KB", n/1024)
}
