package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizingTiers(t *testing.T) {
	tests := []struct {
		free     uint64
		download int
		write    int
	}{
		{10_000_000, XLargeDownloadBufferSize, LargeWriteBufferSize},
		{500_001, XLargeDownloadBufferSize, LargeWriteBufferSize},
		{500_000, LargeDownloadBufferSize, DefaultWriteBufferSize},
		{350_001, LargeDownloadBufferSize, DefaultWriteBufferSize},
		{300_001, DefaultDownloadBufferSize, DefaultWriteBufferSize},
		{200_001, DefaultDownloadBufferSize, SmallWriteBufferSize},
		{150_001, SmallDownloadBufferSize, SmallWriteBufferSize},
		{120_001, SmallDownloadBufferSize, MinWriteBufferSize},
		{120_000, MinDownloadBufferSize, MinWriteBufferSize},
		{0, MinDownloadBufferSize, MinWriteBufferSize},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.download, DownloadSizeFor(tt.free), "download size for %d", tt.free)
		assert.Equal(t, tt.write, WriteSizeFor(tt.free), "write size for %d", tt.free)
	}
}

func TestSizingIsMonotone(t *testing.T) {
	prevDL, prevWR := 0, 0
	for free := uint64(0); free <= 1_000_000; free += 1000 {
		dl, wr := DownloadSizeFor(free), WriteSizeFor(free)
		require.GreaterOrEqual(t, dl, prevDL, "download tier inverted at %d", free)
		require.GreaterOrEqual(t, wr, prevWR, "write tier inverted at %d", free)
		prevDL, prevWR = dl, wr
	}
}

func assertReleased(t *testing.T, m *Manager) {
	t.Helper()
	assert.False(t, m.Allocated())
	assert.False(t, m.DoubleBuffering())
	for _, role := range []Role{RoleDownload, RoleWrite} {
		for i := range DoubleBufferCount {
			assert.Nil(t, m.Buffer(role, i), "%s slot %d", role, i)
		}
		assert.Zero(t, m.BufferSize(role))
	}
}

func TestAllocateSmartDoubleBuffering(t *testing.T) {
	heap := NewBudgetHeap(1_000_000)
	m := NewManager(heap)

	require.NoError(t, m.Allocate())
	assert.True(t, m.Allocated())
	assert.True(t, m.DoubleBuffering())
	assert.True(t, m.Validate())
	assert.Equal(t, XLargeDownloadBufferSize, m.BufferSize(RoleDownload))
	assert.Equal(t, LargeWriteBufferSize, m.BufferSize(RoleWrite))
	for i := range DoubleBufferCount {
		assert.Len(t, m.Buffer(RoleDownload, i), XLargeDownloadBufferSize)
		assert.Len(t, m.Buffer(RoleWrite, i), LargeWriteBufferSize)
	}
	assert.Equal(t, uint64(2*(XLargeDownloadBufferSize+LargeWriteBufferSize)), heap.Used())
}

func TestAllocateSmartSingleWhenDoubleUnaffordable(t *testing.T) {
	heap := NewBudgetHeap(400_000)
	m := NewManager(heap)

	require.NoError(t, m.Allocate())
	assert.False(t, m.DoubleBuffering())
	assert.True(t, m.Validate())
	assert.NotNil(t, m.Buffer(RoleDownload, 0))
	assert.Nil(t, m.Buffer(RoleDownload, 1))
	assert.Equal(t, uint64(LargeDownloadBufferSize+DefaultWriteBufferSize), heap.Used())
}

func TestAllocateFailsWithoutMemory(t *testing.T) {
	heap := NewBudgetHeap(20_000)
	m := NewManager(heap)

	err := m.Allocate()
	require.ErrorIs(t, err, ErrInsufficientMemory)
	assertReleased(t, m)
	assert.Zero(t, heap.Used())
}

func TestAllocateIsAllOrNothing(t *testing.T) {
	for failAt := 0; failAt < 2*DoubleBufferCount; failAt++ {
		heap := NewBudgetHeap(2_000_000)
		m := NewManager(heap)
		heap.FailAfter(failAt)

		err := m.Allocate()
		require.ErrorIs(t, err, ErrOutOfMemory, "fail at %d", failAt)
		assertReleased(t, m)
		assert.Zero(t, heap.Used(), "fail at %d leaked memory", failAt)
	}
}

func TestAllocateSizedUsesSizesVerbatim(t *testing.T) {
	heap := NewBudgetHeap(200_000)
	m := NewManager(heap)

	require.NoError(t, m.AllocateSized(4096, 2048))
	assert.Equal(t, 4096, m.BufferSize(RoleDownload))
	assert.Equal(t, 2048, m.BufferSize(RoleWrite))
	assert.True(t, m.DoubleBuffering())

	require.ErrorIs(t, m.AllocateSized(0, 10), ErrInvalidSize)
}

func TestReallocateReleasesFirst(t *testing.T) {
	heap := NewBudgetHeap(1_000_000)
	m := NewManager(heap)

	require.NoError(t, m.AllocateSized(8192, 4096))
	require.NoError(t, m.AllocateSized(1024, 1024))
	assert.Equal(t, uint64(2*(1024+1024)), heap.Used())
}

func TestDeallocateIsIdempotent(t *testing.T) {
	heap := NewBudgetHeap(1_000_000)
	m := NewManager(heap)
	m.Deallocate()
	assertReleased(t, m)

	require.NoError(t, m.Allocate())
	m.Deallocate()
	assertReleased(t, m)
	m.Deallocate()
	assertReleased(t, m)
	assert.Zero(t, heap.Used())
}

func TestSwap(t *testing.T) {
	t.Run("double buffering cycles slots", func(t *testing.T) {
		m := NewManager(NewBudgetHeap(1_000_000))
		require.NoError(t, m.Allocate())
		first := m.ActiveBuffer(RoleDownload)
		m.Swap(RoleDownload)
		assert.Equal(t, 1, m.ActiveIndex(RoleDownload))
		assert.Equal(t, 0, m.ActiveIndex(RoleWrite))
		m.Swap(RoleDownload)
		assert.Equal(t, 0, m.ActiveIndex(RoleDownload))
		assert.Same(t, &first[0], &m.ActiveBuffer(RoleDownload)[0])
	})
	t.Run("single buffering is a no-op", func(t *testing.T) {
		m := NewManager(NewBudgetHeap(400_000))
		require.NoError(t, m.Allocate())
		m.Swap(RoleWrite)
		assert.Equal(t, 0, m.ActiveIndex(RoleWrite))
	})
	t.Run("unallocated is a no-op", func(t *testing.T) {
		m := NewManager(NewBudgetHeap(1_000_000))
		m.Swap(RoleDownload)
		assert.Equal(t, 0, m.ActiveIndex(RoleDownload))
		assert.Nil(t, m.ActiveBuffer(RoleDownload))
	})
}

func TestBufferOutOfRange(t *testing.T) {
	m := NewManager(NewBudgetHeap(1_000_000))
	require.NoError(t, m.Allocate())
	assert.Nil(t, m.Buffer(RoleDownload, 2))
	assert.Nil(t, m.Buffer(RoleWrite, -2))
	assert.Nil(t, m.Buffer(Role(7), 0))
}

func TestMarginsAreAsymmetric(t *testing.T) {
	m := NewManager(NewBudgetHeap(1_000_000))
	// headroom subtracts min(150000, 80000); double-buffer check subtracts max.
	assert.True(t, m.HasEnoughMemory(920_000))
	assert.False(t, m.HasEnoughMemory(920_001))
	assert.True(t, m.CanDoubleBuffer(425_000, 0))
	assert.False(t, m.CanDoubleBuffer(425_001, 0))
	assert.True(t, m.HasEnoughMemory(2*425_001))
}

func TestHeadroomNeverWraps(t *testing.T) {
	m := NewManager(NewBudgetHeap(50_000))
	assert.False(t, m.CanDoubleBuffer(1, 1))
	assert.True(t, m.HasEnoughMemory(42_500))
	assert.False(t, m.HasEnoughMemory(42_501))

	empty := NewManager(NewBudgetHeap(0))
	assert.False(t, empty.HasEnoughMemory(1))
	assert.True(t, empty.HasEnoughMemory(0))
}

func TestDiagnosticsHaveNoSideEffects(t *testing.T) {
	heap := NewBudgetHeap(1_000_000)
	m := NewManager(heap)
	require.NoError(t, m.Allocate())
	used := heap.Used()

	d := m.Diagnostics()
	assert.True(t, d.Allocated)
	assert.True(t, d.DoubleBuffering)
	assert.Equal(t, DoubleBufferCount, d.SlotCount)
	assert.Equal(t, int(used), d.PoolBytes)
	assert.True(t, m.CheckHealth())
	assert.Contains(t, m.Status().Message, "Free:")

	assert.Equal(t, used, heap.Used())
	assert.True(t, m.Validate())
}

func TestCheckHealthLowWater(t *testing.T) {
	heap := NewBudgetHeap(200_000)
	assert.True(t, CheckHealth(heap))

	heap.Reserve(170_000)
	assert.False(t, CheckHealth(heap))
	assert.Less(t, heap.MinFreeHeap(), uint64(MinFreeHeapRequired/2))
}

func TestScratchRelease(t *testing.T) {
	heap := NewBudgetHeap(10_000)
	s, err := NewScratch(heap, 4096)
	require.NoError(t, err)
	assert.Len(t, s.Bytes(), 4096)
	assert.Equal(t, uint64(4096), heap.Used())

	s.Release()
	s.Release()
	assert.Zero(t, heap.Used())
	assert.Nil(t, s.Bytes())

	_, err = NewScratch(heap, 20_000)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}
