package tasks

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalGivesOnce(t *testing.T) {
	s := NewSignal()
	defer s.Destroy()
	assert.True(t, s.Give())
	assert.False(t, s.Give())
	assert.True(t, s.Wait(time.Second))
	assert.False(t, s.Wait(10*time.Millisecond))
}

func TestSignalWaitTimesOut(t *testing.T) {
	s := NewSignal()
	defer s.Destroy()
	start := time.Now()
	assert.False(t, s.Wait(50*time.Millisecond))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestSignalGiveAfterDestroy(t *testing.T) {
	s := NewSignal()
	s.Destroy()
	assert.False(t, s.Give())
}

func TestSpawnPinnedRunsTask(t *testing.T) {
	l := NewLauncher()
	sig := NewSignal()
	defer sig.Destroy()

	var ran atomic.Bool
	h, err := l.SpawnPinned("test", func() {
		ran.Store(true)
		sig.Give()
	}, 0, 4096, 1)
	require.NoError(t, err)
	require.True(t, sig.Wait(time.Second))
	<-h.Done()
	assert.True(t, ran.Load())
	assert.Equal(t, Unit(0), h.Unit)
	assert.NotEmpty(t, h.ID.String())
}

func TestSpawnPinnedRejectsBadUnit(t *testing.T) {
	l := NewLauncher()
	_, err := l.SpawnPinned("bad", func() {}, Unit(l.Units()), 0, 0)
	assert.ErrorIs(t, err, ErrInvalidUnit)
	_, err = l.SpawnPinned("bad", func() {}, -1, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidUnit)
	_, err = l.SpawnPinned("nil", nil, 0, 0, 0)
	assert.Error(t, err)
}

func TestTerminateSelfRunsDeferred(t *testing.T) {
	l := NewLauncher()
	sig := NewSignal()
	defer sig.Destroy()

	var after atomic.Bool
	h, err := l.SpawnPinned("exit", func() {
		defer sig.Give()
		TerminateSelf()
		after.Store(true)
	}, 0, 0, 0)
	require.NoError(t, err)
	assert.True(t, sig.Wait(time.Second))
	<-h.Done()
	assert.False(t, after.Load())
}

func TestPanicIsRecovered(t *testing.T) {
	l := NewLauncher()
	h, err := l.SpawnPinned("panic", func() { panic("boom") }, 0, 0, 0)
	require.NoError(t, err)
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not finish")
	}
}
