package storage

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, s Store, path string, mode Mode, data []byte) {
	t.Helper()
	f, err := s.Open(path, mode)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestCallsFailBeforeMount(t *testing.T) {
	s := NewMemFS(0)
	assert.False(t, s.Exists("a.bin"))
	_, err := s.Open("a.bin", ModeCreate)
	assert.ErrorIs(t, err, ErrNotMounted)
	_, err = s.Size("a.bin")
	assert.ErrorIs(t, err, ErrNotMounted)
}

func TestCreateAppendRead(t *testing.T) {
	s := NewMemFS(0)
	require.NoError(t, s.Mount())

	writeFile(t, s, "fw/image.bin", ModeCreate, []byte("hello"))
	writeFile(t, s, "fw/image.bin", ModeAppend, []byte(" world"))
	assert.True(t, s.Exists("fw/image.bin"))

	size, err := s.Size("fw/image.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)

	f, err := s.Open("fw/image.bin", ModeRead)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "hello world", string(data))

	// create truncates
	writeFile(t, s, "fw/image.bin", ModeCreate, nil)
	size, err = s.Size("fw/image.bin")
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestCapacityShortWrite(t *testing.T) {
	s := NewMemFS(8)
	require.NoError(t, s.Mount())

	f, err := s.Open("a.bin", ModeCreate)
	require.NoError(t, err)
	n, err := f.Write([]byte("12345"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	n, err = f.Write([]byte("67890"))
	assert.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, 3, n)
	n, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrNoSpace)
	assert.Zero(t, n)
	require.NoError(t, f.Close())

	assert.False(t, s.HasSpace(1))
	total, used, err := s.Usage()
	require.NoError(t, err)
	assert.Equal(t, int64(8), total)
	assert.Equal(t, int64(8), used)
}

func TestListRemoveFormat(t *testing.T) {
	s := NewMemFS(0)
	require.NoError(t, s.Mount())
	writeFile(t, s, "b.bin", ModeCreate, []byte("bb"))
	writeFile(t, s, "a.bin", ModeCreate, []byte("a"))

	files, err := s.List("/")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.bin", files[0].Name)
	assert.Equal(t, int64(2), files[1].Size)

	require.NoError(t, s.Remove("a.bin"))
	assert.False(t, s.Exists("a.bin"))

	require.NoError(t, s.Format())
	files, err = s.List("/")
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.True(t, s.HasSpace(1<<30))
}

func TestOSFSRelativeRoot(t *testing.T) {
	dir := t.TempDir()
	s := NewOSFS(dir, 0)
	require.NoError(t, s.Mount())
	writeFile(t, s, "nested/out.bin", ModeCreate, []byte("data"))
	size, err := s.Size("nested/out.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)
}
