// Package storage is the persistent store transfers are appended to. It
// wraps an afero filesystem rooted at a base directory, optionally limited
// to a fixed capacity the way a flash partition would be.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

type Mode int

const (
	ModeCreate Mode = iota // create or truncate
	ModeAppend
	ModeRead
)

var (
	ErrNoSpace    = errors.New("storage is full")
	ErrNotMounted = errors.New("storage not mounted")
)

// File is an open handle on the store.
type File interface {
	io.Writer
	io.Reader
	io.Closer
}

// Store is what the download engines need from persistent storage. Every
// call may fail independently.
type Store interface {
	Mount() error
	Exists(path string) bool
	Open(path string, mode Mode) (File, error)
	Size(path string) (int64, error)
}

// FileInfo describes a stored file.
type FileInfo struct {
	Name  string
	Size  int64
	IsDir bool
}

// FS implements Store on an afero.Fs.
type FS struct {
	mu       sync.Mutex
	fs       afero.Fs
	root     string
	capacity int64
	mounted  bool
}

// NewFS roots fs at root. A capacity of 0 means unlimited.
func NewFS(fs afero.Fs, root string, capacity int64) *FS {
	if root == "" {
		root = "."
	}
	return &FS{
		fs:       afero.NewBasePathFs(fs, root),
		root:     root,
		capacity: capacity,
	}
}

// NewOSFS stores files under dir on the local disk.
func NewOSFS(dir string, capacity int64) *FS {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return NewFS(afero.NewOsFs(), dir, capacity)
}

// NewMemFS is an in-memory store.
func NewMemFS(capacity int64) *FS {
	return NewFS(afero.NewMemMapFs(), "/", capacity)
}

// Mount makes sure the root exists. Other calls fail until Mount succeeds.
func (s *FS) Mount() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounted {
		return nil
	}
	if err := s.fs.MkdirAll("/", 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrNotMounted, err)
	}
	s.mounted = true
	log.Debug().Str("op", "storage/store").Str("root", s.root).Int64("capacity", s.capacity).Msg("storage mounted")
	return nil
}

func (s *FS) isMounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

func clean(path string) string {
	return filepath.Join("/", path)
}

func (s *FS) Exists(path string) bool {
	if !s.isMounted() {
		return false
	}
	ok, err := afero.Exists(s.fs, clean(path))
	return err == nil && ok
}

func (s *FS) Size(path string) (int64, error) {
	if !s.isMounted() {
		return 0, ErrNotMounted
	}
	info, err := s.fs.Stat(clean(path))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *FS) Open(path string, mode Mode) (File, error) {
	if !s.isMounted() {
		return nil, ErrNotMounted
	}
	name := clean(path)
	var flag int
	switch mode {
	case ModeCreate:
		if err := s.fs.MkdirAll(filepath.Dir(name), 0755); err != nil {
			return nil, err
		}
		flag = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	case ModeAppend:
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	case ModeRead:
		flag = os.O_RDONLY
	default:
		return nil, fmt.Errorf("unknown open mode %d", mode)
	}
	f, err := s.fs.OpenFile(name, flag, 0644)
	if err != nil {
		return nil, err
	}
	if mode == ModeRead || s.capacity <= 0 {
		return f, nil
	}
	return &quotaFile{File: f, store: s}, nil
}

// Usage walks the store and returns capacity and bytes used.
func (s *FS) Usage() (total, used int64, err error) {
	if !s.isMounted() {
		return 0, 0, ErrNotMounted
	}
	err = afero.Walk(s.fs, "/", func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			used += info.Size()
		}
		return nil
	})
	return s.capacity, used, err
}

// HasSpace reports whether n more bytes fit. Unlimited stores always fit.
func (s *FS) HasSpace(n int64) bool {
	if s.capacity <= 0 {
		return true
	}
	_, used, err := s.Usage()
	if err != nil {
		return false
	}
	return used+n <= s.capacity
}

func (s *FS) Remove(path string) error {
	if !s.isMounted() {
		return ErrNotMounted
	}
	return s.fs.Remove(clean(path))
}

// List returns the files directly under dir, sorted by name.
func (s *FS) List(dir string) ([]FileInfo, error) {
	if !s.isMounted() {
		return nil, ErrNotMounted
	}
	infos, err := afero.ReadDir(s.fs, clean(dir))
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, FileInfo{Name: info.Name(), Size: info.Size(), IsDir: info.IsDir()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Format removes everything in the store.
func (s *FS) Format() error {
	if !s.isMounted() {
		return ErrNotMounted
	}
	entries, err := afero.ReadDir(s.fs, "/")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.fs.RemoveAll(clean(e.Name())); err != nil {
			return err
		}
	}
	log.Info().Str("op", "storage/store").Str("root", s.root).Msg("storage formatted")
	return nil
}

// quotaFile turns writes past the capacity into short writes.
type quotaFile struct {
	afero.File
	store *FS
}

func (q *quotaFile) Write(p []byte) (int, error) {
	_, used, err := q.store.Usage()
	if err != nil {
		return 0, err
	}
	free := q.store.capacity - used
	if free <= 0 {
		return 0, ErrNoSpace
	}
	if int64(len(p)) > free {
		n, err := q.File.Write(p[:free])
		if err != nil {
			return n, err
		}
		return n, ErrNoSpace
	}
	return q.File.Write(p)
}
