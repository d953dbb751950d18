package engine

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/tanq16/trickle/internal/storage"
	"github.com/tanq16/trickle/internal/tasks"
)

// scriptedSource serves payload in fixed chunks after answering Connect
// with the scripted statuses. The last status repeats.
type scriptedSource struct {
	mu        sync.Mutex
	statuses  []int
	payload   []byte
	chunk     int
	length    int64
	stall     bool
	probe     int64
	onRead    func(reads int)
	onConnect func(connects int)
	connects  int
	reads     int
	probes    int
	pos       int
	connected bool
}

func newScriptedSource(payload []byte, chunk int) *scriptedSource {
	return &scriptedSource{
		statuses: []int{http.StatusOK},
		payload:  payload,
		chunk:    chunk,
		length:   int64(len(payload)),
		probe:    int64(len(payload)),
	}
}

func (s *scriptedSource) Connect(_ context.Context, _ string) (int, error) {
	s.mu.Lock()
	s.connects++
	connects := s.connects
	status := s.statuses[min(connects, len(s.statuses))-1]
	if status == http.StatusOK {
		s.connected = true
		s.pos = 0
	}
	hook := s.onConnect
	s.mu.Unlock()
	if hook != nil {
		hook(connects)
	}
	return status, nil
}

func (s *scriptedSource) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *scriptedSource) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stall || !s.connected {
		return 0
	}
	rem := len(s.payload) - s.pos
	if rem <= 0 {
		s.connected = false
		return 0
	}
	return min(s.chunk, rem)
}

func (s *scriptedSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	s.reads++
	reads := s.reads
	n := copy(p, s.payload[s.pos:])
	s.pos += n
	hook := s.onRead
	s.mu.Unlock()
	if hook != nil {
		hook(reads)
	}
	return n, nil
}

func (s *scriptedSource) Length() int64 {
	return s.length
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *scriptedSource) ProbeLength(context.Context, string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++
	return s.probe
}

func (s *scriptedSource) counts() (connects, reads int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects, s.reads
}

// brokenStore fails Mount or Open on request.
type brokenStore struct {
	storage.Store
	mountErr error
	openErr  error
}

func (b *brokenStore) Mount() error {
	if b.mountErr != nil {
		return b.mountErr
	}
	return b.Store.Mount()
}

func (b *brokenStore) Open(path string, mode storage.Mode) (storage.File, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.Store.Open(path, mode)
}

// goSpawner runs tasks on plain goroutines and keeps their done channels.
type goSpawner struct {
	mu   sync.Mutex
	fail bool
	done []chan struct{}
}

func (g *goSpawner) SpawnPinned(name string, fn func(), unit tasks.Unit, stackHint, priority int) (*tasks.Handle, error) {
	if g.fail {
		return nil, errors.New("no free execution unit")
	}
	done := make(chan struct{})
	g.mu.Lock()
	g.done = append(g.done, done)
	g.mu.Unlock()
	go func() {
		defer close(done)
		fn()
	}()
	return &tasks.Handle{ID: uuid.New(), Name: name, Unit: unit, StackHint: stackHint, Priority: priority}, nil
}

func (g *goSpawner) last() chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done[len(g.done)-1]
}
