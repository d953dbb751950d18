// Package source provides the network streams the download engines read
// from. A stream is connected once per attempt, drained through Available
// and Read, then closed.
package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
)

const (
	// StatusConnectionFailed is reported when no response was received.
	StatusConnectionFailed = -1
	// LengthUnknown is returned when the remote does not advertise a size.
	LengthUnknown int64 = -1

	readAhead = 64 * 1024
)

var (
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	ErrNotConnected      = errors.New("source not connected")
)

// Source is a network stream. Connect reports the transport status code;
// an error is only returned when no usable status exists or the remote
// refused the request.
type Source interface {
	Connect(ctx context.Context, url string) (int, error)
	Connected() bool
	Available() int
	Read(p []byte) (int, error)
	Length() int64
	Close() error
}

// Prober fetches the remote size without transferring the body.
type Prober interface {
	ProbeLength(ctx context.Context, url string) int64
}

// stream adapts a response body to the Source read contract.
type stream struct {
	mu        sync.Mutex
	body      io.ReadCloser
	rd        *bufio.Reader
	length    int64
	connected bool
	err       error
}

func (s *stream) open(body io.ReadCloser, length int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
	s.rd = bufio.NewReaderSize(body, readAhead)
	s.length = length
	s.connected = true
	s.err = nil
}

func (s *stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Available returns the bytes that can be read without blocking. When the
// read-ahead is empty it waits for the next bytes from the remote.
func (s *stream) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rd == nil {
		return 0
	}
	if n := s.rd.Buffered(); n > 0 || !s.connected {
		return n
	}
	if _, err := s.rd.Peek(1); err != nil {
		s.disconnect(err)
	}
	return s.rd.Buffered()
}

func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rd == nil {
		return 0, ErrNotConnected
	}
	if !s.connected && s.rd.Buffered() == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	n, err := s.rd.Read(p)
	if err != nil {
		s.disconnect(err)
		if n > 0 || errors.Is(err, io.EOF) {
			return n, nil
		}
	}
	return n, err
}

func (s *stream) disconnect(err error) {
	s.connected = false
	if !errors.Is(err, io.EOF) {
		s.err = err
	}
}

// Err returns the error that ended the stream, if it was not a clean end.
func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Length() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rd == nil {
		return LengthUnknown
	}
	return s.length
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	return err
}
