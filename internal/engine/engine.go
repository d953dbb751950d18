// Package engine implements the download strategies: plain streaming, resume
// skip and a variant that runs the transfer on a pinned background task. All
// of them report through Result and never return an error directly.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/tanq16/trickle/internal/buffers"
	"github.com/tanq16/trickle/internal/perf"
	"github.com/tanq16/trickle/internal/tasks"
)

var (
	ErrCancelled   = errors.New("download cancelled")
	ErrTimeout     = errors.New("download timed out")
	ErrTransport   = errors.New("transport failure")
	ErrWrite       = errors.New("write to storage failed")
	ErrStorage     = errors.New("storage unavailable")
	ErrOpenOutput  = errors.New("cannot open output file")
	ErrBufferAlloc = errors.New("buffer allocation failed")
	ErrSpawn       = errors.New("cannot start download task")
	ErrIncomplete  = errors.New("download incomplete")
)

// Downloader is the contract shared by every engine.
type Downloader interface {
	Download(ctx context.Context, url, path string) Result
	Cancel()
	Name() string
}

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result describes a finished download call, successful or not.
type Result struct {
	Success bool
	// FileSize is the advertised size, -1 when the remote did not send one.
	FileSize   int64
	TotalBytes int64
	Duration   time.Duration

	AverageSpeedKBps float64
	PeakSpeedKBps    float64
	TargetAchieved   bool

	Err        error
	StatusCode int

	PureTransferSpeedKBps     float64
	TransferEfficiencyPercent float64
	ConnectionSetup           time.Duration
	TransferOnly              time.Duration

	// Skipped is set when the resume engine found the local copy complete.
	Skipped bool
	State   State
}

func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func failure(state State, err error) Result {
	return Result{FileSize: -1, State: state, Err: err}
}

// Config holds the engine constants. The yaml names are used by the
// configuration file.
type Config struct {
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	IdleDelay  time.Duration `yaml:"idle_delay"`
	BufferSize int           `yaml:"buffer_size"`

	// background task settings
	ChunkSize int           `yaml:"chunk_size"`
	Timeout   time.Duration `yaml:"timeout"`
	Unit      int           `yaml:"unit"`
	StackHint int           `yaml:"stack_hint"`
	Priority  int           `yaml:"priority"`
}

func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		RetryDelay: 300 * time.Millisecond,
		IdleDelay:  5 * time.Millisecond,
		BufferSize: 65536,
		ChunkSize:  8192,
		Timeout:    5 * time.Minute,
		Unit:       1,
		StackHint:  16384,
		Priority:   2,
	}
}

type deps struct {
	cfg     Config
	monitor *perf.Monitor
	manager *buffers.Manager
	alloc   buffers.Allocator
	spawner tasks.Spawner
}

type Option func(*deps)

func WithConfig(cfg Config) Option {
	return func(d *deps) { d.cfg = cfg }
}

func WithMonitor(m *perf.Monitor) Option {
	return func(d *deps) { d.monitor = m }
}

// WithBufferManager makes the engine stream through the manager's download
// buffers when they are allocated.
func WithBufferManager(m *buffers.Manager) Option {
	return func(d *deps) { d.manager = m }
}

// WithAllocator sets where scratch buffers come from.
func WithAllocator(a buffers.Allocator) Option {
	return func(d *deps) { d.alloc = a }
}

func WithSpawner(s tasks.Spawner) Option {
	return func(d *deps) { d.spawner = s }
}

func newDeps(opts []Option) deps {
	d := deps{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&d)
	}
	if d.monitor == nil {
		d.monitor = perf.NewMonitor()
	}
	if d.alloc == nil {
		if d.manager != nil {
			d.alloc = d.manager.Heap()
		} else {
			d.alloc = buffers.NewSystemHeap()
		}
	}
	if d.spawner == nil {
		d.spawner = tasks.NewLauncher()
	}
	return d
}

func (d *deps) Monitor() *perf.Monitor {
	return d.monitor
}

func (d *deps) Config() Config {
	return d.cfg
}
