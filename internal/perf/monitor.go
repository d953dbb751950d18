// Package perf tracks transfer throughput: instantaneous, smoothed average
// and peak speed, plus connection and transfer phase timing.
package perf

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	TargetSpeedKBps        = 400.0
	SpeedUpdateInterval    = 500 * time.Millisecond
	ProgressUpdateInterval = 1000 * time.Millisecond
	HistorySize            = 20
)

// Snapshot is the state handed to progress reports.
type Snapshot struct {
	Session      string
	Bytes        int64
	Total        int64
	CurrentKBps  float64
	AverageKBps  float64
	Elapsed      time.Duration
	PercentDone  float64
	HasTotalSize bool
}

type Option func(*Monitor)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithProgressFunc registers a hook called on every progress report.
func WithProgressFunc(fn func(Snapshot)) Option {
	return func(m *Monitor) { m.onProgress = fn }
}

func WithTarget(kbps float64) Option {
	return func(m *Monitor) {
		if kbps > 0 {
			m.target = kbps
		}
	}
}

// Monitor is safe for one writer and concurrent readers.
type Monitor struct {
	mu         sync.Mutex
	now        func() time.Time
	onProgress func(Snapshot)
	target     float64
	log        zerolog.Logger

	session         string
	startTime       time.Time
	lastUpdate      time.Time
	lastSpeedUpdate time.Time
	totalBytes      int64
	expectedBytes   int64
	lastByteCount   int64
	currentSpeed    float64
	averageSpeed    float64
	history         [HistorySize]float64
	historyIndex    int
	active          bool

	connStart     time.Time
	connStarted   bool
	transferStart time.Time
	firstByte     bool
	timing        Timing
}

func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		now:    time.Now,
		target: TargetSpeedKBps,
		log:    log.With().Str("op", "perf/monitor").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start resets all counters and marks the monitor active.
func (m *Monitor) Start() {
	m.mu.Lock()
	m.reset()
	m.session = uuid.NewString()
	m.startTime = m.now()
	m.lastUpdate = m.startTime
	m.lastSpeedUpdate = m.startTime
	m.active = true
	session := m.session
	m.mu.Unlock()
	m.log.Debug().Str("session", session).Msg("performance monitoring started")
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	wasActive := m.active
	m.active = false
	m.mu.Unlock()
	if wasActive {
		m.log.Debug().Msg("performance monitoring stopped")
	}
}

func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Monitor) reset() {
	m.startTime = time.Time{}
	m.lastUpdate = time.Time{}
	m.lastSpeedUpdate = time.Time{}
	m.totalBytes = 0
	m.expectedBytes = 0
	m.lastByteCount = 0
	m.currentSpeed = 0
	m.averageSpeed = 0
	m.history = [HistorySize]float64{}
	m.historyIndex = 0
	m.connStart = time.Time{}
	m.connStarted = false
	m.transferStart = time.Time{}
	m.firstByte = false
	m.timing = Timing{}
}

func (m *Monitor) StartConnectionTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connStart = m.now()
	m.connStarted = true
	m.firstByte = false
}

// MarkFirstByte records connection setup latency and starts the pure
// transfer timer. Only the first call after StartConnectionTimer counts.
func (m *Monitor) MarkFirstByte() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connStarted || m.firstByte {
		return
	}
	now := m.now()
	m.transferStart = now
	m.firstByte = true
	m.timing.ConnectionSetup = now.Sub(m.connStart)
	m.timing.FirstByte = now.Sub(m.connStart)
}

// Finalize computes total and pure transfer durations. Fields stay readable.
func (m *Monitor) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	switch {
	case m.connStarted:
		m.timing.Total = now.Sub(m.connStart)
	case !m.startTime.IsZero():
		m.timing.Total = now.Sub(m.startTime)
	}
	if m.firstByte {
		m.timing.TransferOnly = now.Sub(m.transferStart)
	}
}

// RecordProgress feeds the cumulative byte count.
func (m *Monitor) RecordProgress(bytes int64) {
	m.RecordProgressOf(bytes, 0)
}

// RecordProgressOf feeds the cumulative byte count together with the expected
// total, which only affects reports.
func (m *Monitor) RecordProgressOf(bytes, total int64) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.totalBytes = bytes
	if total > 0 {
		m.expectedBytes = total
	}
	now := m.now()
	if now.Sub(m.lastSpeedUpdate) >= SpeedUpdateInterval {
		m.sampleSpeed(bytes, now)
		m.lastSpeedUpdate = now
	}
	report := false
	if now.Sub(m.lastUpdate) >= ProgressUpdateInterval {
		m.lastUpdate = now
		report = true
	}
	var snap Snapshot
	if report {
		snap = m.snapshot(now)
	}
	m.mu.Unlock()

	if report {
		m.report(snap)
	}
}

func (m *Monitor) sampleSpeed(bytes int64, now time.Time) {
	dt := now.Sub(m.lastSpeedUpdate)
	if dt <= 0 {
		return
	}
	delta := bytes - m.lastByteCount
	if bytes < m.lastByteCount {
		// counter was reset, treat the new total as the delta
		delta = bytes
	}
	m.currentSpeed = SpeedKBps(delta, dt)
	m.averageSpeed = m.averageSpeed*0.8 + m.currentSpeed*0.2
	m.lastByteCount = bytes
	m.history[m.historyIndex%HistorySize] = m.currentSpeed
	m.historyIndex++
}

func (m *Monitor) snapshot(now time.Time) Snapshot {
	s := Snapshot{
		Session:     m.session,
		Bytes:       m.totalBytes,
		Total:       m.expectedBytes,
		CurrentKBps: m.currentSpeed,
		AverageKBps: m.averageSpeed,
	}
	if !m.startTime.IsZero() {
		s.Elapsed = now.Sub(m.startTime)
	}
	if m.expectedBytes > 0 {
		s.HasTotalSize = true
		s.PercentDone = float64(m.totalBytes) * 100 / float64(m.expectedBytes)
	}
	return s
}

func (m *Monitor) report(s Snapshot) {
	ev := m.log.Info().
		Str("downloaded", FormatBytes(s.Bytes)).
		Str("current", FormatSpeed(s.CurrentKBps)).
		Str("avg", FormatSpeed(s.AverageKBps))
	if s.HasTotalSize {
		ev = ev.Str("progress", fmtPercent(s.PercentDone)).Str("total", FormatBytes(s.Total))
	}
	ev.Msg("progress")
	if m.onProgress != nil {
		m.onProgress(s)
	}
}

// Snapshot returns the current state without reporting it.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(m.now())
}

func (m *Monitor) CurrentSpeed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentSpeed
}

func (m *Monitor) AverageSpeed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.averageSpeed
}

// PeakSpeed is the largest sample still held in the history ring.
func (m *Monitor) PeakSpeed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak()
}

func (m *Monitor) peak() float64 {
	peak := 0.0
	for _, v := range m.history {
		peak = max(peak, v)
	}
	return peak
}

func (m *Monitor) TargetAchieved() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak() >= m.target
}

func (m *Monitor) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startTime.IsZero() {
		return 0
	}
	return m.now().Sub(m.startTime)
}

func (m *Monitor) Timing() Timing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timing
}

// History returns the speed ring in slot order.
func (m *Monitor) History() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, HistorySize)
	copy(out, m.history[:])
	return out
}

// Summary logs the enhanced results for a finished transfer.
func (m *Monitor) Summary(totalBytes int64) {
	m.mu.Lock()
	avg, peak, timing, target := m.averageSpeed, m.peak(), m.timing, m.target
	m.mu.Unlock()
	m.log.Info().
		Int64("bytes", totalBytes).
		Str("avg", FormatSpeed(avg)).
		Str("peak", FormatSpeed(peak)).
		Str("pure", FormatSpeed(timing.PureTransferSpeedKBps(totalBytes))).
		Str("rating", Rating(avg, target)).
		Str("setup", FormatTime(timing.ConnectionSetup)).
		Str("transfer", FormatTime(timing.TransferOnly)).
		Str("total", FormatTime(timing.Total)).
		Msg("performance summary")
}
