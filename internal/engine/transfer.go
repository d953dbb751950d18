package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/tanq16/trickle/internal/perf"
	"github.com/tanq16/trickle/internal/source"
	"github.com/tanq16/trickle/internal/storage"
)

// transfer is one connect-and-stream call shared by all engines.
type transfer struct {
	cfg       Config
	src       source.Source
	store     storage.Store
	monitor   *perf.Monitor
	cancelled *atomic.Bool
	log       zerolog.Logger

	// buffer returns the slice to read the next chunk into. advance is
	// called after every chunk has been written and may be nil.
	buffer  func() []byte
	advance func()
}

func (t *transfer) isCancelled(ctx context.Context) bool {
	return t.cancelled.Load() || ctx.Err() != nil
}

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (t *transfer) run(ctx context.Context, url, path string) Result {
	t.monitor.Start()
	defer t.monitor.Stop()

	res := Result{FileSize: -1, State: StateIdle}
	var lastErr error
	status := source.StatusConnectionFailed
	attempts := t.cfg.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if t.isCancelled(ctx) {
			t.log.Info().Msgf("download of %s cancelled before attempt %d", url, attempt)
			return t.finish(res, StateCancelled, ErrCancelled, 0)
		}
		res.State = StateConnecting
		t.monitor.StartConnectionTimer()
		var err error
		status, err = t.src.Connect(ctx, url)
		res.StatusCode = status
		if status == http.StatusOK {
			break
		}
		t.src.Close()
		lastErr = err
		t.log.Warn().Err(err).Int("status", status).Msgf("attempt %d/%d for %s failed", attempt, attempts, url)
		if attempt < attempts {
			pause(ctx, t.cfg.RetryDelay)
		}
	}
	if t.isCancelled(ctx) {
		t.src.Close()
		t.log.Info().Int("status", status).Msgf("download of %s cancelled while connecting", url)
		return t.finish(res, StateCancelled, ErrCancelled, 0)
	}
	if status != http.StatusOK {
		err := fmt.Errorf("%w: status %d after %d attempts", ErrTransport, status, attempts)
		if lastErr != nil {
			err = fmt.Errorf("%w: status %d after %d attempts: %v", ErrTransport, status, attempts, lastErr)
		}
		t.log.Error().Err(err).Msgf("giving up on %s", url)
		return t.finish(res, StateFailed, err, 0)
	}
	defer t.src.Close()

	expected := t.src.Length()
	res.FileSize = expected
	known := expected >= 0

	file, err := t.store.Open(path, storage.ModeCreate)
	if err != nil {
		return t.finish(res, StateFailed, fmt.Errorf("%w %s: %v", ErrOpenOutput, path, err), 0)
	}
	defer file.Close()

	res.State = StateStreaming
	t.log.Debug().Int64("expected", expected).Msgf("streaming %s to %s", url, path)
	var total int64
	for {
		if t.isCancelled(ctx) {
			t.log.Info().Int64("bytes", total).Msgf("download of %s cancelled", url)
			return t.finish(res, StateCancelled, ErrCancelled, total)
		}
		if known && total >= expected {
			break
		}
		avail := t.src.Available()
		if avail <= 0 {
			if !t.src.Connected() {
				break
			}
			pause(ctx, t.cfg.IdleDelay)
			continue
		}
		buf := t.buffer()
		want := min(len(buf), avail)
		if known {
			want = int(min(int64(want), expected-total))
		}
		n, rerr := t.src.Read(buf[:want])
		if n <= 0 {
			if !t.src.Connected() || (rerr != nil && rerr != io.EOF) {
				break
			}
			continue
		}
		if total == 0 {
			t.monitor.MarkFirstByte()
		}
		written, werr := file.Write(buf[:n])
		total += int64(written)
		if werr == nil && written != n {
			werr = io.ErrShortWrite
		}
		if werr != nil {
			t.log.Error().Err(werr).Int64("bytes", total).Msgf("write to %s failed", path)
			t.monitor.RecordProgressOf(total, expected)
			return t.finish(res, StateFailed, fmt.Errorf("%w: %v", ErrWrite, werr), total)
		}
		if t.advance != nil {
			t.advance()
		}
		t.monitor.RecordProgressOf(total, expected)
	}

	switch {
	case total == 0:
		return t.finish(res, StateFailed, fmt.Errorf("%w: no data received", ErrIncomplete), total)
	case known && total < expected:
		return t.finish(res, StateFailed, fmt.Errorf("%w: %d of %d bytes", ErrIncomplete, total, expected), total)
	}
	if !known {
		res.FileSize = total
	}
	return t.finish(res, StateCompleted, nil, total)
}

// finish fills in the measured fields and logs the outcome.
func (t *transfer) finish(res Result, state State, err error, total int64) Result {
	t.monitor.Finalize()
	timing := t.monitor.Timing()
	res.State = state
	res.Err = err
	res.Success = state == StateCompleted
	res.TotalBytes = total
	res.Duration = t.monitor.Elapsed()
	res.AverageSpeedKBps = t.monitor.AverageSpeed()
	res.PeakSpeedKBps = t.monitor.PeakSpeed()
	res.TargetAchieved = t.monitor.TargetAchieved()
	res.ConnectionSetup = timing.ConnectionSetup
	res.TransferOnly = timing.TransferOnly
	res.PureTransferSpeedKBps = timing.PureTransferSpeedKBps(total)
	res.TransferEfficiencyPercent = timing.EfficiencyPercent()
	if res.Success {
		t.monitor.Summary(total)
		t.log.Info().Int64("bytes", total).Str("avg", perf.FormatSpeed(res.AverageSpeedKBps)).Msg("download completed")
	}
	return res
}
