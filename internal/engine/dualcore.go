package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/trickle/internal/buffers"
	"github.com/tanq16/trickle/internal/source"
	"github.com/tanq16/trickle/internal/storage"
	"github.com/tanq16/trickle/internal/tasks"
)

// DualCoreDownloader runs the transfer as a task pinned to its own execution
// unit while the caller waits with a timeout. It always reads in fixed
// ChunkSize pieces and ignores any buffer manager.
type DualCoreDownloader struct {
	deps
	src       source.Source
	store     storage.Store
	cancelled atomic.Bool
}

func NewDualCoreDownloader(src source.Source, store storage.Store, opts ...Option) *DualCoreDownloader {
	return &DualCoreDownloader{deps: newDeps(opts), src: src, store: store}
}

func (d *DualCoreDownloader) Name() string {
	return "dual-core"
}

// Cancel is also triggered by a timeout. It stays set until Reset.
func (d *DualCoreDownloader) Cancel() {
	d.cancelled.Store(true)
}

func (d *DualCoreDownloader) Reset() {
	d.cancelled.Store(false)
}

func (d *DualCoreDownloader) Download(ctx context.Context, url, path string) Result {
	logger := log.With().Str("op", "engine/dualcore").Logger()
	if d.cancelled.Load() || ctx.Err() != nil {
		return failure(StateCancelled, ErrCancelled)
	}
	if err := d.store.Mount(); err != nil {
		return failure(StateFailed, fmt.Errorf("%w: %v", ErrStorage, err))
	}

	sig := tasks.NewSignal()
	defer sig.Destroy()
	taskCtx, stop := context.WithCancel(ctx)
	defer stop()

	// written by the task before it signals, read only after the signal;
	// stays a failure when the task dies before returning
	result := failure(StateFailed, fmt.Errorf("%w: download task aborted", ErrSpawn))
	entry := func() {
		func() {
			defer sig.Give()
			result = d.runTask(taskCtx, url, path)
		}()
		tasks.TerminateSelf()
	}
	h, err := d.spawner.SpawnPinned("download", entry, tasks.Unit(d.cfg.Unit), d.cfg.StackHint, d.cfg.Priority)
	if err != nil {
		logger.Error().Err(err).Int("unit", d.cfg.Unit).Msg("cannot spawn download task")
		return failure(StateFailed, fmt.Errorf("%w: %v", ErrSpawn, err))
	}
	logger.Info().Str("task", h.ID.String()).Int("unit", d.cfg.Unit).Msgf("downloading %s to %s in background", url, path)

	if !sig.Wait(d.cfg.Timeout) {
		d.cancelled.Store(true)
		stop()
		logger.Error().Dur("timeout", d.cfg.Timeout).Msgf("download of %s timed out", url)
		res := failure(StateFailed, fmt.Errorf("%w after %s", ErrTimeout, d.cfg.Timeout))
		res.Duration = d.cfg.Timeout
		return res
	}
	return result
}

func (d *DualCoreDownloader) runTask(ctx context.Context, url, path string) Result {
	logger := log.With().Str("op", "engine/dualcore").Logger()
	scratch, err := buffers.NewScratch(d.alloc, d.cfg.ChunkSize)
	if err != nil {
		logger.Error().Err(err).Int("size", d.cfg.ChunkSize).Msg("chunk buffer allocation failed")
		return failure(StateFailed, fmt.Errorf("%w: %v", ErrBufferAlloc, err))
	}
	defer scratch.Release()
	t := &transfer{
		cfg:       d.cfg,
		src:       d.src,
		store:     d.store,
		monitor:   d.monitor,
		cancelled: &d.cancelled,
		log:       logger,
		buffer:    scratch.Bytes,
	}
	return t.run(ctx, url, path)
}
