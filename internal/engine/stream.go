package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/trickle/internal/buffers"
	"github.com/tanq16/trickle/internal/source"
	"github.com/tanq16/trickle/internal/storage"
)

// StreamDownloader runs the transfer on the calling goroutine. One instance
// handles one download at a time.
type StreamDownloader struct {
	deps
	src       source.Source
	store     storage.Store
	cancelled atomic.Bool
}

func NewStreamDownloader(src source.Source, store storage.Store, opts ...Option) *StreamDownloader {
	return &StreamDownloader{deps: newDeps(opts), src: src, store: store}
}

func (d *StreamDownloader) Name() string {
	return "stream"
}

// Cancel stops the current download and every later one until Reset.
func (d *StreamDownloader) Cancel() {
	d.cancelled.Store(true)
}

func (d *StreamDownloader) Reset() {
	d.cancelled.Store(false)
}

func (d *StreamDownloader) Cancelled() bool {
	return d.cancelled.Load()
}

func (d *StreamDownloader) Store() storage.Store {
	return d.store
}

func (d *StreamDownloader) Download(ctx context.Context, url, path string) Result {
	logger := log.With().Str("op", "engine/stream").Logger()
	logger.Info().Msgf("starting download of %s to %s", url, path)
	if d.cancelled.Load() || ctx.Err() != nil {
		return failure(StateCancelled, ErrCancelled)
	}
	if err := d.store.Mount(); err != nil {
		logger.Error().Err(err).Msg("storage mount failed")
		return failure(StateFailed, fmt.Errorf("%w: %v", ErrStorage, err))
	}

	t := &transfer{
		cfg:       d.cfg,
		src:       d.src,
		store:     d.store,
		monitor:   d.monitor,
		cancelled: &d.cancelled,
		log:       logger,
	}
	if d.manager != nil && d.manager.Allocated() {
		mgr := d.manager
		t.buffer = func() []byte { return mgr.ActiveBuffer(buffers.RoleDownload) }
		if mgr.DoubleBuffering() {
			t.advance = func() { mgr.Swap(buffers.RoleDownload) }
		}
		logger.Debug().Int("size", mgr.BufferSize(buffers.RoleDownload)).Bool("double", mgr.DoubleBuffering()).Msg("using managed buffers")
	} else {
		scratch, err := buffers.NewScratch(d.alloc, d.cfg.BufferSize)
		if err != nil {
			logger.Error().Err(err).Int("size", d.cfg.BufferSize).Msg("scratch buffer allocation failed")
			return failure(StateFailed, fmt.Errorf("%w: %v", ErrBufferAlloc, err))
		}
		defer scratch.Release()
		t.buffer = scratch.Bytes
	}
	return t.run(ctx, url, path)
}
