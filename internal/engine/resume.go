package engine

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/trickle/internal/source"
)

// ResumeDownloader skips the transfer when the local file is already at
// least as large as the remote one. Otherwise the whole file is fetched
// again by the stream engine; partial ranges are not requested.
type ResumeDownloader struct {
	base   *StreamDownloader
	prober source.Prober
}

func NewResumeDownloader(base *StreamDownloader, prober source.Prober) *ResumeDownloader {
	return &ResumeDownloader{base: base, prober: prober}
}

func (d *ResumeDownloader) Name() string {
	return "resume"
}

func (d *ResumeDownloader) Cancel() {
	d.base.Cancel()
}

func (d *ResumeDownloader) Reset() {
	d.base.Reset()
}

func (d *ResumeDownloader) Download(ctx context.Context, url, path string) Result {
	if d.base.Cancelled() || ctx.Err() != nil {
		return failure(StateCancelled, ErrCancelled)
	}
	store := d.base.Store()
	if err := store.Mount(); err != nil {
		return failure(StateFailed, fmt.Errorf("%w: %v", ErrStorage, err))
	}
	remote := d.prober.ProbeLength(ctx, url)
	if remote > 0 && store.Exists(path) {
		local, err := store.Size(path)
		if err == nil && local >= remote {
			log.Info().Str("op", "engine/resume").Int64("local", local).Int64("remote", remote).Msgf("%s already complete, skipping", path)
			return Result{
				Success:    true,
				Skipped:    true,
				FileSize:   remote,
				TotalBytes: min(local, remote),
				StatusCode: http.StatusOK,
				State:      StateCompleted,
			}
		}
		log.Debug().Str("op", "engine/resume").Int64("local", local).Int64("remote", remote).Msg("local copy incomplete, downloading again")
	}
	return d.base.Download(ctx, url, path)
}
