// Package scheduler runs a batch of downloads on a fixed number of workers.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/trickle/internal/engine"
	"github.com/tanq16/trickle/internal/output"
	"github.com/tanq16/trickle/internal/utils"
)

// Factory builds the downloader for one entry. release is called once the
// download returns and may be nil.
type Factory func(entry utils.DownloadEntry) (d engine.Downloader, release func(), err error)

type job struct {
	index int
	entry utils.DownloadEntry
}

// Run downloads entries with numWorkers workers and records each outcome on
// board. Results are returned in entry order.
func Run(ctx context.Context, entries []utils.DownloadEntry, numWorkers int, factory Factory, board *output.Board) []engine.Result {
	numWorkers = max(1, min(numWorkers, len(entries)))
	results := make([]engine.Result, len(entries))
	jobCh := make(chan job, len(entries))
	for i, entry := range entries {
		jobCh <- job{index: i, entry: entry}
	}
	close(jobCh)

	var wg sync.WaitGroup
	for i := range numWorkers {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			processJobs(ctx, workerID, jobCh, factory, board, results)
		}(i)
	}
	wg.Wait()
	return results
}

func processJobs(ctx context.Context, workerID int, jobCh <-chan job, factory Factory, board *output.Board, results []engine.Result) {
	for j := range jobCh {
		id := board.Register(j.entry.URL)
		log.Debug().Str("op", "scheduler").Int("worker", workerID).Msgf("processing %s", j.entry.URL)
		d, release, err := factory(j.entry)
		if err != nil {
			board.ReportError(id, fmt.Errorf("cannot prepare download: %w", err))
			results[j.index] = engine.Result{FileSize: -1, State: engine.StateFailed, Err: err}
			continue
		}
		res := d.Download(ctx, j.entry.URL, j.entry.OutputPath)
		if release != nil {
			release()
		}
		results[j.index] = res
		switch {
		case res.Skipped:
			board.Skip(id, output.ResultLine(j.entry.OutputPath, res))
		case res.Success:
			board.Complete(id, output.ResultLine(j.entry.OutputPath, res))
		default:
			err := res.Err
			if res.StatusCode > 0 {
				err = fmt.Errorf("%w (status %d)", res.Err, res.StatusCode)
			}
			board.ReportError(id, err)
		}
	}
}
