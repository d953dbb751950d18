package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tanq16/trickle/internal/engine"
	"github.com/tanq16/trickle/internal/output"
	"github.com/tanq16/trickle/internal/perf"
	"github.com/tanq16/trickle/internal/storage"
	"github.com/tanq16/trickle/internal/utils"
)

func newFetchCmd() *cobra.Command {
	var outputPath string
	var engineName string
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "fetch [URL] [--output OUTPUT_PATH]",
		Short: "Stream one file from HTTP(S) or S3 into storage",
		Long: `Stream one file into storage using the chosen engine.

Engines:
  stream  read through the managed buffer pool on the calling thread
  resume  skip when the stored copy is already complete, else stream
  dual    run the transfer on a pinned background task with a timeout

Examples:
  trickle fetch https://ota.example.com/fw.bin
  trickle fetch s3://fleet/ota/fw.bin --engine resume -o fw.bin
  trickle fetch https://ota.example.com/fw.bin --heap-budget 300000`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			url := args[0]
			if outputPath == "" {
				outputPath = utils.OutputNameFromURL(url)
			}
			store := storeFor(cfg)
			if err := store.Mount(); err != nil {
				output.PrintError("Cannot mount storage: " + err.Error())
				os.Exit(1)
			}
			if engineName != engineResume && store.Exists(outputPath) {
				outputPath = utils.RenewOutputPath(outputPath, store.Exists)
			}
			res := fetchOne(cmd.Context(), url, outputPath, engineName, store, !noProgress)
			output.WriteResult(os.Stdout, outputPath, res, cfg.Monitor.TargetKBps)
			if !res.Success {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path inside storage (inferred from the URL if not provided)")
	cmd.Flags().StringVarP(&engineName, "engine", "e", engineStream, "Download engine: stream, resume or dual")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

// fetchOne runs a single download. Interrupts cancel it.
func fetchOne(ctx context.Context, url, path, engineName string, store storage.Store, showProgress bool) engine.Result {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	monitorOpts := []perf.Option{perf.WithTarget(cfg.Monitor.TargetKBps)}
	var progress *output.Progress
	var tracker *output.Tracker
	if showProgress {
		progress = output.NewProgress(os.Stderr)
		tracker = progress.Track(path, 0)
		monitorOpts = append(monitorOpts, perf.WithProgressFunc(tracker.Update))
	}
	monitor := perf.NewMonitor(monitorOpts...)

	d, release, err := buildDownloader(cfg, engineName, store, monitor)
	if err != nil {
		if tracker != nil {
			tracker.Finish(false, 0)
			progress.Wait()
		}
		return engine.Result{FileSize: -1, State: engine.StateFailed, Err: err}
	}
	defer release()
	res := d.Download(ctx, url, path)
	if tracker != nil {
		tracker.Finish(res.Success, res.TotalBytes)
		progress.Wait()
	}
	return res
}
