package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/trickle/internal/engine"
	"github.com/tanq16/trickle/internal/output"
	"github.com/tanq16/trickle/internal/perf"
	"github.com/tanq16/trickle/internal/scheduler"
	"github.com/tanq16/trickle/internal/utils"
)

func newBatchCmd() *cobra.Command {
	var workers int
	var engineName string

	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE] [OPTIONS]",
		Short: "Process multiple downloads from a YAML file",
		Long: `Process a YAML list of downloads. Each entry has a link and an
optional output path (op) and engine.

  - link: https://ota.example.com/fw.bin
  - op: models/kws.bin
    link: s3://fleet/models/kws.bin
    engine: resume`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := utils.ReadDownloadList(args[0])
			if err != nil {
				output.PrintError("Failed to read download list: " + err.Error())
				os.Exit(1)
			}
			store := storeFor(cfg)
			if err := store.Mount(); err != nil {
				output.PrintError("Cannot mount storage: " + err.Error())
				os.Exit(1)
			}
			factory := func(entry utils.DownloadEntry) (engine.Downloader, func(), error) {
				kind := entry.Engine
				if kind == "" {
					kind = engineName
				}
				return buildDownloader(cfg, kind, store, perf.NewMonitor(perf.WithTarget(cfg.Monitor.TargetKBps)))
			}
			board := output.NewBoard()
			scheduler.Run(cmd.Context(), entries, workers, factory, board)
			board.Summary(os.Stdout)
			if _, failed := board.Counts(); failed > 0 {
				output.PrintError("Encountered failed operation(s)")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Number of links to download in parallel")
	cmd.Flags().StringVarP(&engineName, "engine", "e", engineStream, "Default engine for entries without one")
	return cmd
}
