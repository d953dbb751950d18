package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/trickle/internal/buffers"
	"github.com/tanq16/trickle/internal/output"
)

func newMemoryCmd() *cobra.Command {
	var allocate bool
	var downloadSize, writeSize int

	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Show heap health and the buffer pool the engines would use",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			mgr := buffers.NewManager(heapFor(cfg))
			if allocate || downloadSize > 0 || writeSize > 0 {
				var err error
				if downloadSize > 0 || writeSize > 0 {
					err = mgr.AllocateSized(downloadSize, writeSize)
				} else {
					err = mgr.Allocate()
				}
				if err != nil {
					output.PrintError("Buffer allocation failed: " + err.Error())
				}
				defer mgr.Deallocate()
			}
			output.WriteDiagnostics(os.Stdout, mgr.Diagnostics())
			if !mgr.CheckHealth() {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().BoolVar(&allocate, "allocate", false, "Allocate the smart-sized pool and report it")
	cmd.Flags().IntVar(&downloadSize, "download-size", 0, "Allocate a download buffer of this size instead")
	cmd.Flags().IntVar(&writeSize, "write-size", 0, "Allocate a write buffer of this size instead")
	return cmd
}
