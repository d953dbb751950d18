package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/trickle/internal/output"
	"github.com/tanq16/trickle/internal/storage"
)

func mountedStore() *storage.FS {
	store := storeFor(cfg)
	if err := store.Mount(); err != nil {
		output.PrintError("Cannot mount storage: " + err.Error())
		os.Exit(1)
	}
	return store
}

func newStorageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect and manage the download storage",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "info [DIR]",
		Short: "Show usage and list files",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := mountedStore()
			dir := "/"
			if len(args) == 1 {
				dir = args[0]
			}
			total, used, err := store.Usage()
			if err != nil {
				output.PrintError("Cannot read storage usage: " + err.Error())
				os.Exit(1)
			}
			files, err := store.List(dir)
			if err != nil {
				output.PrintError("Cannot list " + dir + ": " + err.Error())
				os.Exit(1)
			}
			output.WriteStorage(os.Stdout, cfg.Storage.Root, total, used, files)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm [PATH]",
		Short: "Delete a stored file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := mountedStore()
			if !store.Exists(args[0]) {
				output.PrintError(args[0] + " does not exist")
				os.Exit(1)
			}
			if err := store.Remove(args[0]); err != nil {
				output.PrintError("Cannot delete " + args[0] + ": " + err.Error())
				os.Exit(1)
			}
			output.PrintSuccess("Deleted " + args[0])
		},
	})
	var yes bool
	format := &cobra.Command{
		Use:   "format",
		Short: "Remove everything from storage",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if !yes {
				output.PrintWarning(fmt.Sprintf("This removes every file under %s, pass --yes to confirm", cfg.Storage.Root))
				os.Exit(1)
			}
			if err := mountedStore().Format(); err != nil {
				output.PrintError("Format failed: " + err.Error())
				os.Exit(1)
			}
			output.PrintSuccess("Storage formatted")
		},
	}
	format.Flags().BoolVar(&yes, "yes", false, "Confirm formatting")
	cmd.AddCommand(format)
	return cmd
}
