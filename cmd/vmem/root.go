package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command invoked with no subcommand.
var rootCmd = &cobra.Command{
	Use:   "vmem",
	Short: "vmem replays memory-access traces against a simulated virtual-memory subsystem.",
	Long: `vmem drives the AArch64 16 KiB reference MMU/TLB/page-table-driver ` +
		`stack against a trace of memory accesses and reports TLB and ` +
		`page-fault statistics on completion.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
