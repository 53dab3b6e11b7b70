package main

import (
	"fmt"
	"log"
	"os"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/sarchlab/vmemsim/config"
	"github.com/sarchlab/vmemsim/simulator"
	"github.com/sarchlab/vmemsim/trace"
	"github.com/sarchlab/vmemsim/vm"
)

var runCmd = &cobra.Command{
	Use:   "run [trace file]",
	Short: "Replay a memory-access trace against a fresh simulated process.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tlbEntries, _ := cmd.Flags().GetInt("tlb-entries")
		arenaBytes, _ := cmd.Flags().GetUint64("arena-bytes")
		logAccesses, _ := cmd.Flags().GetBool("log-accesses")
		tracePath, _ := cmd.Flags().GetString("trace-out")

		cfg := config.Default()
		cfg.TLBEntries = tlbEntries
		cfg.ArenaBytes = arenaBytes
		cfg.LogMemoryAccesses = logAccesses || tracePath != ""
		cfg.TracePath = tracePath

		accesses, err := trace.LoadFile(args[0])
		if err != nil {
			log.Fatalf("vmem: failed to load trace: %v", err)
		}

		pid := vm.PID(xid.New().Counter())

		sim, err := simulator.New(cfg, pid, log.New(os.Stdout, "", 0))
		if err != nil {
			log.Fatalf("vmem: bad configuration: %v", err)
		}

		sim.Run(accesses)
		sim.Report()
		sim.Teardown()

		fmt.Printf("replayed %d accesses, serviced %d page faults\n", len(accesses), sim.FaultsServed())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("tlb-entries", 64, "TLB capacity in slots")
	runCmd.Flags().Uint64("arena-bytes", 64*1024*1024, "backing arena size in bytes")
	runCmd.Flags().Bool("log-accesses", false, "write a per-access CSV trace alongside the run")
	runCmd.Flags().String("trace-out", "", "path prefix for the access trace CSV (implies --log-accesses)")
}
