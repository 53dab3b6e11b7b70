// Package simulator wires the physical frame allocator, page-table driver,
// TLB, MMU and page-fault handler into a single runnable process, the way
// cmd/vmem's `run` subcommand needs. This is purely assembly; none of the
// core translation components depend on it.
package simulator

import (
	"log"

	"github.com/sarchlab/vmemsim/config"
	"github.com/sarchlab/vmemsim/fault"
	"github.com/sarchlab/vmemsim/mem/kernel"
	"github.com/sarchlab/vmemsim/mem/pfa"
	"github.com/sarchlab/vmemsim/trace"
	"github.com/sarchlab/vmemsim/vm"
	"github.com/sarchlab/vmemsim/vm/arch"
	"github.com/sarchlab/vmemsim/vm/mmu"
	"github.com/sarchlab/vmemsim/vm/pagetable"
	"github.com/sarchlab/vmemsim/vm/tlb"
)

// arenaBase keeps every allocated frame and table address well clear of
// 0x0, the sentinel the MMU and page-table driver both treat as "no
// mapping" (SetPageTablePointer(0) is rejected as NULL, GetPageTable
// returns 0 for "no table"). A virgin single-hole allocator based at 0
// would hand its very first allocation back address 0, colliding with
// that sentinel on the first page table ever created.
const arenaBase = 16 * 1024 * 1024 * 1024 // 16 GiB

// Simulator owns one simulated process's page table and the shared
// allocator/MMU stack driving translations against it.
type Simulator struct {
	cfg    config.Config
	logger *log.Logger

	allocator *pfa.Allocator
	driver    *pagetable.Driver
	mmu       *mmu.Comp
	handler   *fault.Handler
	sink      trace.Sink

	pid vm.PID
}

// New builds a Simulator for a single PID from cfg. logger receives the
// MMU's shutdown report and the driver's leak diagnostics; a nil logger
// falls back to log.Default().
func New(cfg config.Config, pid vm.PID, logger *log.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	params := arch.AArch64_16K

	allocator := pfa.NewAllocator(arenaBase, cfg.ArenaPageSize, cfg.ArenaBytes)
	k := kernel.New(allocator)

	driver := pagetable.MakeBuilder().
		WithParams(params).
		WithKernel(k).
		WithLogger(logger).
		Build()
	driver.AllocatePageTable(pid)

	t := tlb.MakeBuilder().WithCapacity(cfg.TLBEntries).Build()

	var sink trace.Sink = trace.NopSink{}
	if cfg.LogMemoryAccesses {
		sink = trace.NewCSVSink(cfg.TracePath)
	}

	handler := fault.NewHandler(pid, allocator, driver, logger)

	m := mmu.MakeBuilder().
		WithParams(params).
		WithWalker(driver).
		WithTLB(t).
		WithLogger(logger).
		WithPageFaultHandler(handler.Handle).
		Build()
	m.SetPageTablePointer(driver.GetPageTable(pid))
	m.SetCurrentASID(uint32(pid))

	return &Simulator{
		cfg:       cfg,
		logger:    logger,
		allocator: allocator,
		driver:    driver,
		mmu:       m,
		handler:   handler,
		sink:      sink,
		pid:       pid,
	}, nil
}

// Run translates every access in trace, in order, logging each resolved
// physical address through the configured sink.
func (s *Simulator) Run(accesses []vm.MemAccess) {
	for _, access := range accesses {
		pAddr := s.mmu.ProcessAccess(access)
		s.sink.Write(trace.Record{PID: s.pid, Access: access, PAddr: pAddr})
	}
}

// Report emits the MMU's translation report and flushes the trace sink.
func (s *Simulator) Report() {
	s.mmu.Report()
	s.sink.Close()
}

// Teardown releases the simulated process's data frames and then its page
// table, mirroring OSKernel::terminateProcess in the original reference:
// frames demand-allocated for the process are returned to the allocator
// before the table tree that mapped them is torn down.
func (s *Simulator) Teardown() {
	s.handler.ReleaseAll()
	s.driver.ReleasePageTable(s.pid)
}

// FaultsServed returns the number of page faults resolved during Run.
func (s *Simulator) FaultsServed() uint64 {
	return s.handler.NFaultsServed()
}
