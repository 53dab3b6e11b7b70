// Package fault provides the default page-fault handler: obtain a frame
// from the allocator, install it in the driver, and return. The MMU treats
// a handler that never installs a mapping as a fatal, non-terminating loop
// by contract; this handler only fails loudly, modeling a simulation
// terminated externally on frame exhaustion.
package fault

import (
	"fmt"
	"log"

	"github.com/sarchlab/vmemsim/vm"
)

// FrameAllocator is the narrow allocation seam the handler depends on. It
// is satisfied by mem/pfa.Allocator.
type FrameAllocator interface {
	Allocate(count uint64) (addr uint64, ok bool)
	Release(addr, count uint64)
	PageSize() uint64
}

// Driver is the narrow mapping seam the handler depends on. It is
// satisfied by vm/pagetable.Driver.
type Driver interface {
	SetMapping(pid vm.PID, vAddr uint64, pPage *vm.PhysPage)
}

// Handler resolves page faults for one process by demand-allocating a
// single frame per fault and mapping it at the faulting address.
type Handler struct {
	pid       vm.PID
	allocator FrameAllocator
	driver    Driver
	logger    *log.Logger

	nFaultsServed uint64

	// frames records every data frame this handler has demand-allocated
	// for its PID, so ReleaseAll can return them at process termination —
	// mirroring OSKernel::terminateProcess in the reference source, which
	// walks processPages[processID] and releases each frame in turn. The
	// page-table driver never does this itself: releasePageTable only
	// reclaims table-tree nodes, not the leaf data frames they point to.
	frames []uint64
}

// NewHandler returns a Handler bound to pid, allocator and driver. logger
// receives one line per fault serviced; a nil logger disables that.
func NewHandler(pid vm.PID, allocator FrameAllocator, driver Driver, logger *log.Logger) *Handler {
	return &Handler{pid: pid, allocator: allocator, driver: driver, logger: logger}
}

// NFaultsServed returns the number of faults this handler has resolved.
func (h *Handler) NFaultsServed() uint64 {
	return h.nFaultsServed
}

// Handle implements mmu.PageFaultHandler: it obtains a frame, installs the
// mapping, and returns; the MMU is responsible for retrying translation.
// This handler panics on frame exhaustion rather than returning without
// progress, since a silent no-op here would turn the MMU's retry loop into
// a genuine infinite loop.
func (h *Handler) Handle(vAddr uint64) {
	addr, ok := h.allocator.Allocate(1)
	if !ok {
		panic(fmt.Sprintf("fault: PID %d exhausted the frame allocator servicing a fault at 0x%x", h.pid, vAddr))
	}

	pPage := &vm.PhysPage{PhysAddr: addr}
	h.driver.SetMapping(h.pid, vAddr, pPage)
	h.frames = append(h.frames, addr)

	h.nFaultsServed++
	if h.logger != nil {
		h.logger.Printf("fault: PID %d vAddr=0x%x -> frame 0x%x (fault #%d)", h.pid, vAddr, addr, h.nFaultsServed)
	}
}

// ReleaseAll returns every data frame this handler has demand-allocated
// back to the frame allocator, and forgets them. Callers must invoke this
// on process termination, before or after releasing the page-table tree
// itself — the two teardowns are independent since the driver never
// touches leaf data frames.
func (h *Handler) ReleaseAll() {
	for _, addr := range h.frames {
		h.allocator.Release(addr, 1)
	}
	h.frames = nil
}
