// Package kernel implements the host-kernel memory interface consumed by
// the page-table driver: allocateMemory/releaseMemory. It is a thin,
// alignment-enforcing wrapper over a mem/pfa.Allocator — table memory and
// data frames are drawn from the same backing arena, a single
// physical-memory manager shared by both.
package kernel

import "github.com/sarchlab/vmemsim/mem/pfa"

// HostKernel is the interface the page-table driver depends on. It never
// sees a mem/pfa.Allocator directly, only this seam: the driver does not
// itself own the arena, it only owns the table tree as a logical structure
// rooted in allocations it obtained from the kernel.
type HostKernel interface {
	// AllocateMemory returns a zeroable, size-byte region aligned to
	// alignment, or ok=false if the request cannot be satisfied.
	AllocateMemory(size, alignment uint64) (addr uint64, ok bool)

	// ReleaseMemory returns a region previously obtained from
	// AllocateMemory.
	ReleaseMemory(addr, size uint64)
}

// Kernel is the default HostKernel, backed by a physical frame allocator.
type Kernel struct {
	allocator *pfa.Allocator
}

// New wraps an existing allocator as a HostKernel.
func New(allocator *pfa.Allocator) *Kernel {
	return &Kernel{allocator: allocator}
}

// AllocateMemory implements HostKernel. Every allocation this simulator
// makes is exactly one page (table nodes are always page-sized and
// page-aligned), so a request for any other alignment is a caller bug, not
// a runtime condition to recover from.
func (k *Kernel) AllocateMemory(size, alignment uint64) (uint64, bool) {
	pageSize := k.allocator.PageSize()

	if alignment != pageSize {
		panic("kernel: only page-granule allocations are supported")
	}

	pages := (size + pageSize - 1) / pageSize

	return k.allocator.Allocate(pages)
}

// ReleaseMemory implements HostKernel.
func (k *Kernel) ReleaseMemory(addr, size uint64) {
	pageSize := k.allocator.PageSize()
	pages := (size + pageSize - 1) / pageSize

	k.allocator.Release(addr, pages)
}
