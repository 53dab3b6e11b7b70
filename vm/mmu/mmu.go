// Package mmu implements the translation orchestrator: TLB-first lookup,
// fallback to an architecture walker, and a page-fault handler retry
// loop, plus the aggregated TLB statistics report emitted when the
// simulation ends.
package mmu

import (
	"fmt"
	"log"

	"github.com/sarchlab/vmemsim/vm"
	"github.com/sarchlab/vmemsim/vm/arch"
	"github.com/sarchlab/vmemsim/vm/tlb"
)

// Walker is the architecture-specific translation the MMU falls back to on
// a TLB miss. vm/pagetable.Driver satisfies this interface.
type Walker interface {
	Walk(root, vPage uint64, isWrite bool) (ppn uint64, ok bool)
}

// TLB is the narrow surface the MMU needs from a translation cache.
// vm/tlb.Comp satisfies this interface.
type TLB interface {
	SetASID(asid uint32)
	Lookup(vPage uint64) (pPage uint64, hit bool)
	Insert(vPage, pPage uint64)
	Flush()
	Stats() tlb.Stats
}

// PageFaultHandler is invoked with the faulting virtual address. It is
// expected to obtain a frame, install a mapping via the driver, and
// return; the MMU retries translation afterward.
type PageFaultHandler func(vAddr uint64)

// Comp is the MMU: it owns no page tables of its own, only a pointer to
// whichever root is currently active and a reference to the components it
// orchestrates.
type Comp struct {
	params arch.Params
	walker Walker
	tlb    TLB
	logger *log.Logger

	root             uint64
	asid             uint32
	pageFaultHandler PageFaultHandler
}

// SetPageFaultHandler installs the callback invoked on a translation
// miss.
func (c *Comp) SetPageFaultHandler(fn PageFaultHandler) {
	c.pageFaultHandler = fn
}

// SetPageTablePointer sets the root of the currently active page-table
// tree. processAccess requires this to be non-zero.
func (c *Comp) SetPageTablePointer(root uint64) {
	c.root = root
}

// SetCurrentASID sets the ASID new TLB entries are tagged with, and under
// which lookups are performed.
func (c *Comp) SetCurrentASID(asid uint32) {
	c.asid = asid
	if c.tlb != nil {
		c.tlb.SetASID(asid)
	}
}

// SetTLB attaches or detaches a TLB. A nil TLB makes every translation
// fall through to the walker.
func (c *Comp) SetTLB(t TLB) {
	c.tlb = t
	if t != nil {
		t.SetASID(c.asid)
	}
}

// FlushTLB flushes the attached TLB, if any.
func (c *Comp) FlushTLB() {
	if c.tlb != nil {
		c.tlb.Flush()
	}
}

// TLBStatistics returns the attached TLB's counters, or a zero value if no
// TLB is attached.
func (c *Comp) TLBStatistics() tlb.Stats {
	if c.tlb == nil {
		return tlb.Stats{}
	}
	return c.tlb.Stats()
}

// ProcessAccess translates access.Addr, driving the page-fault handler
// until the walker succeeds. It never returns without a valid translation:
// a handler that fails to make progress causes this to loop forever by
// contract.
func (c *Comp) ProcessAccess(access vm.MemAccess) uint64 {
	if c.root == 0 {
		panic("mmu: page table pointer is NULL")
	}

	v := c.params.Normalize(access.Addr)
	vPage := v >> c.params.PageBits()
	offset := access.Addr & (c.params.PageSize() - 1)

	for {
		if c.tlb != nil {
			if pPage, hit := c.tlb.Lookup(vPage); hit {
				return (pPage << c.params.PageBits()) | offset
			}
		}

		ppn, ok := c.walker.Walk(c.root, vPage, access.Kind.IsWrite())
		if ok {
			if c.tlb != nil {
				c.tlb.Insert(vPage, ppn)
			}
			return (ppn << c.params.PageBits()) | offset
		}

		if c.pageFaultHandler == nil {
			panic("mmu: translation miss with no page fault handler installed")
		}
		c.pageFaultHandler(access.Addr)
	}
}

// Report writes a six-line translation report to the diagnostics logger.
// It is safe to call with no TLB attached or with zero lookups recorded.
func (c *Comp) Report() {
	stats := c.TLBStatistics()

	hitRate := "n/a"
	if stats.NLookups > 0 {
		hitRate = fmt.Sprintf("%.2f%%", float64(stats.NHits)/float64(stats.NLookups)*100)
	}

	w := c.logger.Writer()
	fmt.Fprintln(w, "mmu translation report:")
	fmt.Fprintf(w, "  lookups:        %d\n", stats.NLookups)
	fmt.Fprintf(w, "  hits:           %d (%s)\n", stats.NHits, hitRate)
	fmt.Fprintf(w, "  evictions:      %d\n", stats.NEvictions)
	fmt.Fprintf(w, "  flushes:        %d\n", stats.NFlushes)
	fmt.Fprintf(w, "  flush evictions: %d\n", stats.NFlushEvictions)
}
