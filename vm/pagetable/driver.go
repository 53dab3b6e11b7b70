// Package pagetable implements the per-architecture page-table driver: it
// owns the tree of tables for every live PID, installs and tears down
// mappings, and performs the architecture walk on the MMU's behalf.
package pagetable

import (
	"fmt"
	"log"

	"github.com/sarchlab/vmemsim/vm"
	"github.com/sarchlab/vmemsim/vm/arch"
)

// HostKernel is the narrow allocation seam the driver depends on. It is
// satisfied by mem/kernel.Kernel; the driver never imports mem/kernel or
// mem/pfa directly — it does not itself own the arena, only the table
// tree carved out of it.
type HostKernel interface {
	AllocateMemory(size, alignment uint64) (addr uint64, ok bool)
	ReleaseMemory(addr, size uint64)
}

// Driver owns every PID's page-table tree for one architecture variant.
type Driver struct {
	params arch.Params
	kernel HostKernel
	logger *log.Logger

	roots  map[vm.PID]uint64
	tables map[uint64]*table

	bytesAllocated uint64
	pidBytes       map[vm.PID]uint64
}

// GetPageTable returns the root address for pid, or 0 if pid has no table.
func (d *Driver) GetPageTable(pid vm.PID) uint64 {
	return d.roots[pid]
}

// GetBytesAllocated returns the total table-tree bytes currently allocated
// across every live PID.
func (d *Driver) GetBytesAllocated() uint64 {
	return d.bytesAllocated
}

// GetPageSize returns the architecture's page size.
func (d *Driver) GetPageSize() uint64 {
	return d.params.PageSize()
}

// AllocatePageTable creates a zeroed, page-aligned L0 root for pid. pid
// must not already have a table.
func (d *Driver) AllocatePageTable(pid vm.PID) {
	if _, exists := d.roots[pid]; exists {
		panic(fmt.Sprintf("pagetable: PID %d already has a page table", pid))
	}

	addr := d.newTable(pid, 0)
	d.roots[pid] = addr
}

// ReleasePageTable recursively releases every table node reachable from
// pid's root, then the root itself, and removes pid's bookkeeping. Leaf
// data frames are not touched: frame eviction is out of scope here, and
// only table-tree bytes — every byte allocated for the subtree — are the
// driver's to reclaim.
func (d *Driver) ReleasePageTable(pid vm.PID) {
	root, exists := d.roots[pid]
	if !exists {
		panic(fmt.Sprintf("pagetable: PID %d has no page table", pid))
	}

	d.releaseTable(pid, root)
	delete(d.roots, pid)

	if leaked := d.pidBytes[pid]; leaked != 0 {
		panic(fmt.Sprintf("pagetable: PID %d teardown leaked %d bytes", pid, leaked))
	}
	delete(d.pidBytes, pid)
}

func (d *Driver) releaseTable(pid vm.PID, addr uint64) {
	t := d.mustTable(addr)

	if t.level < arch.NumLevels-1 {
		for _, e := range t.entries {
			if e.Valid() && e.IsTable() {
				childAddr := e.PPN() << d.params.PageBits()
				d.releaseTable(pid, childAddr)
			}
		}
	}

	d.kernel.ReleaseMemory(addr, d.params.PageSize())
	delete(d.tables, addr)

	d.bytesAllocated -= d.params.PageSize()
	d.pidBytes[pid] -= d.params.PageSize()
}

// SetMapping installs a leaf mapping for vAddr in pid's tree, allocating
// any missing intermediate tables along the way. pPage.DriverData is set
// to the coordinate needed to resolve this leaf again later.
func (d *Driver) SetMapping(pid vm.PID, vAddr uint64, pPage *vm.PhysPage) {
	root, exists := d.roots[pid]
	if !exists {
		panic(fmt.Sprintf("pagetable: PID %d has no page table", pid))
	}

	norm := d.params.Normalize(vAddr)
	vPage := norm >> d.params.PageBits()
	idx := d.params.Indices(vPage)

	cur := root
	for level := 0; level < arch.NumLevels-1; level++ {
		t := d.mustTable(cur)
		e := t.entries[idx[level]]

		switch {
		case !e.Valid():
			childAddr := d.newTable(pid, level+1)
			t.entries[idx[level]] = newTableEntry(childAddr >> d.params.PageBits())
			cur = childAddr
		case !e.IsTable():
			panic("pagetable: structural violation — expected an interior entry, found a leaf")
		default:
			cur = e.PPN() << d.params.PageBits()
		}
	}

	l3 := d.mustTable(cur)
	dataPPN := pPage.PhysAddr >> d.params.PageBits()
	l3.entries[idx[arch.NumLevels-1]] = newLeafEntry(dataPPN)

	pPage.DriverData = vm.LeafRef{PID: pid, VPage: vPage}
}

// SetPageValid flips the valid bit of a previously-installed leaf entry.
// It must not be used to create a mapping: a page whose DriverData holds
// no LeafRef (one that SetMapping never installed) is rejected. The leaf
// entry itself is not inspected before its valid bit is written.
func (d *Driver) SetPageValid(pPage *vm.PhysPage, setting bool) {
	ref, ok := pPage.DriverData.(vm.LeafRef)
	if !ok {
		panic("pagetable: setPageValid on a page with no installed mapping")
	}

	root, exists := d.roots[ref.PID]
	if !exists {
		panic(fmt.Sprintf("pagetable: PID %d has no page table", ref.PID))
	}

	idx := d.params.Indices(ref.VPage)

	cur := root
	for level := 0; level < arch.NumLevels-1; level++ {
		t := d.mustTable(cur)
		e := t.entries[idx[level]]
		if !e.Valid() || !e.IsTable() {
			panic("pagetable: structural violation while resolving a leaf reference")
		}
		cur = e.PPN() << d.params.PageBits()
	}

	l3 := d.mustTable(cur)
	leafIdx := idx[arch.NumLevels-1]
	e := l3.entries[leafIdx]

	l3.entries[leafIdx] = e.withValid(setting)
}

// Walk descends root's tree to resolve vPage: fatal on a misaligned root
// or a structural violation, a soft miss on an absent mapping,
// referenced/dirty maintenance on success.
func (d *Driver) Walk(root, vPage uint64, isWrite bool) (ppn uint64, ok bool) {
	pageSize := d.params.PageSize()
	if root&(pageSize-1) != 0 {
		panic("pagetable: page table root is misaligned")
	}

	idx := d.params.Indices(vPage)

	cur := root
	for level := 0; level < arch.NumLevels-1; level++ {
		t, present := d.tables[cur]
		if !present {
			return 0, false
		}

		e := t.entries[idx[level]]
		if !e.Valid() {
			return 0, false
		}
		if !e.IsTable() {
			panic("pagetable: structural violation — expected an interior entry, found a leaf")
		}

		cur = e.PPN() << d.params.PageBits()
	}

	l3, present := d.tables[cur]
	if !present {
		return 0, false
	}

	leafIdx := idx[arch.NumLevels-1]
	e := l3.entries[leafIdx]
	if !e.Valid() {
		return 0, false
	}
	if e.IsTable() {
		panic("pagetable: structural violation — L3 slot marked as an interior entry")
	}

	e = e.withReferenced(true)
	if isWrite {
		e = e.withDirty(true)
	}
	l3.entries[leafIdx] = e

	return e.PPN(), true
}

func (d *Driver) newTable(pid vm.PID, level int) uint64 {
	pageSize := d.params.PageSize()

	addr, ok := d.kernel.AllocateMemory(pageSize, pageSize)
	if !ok {
		panic("pagetable: host kernel refused a table allocation")
	}

	d.tables[addr] = &table{
		addr:    addr,
		level:   level,
		entries: make([]Entry, arch.LevelSize(d.params, level)),
	}

	d.bytesAllocated += pageSize
	d.pidBytes[pid] += pageSize

	return addr
}

func (d *Driver) mustTable(addr uint64) *table {
	t, ok := d.tables[addr]
	if !ok {
		panic(fmt.Sprintf("pagetable: no table allocated at address 0x%x", addr))
	}
	return t
}

// checkLeaks is registered at construction time via atexit and reports any
// PID whose page table was never released, the same way a destructor
// observing a non-empty PID map would flag it.
func (d *Driver) checkLeaks() {
	if len(d.roots) == 0 {
		return
	}

	for pid := range d.roots {
		d.logger.Printf("pagetable: leak detected — PID %d was never torn down", pid)
	}
}
