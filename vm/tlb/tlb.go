// Package tlb implements a bounded, ASID-tagged translation cache: LRU
// replacement over a flat slot array, with hit/miss/eviction/flush
// accounting. One Comp belongs to exactly one MMU — there is no
// process-global TLB state anywhere in this package.
package tlb

import "container/list"

// key identifies a cached translation: an ASID paired with a virtual page
// number. No two valid slots may share a key.
type key struct {
	asid  uint32
	vPage uint64
}

type slot struct {
	key   key
	pPage uint64
	valid bool
}

// Stats is a point-in-time snapshot of the TLB's counters.
type Stats struct {
	NLookups       uint64
	NHits          uint64
	NEvictions     uint64
	NFlushes       uint64
	NFlushEvictions uint64
}

// Comp is a set-unordered TLB with strict LRU replacement.
//
// The LRU order is a doubly linked list of slot indices, with a map from
// key to *list.Element for O(1) promotion — the same combination
// mem/vm/pagetable.go uses (list.List + map) to back a process's page
// entries, generalized here from insertion order to recency order.
type Comp struct {
	capacity int
	slots    []slot

	order *list.List
	elems map[key]*list.Element
	free  []int

	currentASID uint32

	stats Stats
}

// New creates a TLB with the given number of slots. Capacity must be at
// least 1.
func New(capacity int) *Comp {
	if capacity < 1 {
		panic("tlb: capacity must be at least 1")
	}

	c := &Comp{
		capacity: capacity,
		slots:    make([]slot, capacity),
		order:    list.New(),
		elems:    make(map[key]*list.Element),
	}

	c.free = make([]int, capacity)
	for i := range c.free {
		c.free[i] = capacity - 1 - i
	}

	return c
}

// SetASID sets the ASID under which subsequent Lookup/Insert calls
// operate. The hosting MMU is responsible for keeping this in sync with
// whatever address space is currently active.
func (c *Comp) SetASID(asid uint32) {
	c.currentASID = asid
}

// Lookup searches for a valid translation of vPage tagged with the
// current ASID. A hit promotes the slot to most-recently-used.
func (c *Comp) Lookup(vPage uint64) (pPage uint64, hit bool) {
	c.stats.NLookups++

	k := key{asid: c.currentASID, vPage: vPage}
	elem, ok := c.elems[k]
	if !ok {
		return 0, false
	}

	idx := elem.Value.(int)
	c.stats.NHits++
	c.order.MoveToFront(elem)

	return c.slots[idx].pPage, true
}

// Insert installs (vPage, pPage) under the current ASID, replacing any
// existing entry for the same (vPage, ASID) in place. If no free slot
// remains, the LRU slot is evicted.
func (c *Comp) Insert(vPage, pPage uint64) {
	k := key{asid: c.currentASID, vPage: vPage}

	if elem, ok := c.elems[k]; ok {
		idx := elem.Value.(int)
		c.slots[idx].pPage = pPage
		c.order.MoveToFront(elem)
		return
	}

	var idx int
	if n := len(c.free); n > 0 {
		idx = c.free[n-1]
		c.free = c.free[:n-1]
	} else {
		idx = c.evictLRU()
	}

	c.slots[idx] = slot{key: k, pPage: pPage, valid: true}
	c.elems[k] = c.order.PushFront(idx)
}

// evictLRU removes the least-recently-used slot and returns its index for
// reuse. It must only be called when no free slot exists.
func (c *Comp) evictLRU() int {
	back := c.order.Back()
	if back == nil {
		panic("tlb: no slot to evict but the free list is also empty")
	}

	idx := back.Value.(int)
	oldKey := c.slots[idx].key

	c.order.Remove(back)
	delete(c.elems, oldKey)
	c.slots[idx] = slot{}

	c.stats.NEvictions++

	return idx
}

// Flush invalidates every slot regardless of ASID, modeling a
// context-switch flush with no ASID tagging available.
func (c *Comp) Flush() {
	purged := c.order.Len()

	c.order.Init()
	c.elems = make(map[key]*list.Element)
	c.free = c.free[:0]
	for i := 0; i < c.capacity; i++ {
		c.slots[i] = slot{}
		c.free = append(c.free, i)
	}

	c.stats.NFlushes++
	c.stats.NFlushEvictions += uint64(purged)
}

// FlushASID invalidates only the slots tagged with asid; other ASIDs'
// entries are left intact.
func (c *Comp) FlushASID(asid uint32) {
	purged := 0

	for e := c.order.Front(); e != nil; {
		next := e.Next()
		idx := e.Value.(int)

		if c.slots[idx].key.asid == asid {
			c.order.Remove(e)
			delete(c.elems, c.slots[idx].key)
			c.slots[idx] = slot{}
			c.free = append(c.free, idx)
			purged++
		}

		e = next
	}

	c.stats.NFlushes++
	c.stats.NFlushEvictions += uint64(purged)
}

// ClearStats resets every counter without disturbing cached entries.
func (c *Comp) ClearStats() {
	c.stats = Stats{}
}

// Stats returns a snapshot of the current counters.
func (c *Comp) Stats() Stats {
	return c.stats
}
