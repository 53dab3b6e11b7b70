// Package pfa implements the physical frame allocator: a first-fit hole
// list over a fixed-size backing arena.
package pfa

import "sort"

// MaxArenaBytes is a circuit breaker: arenas larger than this are rejected
// at construction rather than silently accepted.
const MaxArenaBytes = 2 << 30 // 2 GiB

// hole is a contiguous run of free frames, addressed by page index within
// the arena (not by byte address).
type hole struct {
	startPage uint64
	count     uint64
}

// Allocator hands out and reclaims page-aligned frame runs from a single
// arena. It is not safe for concurrent use — the simulator's execution
// model is single-threaded throughout.
type Allocator struct {
	arenaBase uint64
	pageSize  uint64
	nPages    uint64

	// holes is deliberately not always kept address-sorted: Allocate
	// removes the hole it splits and appends the leftover remainder to the
	// tail — first-fit, not best-fit, and the remainder is not the next
	// candidate a subsequent equal-size request will find. Release
	// re-sorts and coalesces, so holes is sorted and adjacency-free
	// immediately after every Release.
	holes []hole

	nAllocated   uint64
	maxAllocated uint64
}

// NewAllocator creates an allocator over an arena of the given size,
// starting as one single hole spanning the whole arena.
func NewAllocator(arenaBase, pageSize, arenaBytes uint64) *Allocator {
	if arenaBytes > MaxArenaBytes {
		panic("pfa: arena size exceeds the 2 GiB circuit breaker")
	}

	if pageSize == 0 || arenaBytes%pageSize != 0 {
		panic("pfa: arena size must be a whole multiple of the page size")
	}

	nPages := arenaBytes / pageSize

	return &Allocator{
		arenaBase: arenaBase,
		pageSize:  pageSize,
		nPages:    nPages,
		holes:     []hole{{startPage: 0, count: nPages}},
	}
}

// NPages returns the total number of page-sized frames in the arena.
func (a *Allocator) NPages() uint64 { return a.nPages }

// PageSize returns the arena's page size.
func (a *Allocator) PageSize() uint64 { return a.pageSize }

// NAllocated returns the number of frames currently allocated.
func (a *Allocator) NAllocated() uint64 { return a.nAllocated }

// MaxAllocated returns the high-water mark of NAllocated.
func (a *Allocator) MaxAllocated() uint64 { return a.maxAllocated }

// AllReleased reports whether every frame has been returned.
func (a *Allocator) AllReleased() bool { return a.nAllocated == 0 }

// Allocate finds the first hole (in list order — see the holes field
// comment) with at least count pages, carves the low count pages off it,
// and returns the byte address of the run. It returns ok=false, never a
// panic, if no hole fits or the request would over-commit the arena.
func (a *Allocator) Allocate(count uint64) (addr uint64, ok bool) {
	if count == 0 {
		return 0, false
	}

	if a.nAllocated+count > a.nPages {
		return 0, false
	}

	for i, h := range a.holes {
		if h.count < count {
			continue
		}

		addr = a.arenaBase + h.startPage*a.pageSize

		remainder := hole{startPage: h.startPage + count, count: h.count - count}

		a.holes = append(a.holes[:i], a.holes[i+1:]...)
		if remainder.count > 0 {
			a.holes = append(a.holes, remainder)
		}

		a.nAllocated += count
		if a.nAllocated > a.maxAllocated {
			a.maxAllocated = a.nAllocated
		}

		return addr, true
	}

	return 0, false
}

// Release returns count pages starting at addr to the hole list, then
// coalesces the list into sorted, adjacency-free form.
func (a *Allocator) Release(addr, count uint64) {
	if count == 0 {
		return
	}

	startPage := (addr - a.arenaBase) / a.pageSize

	a.holes = append(a.holes, hole{startPage: startPage, count: count})
	a.nAllocated -= count

	a.coalesce()
}

// coalesce sorts the hole list by start page and merges adjacent runs.
func (a *Allocator) coalesce() {
	sort.Slice(a.holes, func(i, j int) bool {
		return a.holes[i].startPage < a.holes[j].startPage
	})

	merged := a.holes[:0]
	for _, h := range a.holes {
		if n := len(merged); n > 0 && merged[n-1].startPage+merged[n-1].count == h.startPage {
			merged[n-1].count += h.count
			continue
		}
		merged = append(merged, h)
	}

	a.holes = merged
}

// HoleCount returns the number of distinct holes currently tracked. It
// exists to let tests assert on fragmentation without reaching into
// unexported state.
func (a *Allocator) HoleCount() int { return len(a.holes) }
