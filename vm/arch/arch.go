// Package arch defines the capability set an MMU and page-table driver
// need from a concrete architecture: page geometry, index extraction, and
// address normalization. The MMU and TLB never hang code off a concrete
// architecture; they only depend on this interface, so a second walker —
// a shorter-levelled x86-like design, say — can be plugged in without
// touching either.
package arch

// NumLevels is fixed at four for every architecture this package
// describes: an L0 root down to an L3 leaf level. Block/huge-page leaves
// at intermediate levels are out of scope, so every architecture variant
// walks the same depth; only the widths per level and the page size vary.
const NumLevels = 4

// Params is the compile-time-constant capability set of one architecture
// variant. Implementations must be stateless and safe for concurrent
// reads, though the simulator itself never calls them concurrently.
type Params interface {
	// Name identifies the architecture variant, e.g. "aarch64-16k".
	Name() string

	// PageBits is log2(PageSize).
	PageBits() uint

	// PageSize is the size, and required alignment, of a page and of every
	// table in the hierarchy.
	PageSize() uint64

	// AddressSpaceBits is the number of low bits of a virtual address that
	// are significant; Normalize masks off everything above this width.
	AddressSpaceBits() uint

	// LevelWidth returns the number of index bits consumed at the given
	// level (0 == root). The entry count of a table at that level is
	// 1<<LevelWidth(level).
	LevelWidth(level int) uint

	// PPNBits is the width, in bits, of the physical page number field
	// stored in a table entry.
	PPNBits() uint

	// Normalize masks a virtual address down to AddressSpaceBits.
	Normalize(addr uint64) uint64

	// Indices splits a virtual page number into per-level indices,
	// L0 first.
	Indices(vPage uint64) [NumLevels]int
}

// LevelSize returns the number of entries a table at the given level holds
// under the given Params.
func LevelSize(p Params, level int) int {
	return 1 << p.LevelWidth(level)
}
