package pagetable_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmemsim/mem/kernel"
	"github.com/sarchlab/vmemsim/mem/pfa"
	"github.com/sarchlab/vmemsim/vm"
	"github.com/sarchlab/vmemsim/vm/pagetable"
)

const pageSize = 16384

func newDriver() (*pagetable.Driver, *pfa.Allocator) {
	a := pfa.NewAllocator(0, pageSize, 4096*pageSize)
	k := kernel.New(a)
	d := pagetable.MakeBuilder().WithKernel(k).Build()
	return d, a
}

var _ = Describe("Driver", func() {
	var (
		driver *pagetable.Driver
		arena  *pfa.Allocator
	)

	BeforeEach(func() {
		driver, arena = newDriver()
	})

	Context("empty walk", func() {
		It("misses on every vPage before any mapping exists", func() {
			driver.AllocatePageTable(1)
			root := driver.GetPageTable(1)

			for _, vPage := range []uint64{0, 1, 0xFFFF} {
				_, ok := driver.Walk(root, vPage, false)
				Expect(ok).To(BeFalse())
			}
		})
	})

	Context("install and translate", func() {
		It("resolves a mapping installed via setMapping", func() {
			driver.AllocatePageTable(1)

			vAddr := uint64(0x12345) << 14
			pPage := &vm.PhysPage{PhysAddr: uint64(0xABCDE) << 14}

			driver.SetMapping(1, vAddr, pPage)

			root := driver.GetPageTable(1)
			ppn, ok := driver.Walk(root, 0x12345, false)
			Expect(ok).To(BeTrue())
			Expect(ppn).To(Equal(uint64(0xABCDE)))
		})

		It("resolves a write access to an installed mapping", func() {
			driver.AllocatePageTable(1)

			vAddr := uint64(0x12345) << 14
			pPage := &vm.PhysPage{PhysAddr: uint64(0xABCDE) << 14}
			driver.SetMapping(1, vAddr, pPage)

			root := driver.GetPageTable(1)
			_, ok := driver.Walk(root, 0x12345, true)
			Expect(ok).To(BeTrue())

			// The driver does not expose leaf entries, so the dirty bit
			// itself is not observed here. SetPageValid re-resolves the
			// leaf and panics if an interior table on its path is missing.
			Expect(func() { driver.SetPageValid(pPage, false) }).NotTo(Panic())
		})
	})

	Context("teardown", func() {
		It("returns every allocated byte for the PID", func() {
			driver.AllocatePageTable(1)

			for i := uint64(0); i < 20; i++ {
				pPage := &vm.PhysPage{PhysAddr: i << 14}
				driver.SetMapping(1, i<<14, pPage)
			}

			Expect(driver.GetBytesAllocated()).To(BeNumerically(">", 0))

			driver.ReleasePageTable(1)

			Expect(driver.GetBytesAllocated()).To(BeZero())
			Expect(arena.AllReleased()).To(BeTrue())
		})

		It("panics when releasing a PID that was never allocated", func() {
			Expect(func() { driver.ReleasePageTable(99) }).To(Panic())
		})
	})

	Context("setPageValid", func() {
		It("refuses to validate a leaf that was never installed", func() {
			driver.AllocatePageTable(1)
			pPage := &vm.PhysPage{}

			Expect(func() { driver.SetPageValid(pPage, true) }).To(Panic())
		})

		It("toggles an installed leaf's valid bit and it is walkable again after re-validating", func() {
			driver.AllocatePageTable(1)

			vAddr := uint64(7) << 14
			pPage := &vm.PhysPage{PhysAddr: uint64(9) << 14}
			driver.SetMapping(1, vAddr, pPage)

			driver.SetPageValid(pPage, false)

			root := driver.GetPageTable(1)
			_, ok := driver.Walk(root, 7, false)
			Expect(ok).To(BeFalse())

			driver.SetPageValid(pPage, true)
			ppn, ok := driver.Walk(root, 7, false)
			Expect(ok).To(BeTrue())
			Expect(ppn).To(Equal(uint64(9)))
		})
	})

	Context("structural violations", func() {
		It("panics on a misaligned root", func() {
			Expect(func() { driver.Walk(1, 0, false) }).To(Panic())
		})
	})

	Context("multiple PIDs", func() {
		It("does not share table nodes across PIDs", func() {
			driver.AllocatePageTable(1)
			driver.AllocatePageTable(2)

			pPage1 := &vm.PhysPage{PhysAddr: uint64(1) << 14}
			pPage2 := &vm.PhysPage{PhysAddr: uint64(2) << 14}
			driver.SetMapping(1, 0, pPage1)
			driver.SetMapping(2, 0, pPage2)

			root1 := driver.GetPageTable(1)
			root2 := driver.GetPageTable(2)
			Expect(root1).NotTo(Equal(root2))

			ppn1, ok := driver.Walk(root1, 0, false)
			Expect(ok).To(BeTrue())
			Expect(ppn1).To(Equal(uint64(1)))

			ppn2, ok := driver.Walk(root2, 0, false)
			Expect(ok).To(BeTrue())
			Expect(ppn2).To(Equal(uint64(2)))

			driver.ReleasePageTable(1)

			// PID 2's tree survives PID 1's teardown.
			ppn2, ok = driver.Walk(root2, 0, false)
			Expect(ok).To(BeTrue())
			Expect(ppn2).To(Equal(uint64(2)))
		})
	})
})
