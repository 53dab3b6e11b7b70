package mmu_test

import (
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/vmemsim/vm"
	"github.com/sarchlab/vmemsim/vm/mmu"
	"github.com/sarchlab/vmemsim/vm/tlb"
)

var _ = Describe("Comp", func() {
	var (
		mockCtrl   *gomock.Controller
		mockWalker *MockWalker
		mockTLB    *MockTLB
		c          *mmu.Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockWalker = NewMockWalker(mockCtrl)
		mockTLB = NewMockTLB(mockCtrl)

		c = mmu.MakeBuilder().
			WithWalker(mockWalker).
			WithTLB(mockTLB).
			WithReportOnExit(false).
			Build()
		c.SetPageTablePointer(0x1000)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("processing an access", func() {
		It("returns straight from the TLB on a hit, never consulting the walker", func() {
			mockTLB.EXPECT().Lookup(uint64(1)).Return(uint64(7), true)

			paddr := c.ProcessAccess(vm.MemAccess{Addr: 0x4008, Kind: vm.Load})
			Expect(paddr).To(Equal(uint64(7)<<14 | 0x8))
		})

		It("falls back to the walker on a TLB miss and populates the TLB", func() {
			mockTLB.EXPECT().Lookup(uint64(1)).Return(uint64(0), false)
			mockWalker.EXPECT().Walk(uint64(0x1000), uint64(1), false).Return(uint64(9), true)
			mockTLB.EXPECT().Insert(uint64(1), uint64(9))

			paddr := c.ProcessAccess(vm.MemAccess{Addr: 0x4008, Kind: vm.Load})
			Expect(paddr).To(Equal(uint64(9)<<14 | 0x8))
		})

		It("drives the page fault handler until the walker succeeds", func() {
			calls := 0
			c.SetPageFaultHandler(func(vAddr uint64) {
				calls++
				Expect(vAddr).To(Equal(uint64(0x4008)))
			})

			gomock.InOrder(
				mockTLB.EXPECT().Lookup(uint64(1)).Return(uint64(0), false),
				mockWalker.EXPECT().Walk(uint64(0x1000), uint64(1), false).Return(uint64(0), false),
				mockTLB.EXPECT().Lookup(uint64(1)).Return(uint64(0), false),
				mockWalker.EXPECT().Walk(uint64(0x1000), uint64(1), false).Return(uint64(3), true),
				mockTLB.EXPECT().Insert(uint64(1), uint64(3)),
			)

			paddr := c.ProcessAccess(vm.MemAccess{Addr: 0x4008, Kind: vm.Load})
			Expect(paddr).To(Equal(uint64(3)<<14 | 0x8))
			Expect(calls).To(Equal(1))
		})

		It("works without any TLB attached, going straight to the walker", func() {
			bare := mmu.MakeBuilder().
				WithWalker(mockWalker).
				WithReportOnExit(false).
				Build()
			bare.SetPageTablePointer(0x2000)

			mockWalker.EXPECT().Walk(uint64(0x2000), uint64(1), true).Return(uint64(5), true)

			paddr := bare.ProcessAccess(vm.MemAccess{Addr: 0x4008, Kind: vm.Store})
			Expect(paddr).To(Equal(uint64(5)<<14 | 0x8))
		})

		It("panics if the page table pointer was never set", func() {
			bare := mmu.MakeBuilder().
				WithWalker(mockWalker).
				WithReportOnExit(false).
				Build()

			Expect(func() {
				bare.ProcessAccess(vm.MemAccess{Addr: 0x4000, Kind: vm.Load})
			}).To(PanicWith("mmu: page table pointer is NULL"))
		})

		It("panics on a miss with no page fault handler installed", func() {
			mockTLB.EXPECT().Lookup(uint64(1)).Return(uint64(0), false)
			mockWalker.EXPECT().Walk(uint64(0x1000), uint64(1), false).Return(uint64(0), false)

			Expect(func() {
				c.ProcessAccess(vm.MemAccess{Addr: 0x4008, Kind: vm.Load})
			}).To(PanicWith("mmu: translation miss with no page fault handler installed"))
		})
	})

	Context("SetCurrentASID and SetTLB", func() {
		It("propagates the ASID to a TLB attached later", func() {
			mockTLB.EXPECT().SetASID(uint32(3))
			c.SetCurrentASID(3)
			other := NewMockTLB(mockCtrl)
			other.EXPECT().SetASID(uint32(3))
			c.SetTLB(other)
		})
	})

	Context("Report", func() {
		It("prints n/a when nothing was ever looked up", func() {
			var buf logBuffer
			bare := mmu.MakeBuilder().
				WithWalker(mockWalker).
				WithReportOnExit(false).
				WithLogger(log.New(&buf, "", 0)).
				Build()

			bare.Report()
			Expect(buf.String()).To(ContainSubstring("hits:           0 (n/a)"))
		})

		It("reports a computed hit rate once lookups have occurred", func() {
			mockTLB.EXPECT().Stats().Return(tlb.Stats{NLookups: 4, NHits: 3})

			var buf logBuffer
			c2 := mmu.MakeBuilder().
				WithWalker(mockWalker).
				WithTLB(mockTLB).
				WithReportOnExit(false).
				WithLogger(log.New(&buf, "", 0)).
				Build()

			c2.Report()
			Expect(buf.String()).To(ContainSubstring("75.00%"))
		})
	})
})

type logBuffer struct {
	data []byte
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *logBuffer) String() string {
	return string(b.data)
}
