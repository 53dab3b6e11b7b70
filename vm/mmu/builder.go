package mmu

import (
	"log"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/vmemsim/vm/arch"
)

// Builder constructs an MMU Comp.
type Builder struct {
	params           arch.Params
	walker           Walker
	tlb              TLB
	logger           *log.Logger
	pageFaultHandler PageFaultHandler
	reportOnExit     bool
}

// MakeBuilder returns a Builder defaulted to the AArch64 16 KiB reference
// architecture, the standard logger, and reporting registered at process
// exit.
func MakeBuilder() Builder {
	return Builder{
		params:       arch.AArch64_16K,
		logger:       log.Default(),
		reportOnExit: true,
	}
}

// WithParams sets the architecture variant.
func (b Builder) WithParams(params arch.Params) Builder {
	b.params = params
	return b
}

// WithWalker sets the architecture walker, normally a *pagetable.Driver.
func (b Builder) WithWalker(walker Walker) Builder {
	b.walker = walker
	return b
}

// WithTLB attaches a translation cache.
func (b Builder) WithTLB(t TLB) Builder {
	b.tlb = t
	return b
}

// WithPageFaultHandler installs the page-fault callback.
func (b Builder) WithPageFaultHandler(fn PageFaultHandler) Builder {
	b.pageFaultHandler = fn
	return b
}

// WithLogger overrides the diagnostics logger.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithReportOnExit controls whether Report is registered to run at process
// exit (default true). Tests that construct many short-lived Comps should
// disable this to avoid piling up atexit handlers.
func (b Builder) WithReportOnExit(enabled bool) Builder {
	b.reportOnExit = enabled
	return b
}

// Build returns a new Comp.
func (b Builder) Build() *Comp {
	if b.walker == nil {
		panic("mmu: builder requires WithWalker")
	}

	c := &Comp{
		params:           b.params,
		walker:           b.walker,
		tlb:              b.tlb,
		logger:           b.logger,
		pageFaultHandler: b.pageFaultHandler,
	}

	if b.reportOnExit {
		atexit.Register(c.Report)
	}

	return c
}
