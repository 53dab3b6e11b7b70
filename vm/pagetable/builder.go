package pagetable

import (
	"log"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/vmemsim/vm"
	"github.com/sarchlab/vmemsim/vm/arch"
)

// Builder constructs a Driver, following the fluent WithX pattern the
// reference framework uses for every stateful component.
type Builder struct {
	params arch.Params
	kernel HostKernel
	logger *log.Logger
}

// MakeBuilder returns a Builder defaulted to the AArch64 16 KiB reference
// architecture and the standard logger.
func MakeBuilder() Builder {
	return Builder{
		params: arch.AArch64_16K,
		logger: log.Default(),
	}
}

// WithParams sets the architecture variant the driver walks and populates.
func (b Builder) WithParams(params arch.Params) Builder {
	b.params = params
	return b
}

// WithKernel sets the host-kernel allocation seam.
func (b Builder) WithKernel(kernel HostKernel) Builder {
	b.kernel = kernel
	return b
}

// WithLogger overrides the diagnostics logger.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// Build returns a new Driver and registers its leak check to run at
// process exit.
func (b Builder) Build() *Driver {
	if b.kernel == nil {
		panic("pagetable: builder requires WithKernel")
	}

	d := &Driver{
		params:   b.params,
		kernel:   b.kernel,
		logger:   b.logger,
		roots:    make(map[vm.PID]uint64),
		tables:   make(map[uint64]*table),
		pidBytes: make(map[vm.PID]uint64),
	}

	atexit.Register(d.checkLeaks)

	return d
}
