package trace

import "github.com/sarchlab/vmemsim/vm"

// Record is one logged memory access, carrying both the virtual access and
// the physical address the MMU resolved it to.
type Record struct {
	PID    vm.PID
	Access vm.MemAccess
	PAddr  uint64
}

// Sink is the diagnostics sink backing the `logMemoryAccesses`
// configuration knob. Implementations must not block the simulator's
// synchronous call stack: buffering and periodic flush, not per-record
// I/O, is the expected shape.
type Sink interface {
	Write(record Record)
	Flush()
	Close()
}

// NopSink discards every record. It is the default when logMemoryAccesses
// is disabled.
type NopSink struct{}

// Write implements Sink.
func (NopSink) Write(Record) {}

// Flush implements Sink.
func (NopSink) Flush() {}

// Close implements Sink.
func (NopSink) Close() {}
