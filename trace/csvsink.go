package trace

import (
	"fmt"
	"os"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// CSVSink writes access records to a CSV file, buffering writes and
// flushing at process exit. Grounded on the reference's own
// tracing.CSVTraceWriter: an xid-derived default filename when none is
// given, a buffered slice flushed in batches, and an atexit-registered
// final flush+close.
type CSVSink struct {
	path string
	file *os.File

	records    []Record
	bufferSize int
}

// NewCSVSink returns a CSVSink writing to path+".csv". If path is empty, a
// unique name is generated the first time Write is called.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{
		path:       path,
		bufferSize: 1000,
	}
}

func (s *CSVSink) ensureOpen() {
	if s.file != nil {
		return
	}

	if s.path == "" {
		s.path = "vmem_trace_" + xid.New().String()
	}

	filename := s.path + ".csv"
	file, err := os.Create(filename)
	if err != nil {
		panic(err)
	}
	s.file = file

	fmt.Fprintln(s.file, "PID,Addr,Kind,PAddr")

	atexit.Register(func() {
		s.Flush()
		if err := s.file.Close(); err != nil {
			panic(err)
		}
	})
}

// Write buffers record, flushing automatically once bufferSize records have
// accumulated.
func (s *CSVSink) Write(record Record) {
	s.ensureOpen()

	s.records = append(s.records, record)
	if len(s.records) >= s.bufferSize {
		s.Flush()
	}
}

// Flush writes every buffered record to disk.
func (s *CSVSink) Flush() {
	if s.file == nil {
		return
	}

	for _, r := range s.records {
		fmt.Fprintf(s.file, "%d,0x%x,%s,0x%x\n", r.PID, r.Access.Addr, r.Access.Kind, r.PAddr)
	}
	s.records = nil
}

// Close flushes and closes the underlying file.
func (s *CSVSink) Close() {
	if s.file == nil {
		return
	}

	s.Flush()
	if err := s.file.Close(); err != nil {
		panic(err)
	}
}
