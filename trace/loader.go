// Package trace implements the memory-access trace loader and the
// diagnostic sinks that back the `logMemoryAccesses` configuration knob.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/vmemsim/vm"
)

// LoadFile reads a line-oriented trace file: one access per line, formatted
// "ADDR KIND" (e.g. "0x12345000 LOAD"). Blank lines and lines starting with
// '#' are ignored.
func LoadFile(path string) ([]vm.MemAccess, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f)
}

// Load parses accesses from r using the same format as LoadFile.
func Load(r io.Reader) ([]vm.MemAccess, error) {
	var accesses []vm.MemAccess

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		access, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("trace: line %d: %w", lineNo, err)
		}
		accesses = append(accesses, access)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return accesses, nil
}

func parseLine(line string) (vm.MemAccess, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return vm.MemAccess{}, fmt.Errorf("expected \"ADDR KIND\", got %q", line)
	}

	addr, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 64)
	if err != nil {
		return vm.MemAccess{}, fmt.Errorf("bad address %q: %w", fields[0], err)
	}

	kind, err := vm.ParseKind(fields[1])
	if err != nil {
		return vm.MemAccess{}, err
	}

	return vm.MemAccess{Addr: addr, Kind: kind}, nil
}
