//go:build unix

package jit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ExecutableRegion is a page-aligned slice of anonymous memory that can
// be toggled between writable (while the emitter fills it in) and
// executable (once a block is ready to invoke). The code cache never
// maps a page both writable and executable at once (spec §5 "W^X").
type ExecutableRegion struct {
	mem []byte
}

// NewExecutableRegion mmaps size bytes (rounded up to a page), initially
// RW so Commit can fill it with a block's machine code.
func NewExecutableRegion(size int) (*ExecutableRegion, error) {
	pageSize := unix.Getpagesize()
	rounded := (size + pageSize - 1) &^ (pageSize - 1)
	mem, err := unix.Mmap(-1, 0, rounded, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("jit: mmap executable region: %w", err)
	}
	return &ExecutableRegion{mem: mem}, nil
}

// Bytes exposes the backing slice while the region is still writable.
func (r *ExecutableRegion) Bytes() []byte { return r.mem }

// MakeExecutable flips the region from RW to RX. Once called, writes to
// Bytes() are no longer valid; the region must be recreated to translate
// a different block into the same slot.
func (r *ExecutableRegion) MakeExecutable() error {
	if err := unix.Mprotect(r.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("jit: mprotect executable region: %w", err)
	}
	return nil
}

// Close unmaps the region.
func (r *ExecutableRegion) Close() error {
	return unix.Munmap(r.mem)
}

// Commit copies code into a freshly mapped executable region sized to
// fit it and returns the region ready to invoke.
func Commit(code []byte) (*ExecutableRegion, error) {
	r, err := NewExecutableRegion(len(code))
	if err != nil {
		return nil, err
	}
	copy(r.mem, code)
	if err := r.MakeExecutable(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}
