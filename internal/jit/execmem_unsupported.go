//go:build !unix

package jit

import "errors"

// ErrExecMemUnsupported is returned on platforms with no mmap/mprotect
// analog wired in (spec §5's W^X executable region requirement has no
// portable stdlib path; Windows would need VirtualAlloc/VirtualProtect,
// which is left unimplemented since the amd64 emitter itself is also
// gated to unix — see emitter_windows_amd64.go).
var ErrExecMemUnsupported = errors.New("jit: executable memory regions are not supported on this platform")

// ExecutableRegion is the unsupported-platform stand-in; every method
// reports ErrExecMemUnsupported so callers fall back to the interpreter.
type ExecutableRegion struct{}

func NewExecutableRegion(size int) (*ExecutableRegion, error) { return nil, ErrExecMemUnsupported }
func (r *ExecutableRegion) Bytes() []byte                     { return nil }
func (r *ExecutableRegion) MakeExecutable() error              { return ErrExecMemUnsupported }
func (r *ExecutableRegion) Close() error                       { return nil }

func Commit(code []byte) (*ExecutableRegion, error) { return nil, ErrExecMemUnsupported }
