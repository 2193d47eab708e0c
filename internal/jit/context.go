package jit

import (
	"github.com/kestrelsoft/lr35902jit/internal/cpustate"
	"github.com/kestrelsoft/lr35902jit/internal/decoder"
)

// MemoryReader is the minimal surface Translate needs to fetch the guest
// bytes it decodes; internal/membus.Bus satisfies it.
type MemoryReader interface {
	Read(addr uint16) byte
}

// MemoryBus is the read/write surface the fallback trampoline needs to
// execute a single non-native Op the same way internal/interp would.
type MemoryBus interface {
	Read(addr uint16) byte
	Write(addr uint16, v byte)
}

// Context is what a translated block operates on: it is never touched by
// the emitted machine code directly except through the fallback
// callback, which receives a uintptr-encoded *Context and recovers it via
// the running index (see fallback.go). State's fields are what the
// prologue/epilogue load from and store to by fixed byte offset.
type Context struct {
	State *cpustate.State
	Bus   MemoryBus

	// ops is the block's decoded instruction sequence, in translation
	// order, so the fallback callback can re-run exactly the Op the
	// native code stopped at without re-decoding.
	ops []decoder.Op
}
