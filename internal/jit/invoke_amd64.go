//go:build amd64 && !windows

package jit

import (
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/kestrelsoft/lr35902jit/internal/cpustate"
)

// Invoke runs a translated Block against state/bus and returns the
// Status the block finished with (spec §4.1: the orchestrator inspects
// this to decide whether to service an interrupt, apply an EI delay, or
// resume HALT/STOP). ctx, and therefore block.Ops and bus, must stay
// reachable for the whole call since the fallback callback (if this
// block uses one) dereferences ctx's address directly — it is kept
// alive by this stack frame, so that is guaranteed.
func Invoke(block *Block, state *cpustate.State, bus MemoryBus) cpustate.Status {
	ctx := &Context{State: state, Bus: bus, ops: block.Ops}
	purego.SyscallN(uintptr(unsafe.Pointer(&block.Exec.Bytes()[0])), uintptr(unsafe.Pointer(ctx)))
	return state.Status
}
