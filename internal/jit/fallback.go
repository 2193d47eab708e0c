package jit

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/kestrelsoft/lr35902jit/internal/interp"
)

// fallbackPointer is the C-ABI-callable address of fallbackTrampoline,
// created once via purego.NewCallback and then baked into every block
// that needs it (spec §4.2: any Op touching guest memory — (HL)
// indirection, the stack, LDH, LD (a16) — routes through here instead of
// being inlined, so its semantics can never drift from the interpreter's).
var fallbackPointer uintptr
var fallbackOnce sync.Once

func fallbackCallback() uintptr {
	fallbackOnce.Do(func() {
		fallbackPointer = purego.NewCallback(fallbackTrampoline)
	})
	return fallbackPointer
}

// fallbackTrampoline is invoked directly from emitted machine code. The
// block's prologue flushes live guest registers into ctx.State before
// the call and reloads them afterward, so from Go's point of view this
// is just one interp-style instruction execution against State/Bus.
// Both arguments and the return value are plain integers because that is
// all purego.NewCallback can marshal across the C-ABI boundary; ctxAddr
// is the address of a *Context that internal/jit's Invoke keeps alive
// for the duration of the call.
func fallbackTrampoline(ctxAddr uintptr, opIndex uintptr) uintptr {
	ctx := (*Context)(unsafe.Pointer(ctxAddr))
	op := ctx.ops[int(opIndex)]
	taken := interp.Execute(ctx.State, ctx.Bus, op)
	if taken {
		return 1
	}
	return 0
}
