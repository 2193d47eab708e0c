//go:build amd64 && windows

package jit

// Translate is unimplemented on windows/amd64: the emitted blocks in
// emitter_amd64.go assume the System V AMD64 calling convention
// (RDI carries the first argument), but Windows x64 uses a different
// convention (RCX carries the first argument, with a caller-reserved
// shadow stack area) and purego.SyscallN dispatches using whichever
// convention the host OS actually uses. Emitting one binary and
// invoking it through both conventions interchangeably is not sound, so
// rather than maintain two parallel encoders this platform always
// reports ErrTranslationUnsupported and the orchestrator falls back to
// internal/interp, matching how it already handles RAM-resident code
// (spec §5, Windows JIT support is an Open Question resolved as
// "interpreter-only").
func Translate(mem MemoryReader, start uint16) (*Block, error) {
	return nil, ErrTranslationUnsupported
}
