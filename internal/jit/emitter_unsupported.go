//go:build !amd64

package jit

// Translate is unimplemented outside amd64: the register binding and
// byte encodings in emitter_amd64.go are specific to that instruction
// set. Every other architecture runs guest code purely through
// internal/interp.
func Translate(mem MemoryReader, start uint16) (*Block, error) {
	return nil, ErrTranslationUnsupported
}
