package jit

import "errors"

// ErrTranslationUnsupported is returned by Translate on any platform the
// amd64 emitter does not target; callers should fall back to
// internal/interp for the affected guest address range.
var ErrTranslationUnsupported = errors.New("jit: native translation is not supported on this platform")
