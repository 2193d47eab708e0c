//go:build !amd64 || windows

package jit

import "github.com/kestrelsoft/lr35902jit/internal/cpustate"

// Invoke never runs on this platform: Translate already refuses to
// produce a Block, so the orchestrator never holds one to pass here.
func Invoke(block *Block, state *cpustate.State, bus MemoryBus) cpustate.Status {
	panic("jit: Invoke called on a platform where Translate always fails")
}
