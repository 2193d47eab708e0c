//go:build amd64 && !windows

package jit

import (
	"testing"

	"github.com/kestrelsoft/lr35902jit/internal/cpustate"
)

// These drive Translate's output through Invoke against real RX-mapped
// memory, the way internal/system.Machine does — Translate's own tests
// only check byte/cycle accounting, so this is what actually exercises
// the W^X mapping and the prologue/epilogue's register marshaling.

func TestInvoke_UnconditionalLoopLandsBackAtStart(t *testing.T) {
	var mem flatReader
	load(&mem, 0x0100, 0x18, 0xFE) // JR -2 (self-loop)

	block, err := Translate(&mem, 0x0100)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if block.Exec == nil {
		t.Fatal("Translate did not commit an executable region")
	}

	s := &cpustate.State{PC: 0x0100}
	status := Invoke(block, s, &mem)
	if status != cpustate.StatusNone {
		t.Fatalf("Status = %v, want StatusNone", status)
	}
	if s.PC != 0x0100 {
		t.Fatalf("PC after JIT JR -2 = %#04x, want 0x0100", s.PC)
	}
}

func TestInvoke_HaltLandsPastTheHaltByte(t *testing.T) {
	var mem flatReader
	load(&mem, 0x0010, 0x00, 0x00, 0x76) // NOP; NOP; HALT

	block, err := Translate(&mem, 0x0010)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}

	s := &cpustate.State{PC: 0x0010}
	status := Invoke(block, s, &mem)
	if status != cpustate.StatusHalt {
		t.Fatalf("Status = %v, want StatusHalt", status)
	}
	if s.PC != 0x0013 {
		t.Fatalf("PC after HALT = %#04x, want 0x0013 (past the HALT byte)", s.PC)
	}
}

func TestInvoke_CallPushesPostInstructionReturnAddress(t *testing.T) {
	var mem flatReader
	load(&mem, 0x0020, 0xCD, 0x00, 0x40) // CALL 0x4000
	load(&mem, 0x4000, 0x76)             // HALT, so the translated callee block is trivial to distinguish

	block, err := Translate(&mem, 0x0020)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}

	s := &cpustate.State{PC: 0x0020, SP: 0xFFFE}
	Invoke(block, s, &mem)

	if s.PC != 0x4000 {
		t.Fatalf("PC after CALL = %#04x, want 0x4000", s.PC)
	}
	if s.SP != 0xFFFC {
		t.Fatalf("SP after CALL = %#04x, want 0xFFFC", s.SP)
	}
	lo, hi := mem.Read(s.SP), mem.Read(s.SP+1)
	ret := uint16(lo) | uint16(hi)<<8
	if ret != 0x0023 {
		t.Fatalf("pushed return address = %#04x, want 0x0023 (past the 3-byte CALL)", ret)
	}
}

func TestInvoke_ConditionalJumpRelativeNotTakenFallsThrough(t *testing.T) {
	var mem flatReader
	load(&mem, 0x0030, 0x20, 0x10) // JR NZ,+16
	s := &cpustate.State{PC: 0x0030, AF: uint16(cpustate.FlagZ)} // Z set: NZ does not take

	block, err := Translate(&mem, 0x0030)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	Invoke(block, s, &mem)
	if s.PC != 0x0032 {
		t.Fatalf("PC after not-taken JR NZ = %#04x, want 0x0032 (fallthrough)", s.PC)
	}
}

func TestInvoke_ConditionalJumpRelativeTaken(t *testing.T) {
	var mem flatReader
	load(&mem, 0x0040, 0x20, 0x10) // JR NZ,+16
	s := &cpustate.State{PC: 0x0040}

	block, err := Translate(&mem, 0x0040)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	Invoke(block, s, &mem)
	if want := uint16(0x0042 + 0x10); s.PC != want {
		t.Fatalf("PC after taken JR NZ = %#04x, want %#04x", s.PC, want)
	}
}
