package debugger

import (
	"bytes"
	"testing"

	"github.com/kestrelsoft/lr35902jit/internal/system"
)

// loopROM is a ROM-only cartridge whose reset vector is an infinite
// unconditional JR -2, the same fixture internal/system's own tests use.
func loopROM() []byte {
	rom := make([]byte, 0x8000)
	rom[0x0147] = 0x00
	rom[0x0100] = 0x18
	rom[0x0101] = 0xFE
	return rom
}

func newTestSession(t *testing.T) (*Session, *bytes.Buffer) {
	t.Helper()
	m := system.New(system.Config{})
	if err := m.LoadCartridge(loopROM(), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	var out bytes.Buffer
	return NewSession(m, &out), &out
}

func TestSessionStepPrintsRegisters(t *testing.T) {
	s, out := newTestSession(t)
	s.Dispatch(Parse("step"))
	if got := out.String(); got == "" {
		t.Fatal("expected step to print registers")
	}
	if !bytes.Contains(out.Bytes(), []byte("PC=0x0100")) {
		t.Fatalf("expected PC back at 0x0100 after JR -2, got %q", out.String())
	}
}

func TestSessionBreakpointLifecycle(t *testing.T) {
	s, out := newTestSession(t)
	s.Dispatch(Parse("break 0x0100"))
	s.Dispatch(Parse("breaklist"))
	if !bytes.Contains(out.Bytes(), []byte("0x0100")) {
		t.Fatalf("expected breakpoint list to contain 0x0100, got %q", out.String())
	}
	out.Reset()
	s.Dispatch(Parse("clear 0x0100"))
	s.Dispatch(Parse("breaklist"))
	if bytes.Contains(out.Bytes(), []byte("0x0100")) {
		t.Fatalf("expected breakpoint list to be empty after clear, got %q", out.String())
	}
}

func TestSessionContinueHitsBreakpoint(t *testing.T) {
	s, out := newTestSession(t)
	s.Dispatch(Parse("break 0x0100"))
	out.Reset()
	s.Dispatch(Parse("continue"))
	if !bytes.Contains(out.Bytes(), []byte("breakpoint hit at 0x0100")) {
		t.Fatalf("expected continue to report hitting the breakpoint, got %q", out.String())
	}
}

func TestSessionPrintReadsMemory(t *testing.T) {
	s, out := newTestSession(t)
	s.Dispatch(Parse("print 0x0100"))
	if !bytes.Contains(out.Bytes(), []byte("0x0100: 0x18")) {
		t.Fatalf("expected print to show the JR opcode 0x18 at 0x0100, got %q", out.String())
	}
}

func TestSessionDisassembleDecodesLoop(t *testing.T) {
	s, out := newTestSession(t)
	s.Dispatch(Parse("disassemble 0x0100 1"))
	if !bytes.Contains(out.Bytes(), []byte("JR -2")) {
		t.Fatalf("expected disassembly of JR -2, got %q", out.String())
	}
}

func TestSessionUnknownCommandIsNoop(t *testing.T) {
	s, out := newTestSession(t)
	s.Dispatch(Parse("frobnicate"))
	if out.Len() != 0 {
		t.Fatalf("expected no output for an unrecognized command, got %q", out.String())
	}
}
