package cpustate

import "testing"

func TestRegsReportsAllPairs(t *testing.T) {
	s := &State{AF: 0x01B0, BC: 0x0013, DE: 0x00D8, HL: 0x014D, SP: 0xFFFE, PC: 0x0100}
	af, bc, de, hl, sp, pc := s.Regs()
	if af != 0x01B0 || bc != 0x0013 || de != 0x00D8 || hl != 0x014D || sp != 0xFFFE || pc != 0x0100 {
		t.Fatalf("Regs() = %04X %04X %04X %04X %04X %04X, want the struct's own field values",
			af, bc, de, hl, sp, pc)
	}
}

func TestNewMatchesPostBootDefaults(t *testing.T) {
	s := New()
	if s.SP != 0xFFFE || s.PC != 0x0100 {
		t.Fatalf("New() SP/PC = %04X/%04X, want FFFE/0100", s.SP, s.PC)
	}
}

func TestSetFlags(t *testing.T) {
	s := &State{}
	s.SetFlags(true, false, true, false)
	if !s.Flag(FlagZ) || s.Flag(FlagN) || !s.Flag(FlagH) || s.Flag(FlagC) {
		t.Fatalf("SetFlags(Z,H) produced F=%#02x, want only Z and H set", s.F())
	}
}
