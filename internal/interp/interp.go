// Package interp is the reference SM83 interpreter: it executes decoded
// Ops directly against a cpustate.State and a guest memory Bus, one
// instruction at a time. It exists for two reasons (spec §5): it is the
// fallback execution path for guest code the JIT won't cache (RAM-resident
// and therefore potentially self-modifying), and it is the correctness
// oracle the JIT's translated blocks are checked against in tests.
package interp

import (
	"github.com/kestrelsoft/lr35902jit/internal/cpustate"
	"github.com/kestrelsoft/lr35902jit/internal/decoder"
)

// Bus is the guest memory and I/O surface the interpreter reads and
// writes through. internal/membus.Bus satisfies this.
type Bus interface {
	Read(addr uint16) byte
	Write(addr uint16, v byte)
}

// Step executes exactly one instruction (servicing a pending interrupt or
// HALT wakeup first if applicable) and returns the clock cycles
// (T-cycles) consumed. Callers are expected to feed that count to the bus/PPU/timer
// tick in a loop, mirroring the orchestrator's own bookkeeping.
func Step(s *cpustate.State, bus Bus) int {
	if s.Halted {
		if s.IME {
			if cyc := serviceInterrupt(s, bus); cyc != 0 {
				applyEI(s)
				return cyc
			}
		} else {
			ie := bus.Read(0xFFFF)
			ifReg := bus.Read(0xFF0F) & 0x1F
			if ifReg&ie != 0 {
				s.Halted = false
			} else {
				applyEI(s)
				return 4
			}
		}
	}

	if s.IME {
		if cyc := serviceInterrupt(s, bus); cyc != 0 {
			applyEI(s)
			return cyc
		}
	}

	pc := s.PC
	code := [3]byte{bus.Read(pc), bus.Read(pc + 1), bus.Read(pc + 2)}
	op, length, cycles, branchCycles := decoder.Decode(code[:])
	s.PC += uint16(length)

	eiWasPending := s.EIPending
	taken := Execute(s, bus, op)
	total := cycles
	if taken {
		total += branchCycles
	}

	if eiWasPending {
		applyEI(s)
	}
	return total
}

func applyEI(s *cpustate.State) {
	if s.EIPending {
		s.IME = true
		s.EIPending = false
	}
}

// serviceInterrupt dispatches the highest-priority pending interrupt
// (VBlank, STAT, Timer, Serial, Joypad, in that order) and returns the 20
// cycles the dispatch costs, or 0 if nothing is pending.
func serviceInterrupt(s *cpustate.State, bus Bus) int {
	ie := bus.Read(0xFFFF)
	ifReg := bus.Read(0xFF0F) & 0x1F
	pending := ie & ifReg
	if pending == 0 {
		return 0
	}
	var bit uint
	for bit = 0; bit < 5; bit++ {
		if pending&(1<<bit) != 0 {
			break
		}
	}
	bus.Write(0xFF0F, (ifReg&^(1<<bit))&0x1F)
	s.Halted = false
	s.IME = false
	push16(s, bus, s.PC)
	s.PC = 0x40 + uint16(bit)*8
	return 20
}

// Execute applies a decoded Op's effects to s/bus and reports whether a
// conditional control-flow Op's branch was taken (meaningless, and
// ignored, for every other Kind). Step calls this after decoding; the
// JIT's fallback trampoline (internal/jit) calls it directly for any Op
// it did not inline as native host code, so the two execution paths
// share one semantics implementation instead of two that could diverge.
func Execute(s *cpustate.State, bus Bus, op decoder.Op) bool {
	switch op.Kind {
	case decoder.KindNop:

	case decoder.KindStop:
		s.Stopped = true
		s.Status = cpustate.StatusStop
	case decoder.KindHalt:
		s.Halted = true
		s.Status = cpustate.StatusHalt
	case decoder.KindDisableInterrupts:
		s.IME = false
		s.EIPending = false
		s.Status = cpustate.StatusDisableInterrupts
	case decoder.KindEnableInterrupts:
		s.EIPending = true
		s.Status = cpustate.StatusEnableInterrupts

	case decoder.KindLoad8:
		writeReg8(s, bus, op.Dst8, readReg8(s, bus, op.Src8))
	case decoder.KindLoad8Imm:
		writeReg8(s, bus, op.Dst8, op.Imm8)
	case decoder.KindLoad16Imm:
		writeReg16(s, op.Dst16, op.Imm16)

	case decoder.KindLoadIndirectRead:
		addr := indirectAddr(s, op.IndMode, op.Imm8, op.Imm16)
		writeReg8(s, bus, op.Dst8, bus.Read(addr))
		adjustHLIndirect(s, op.IndMode)
	case decoder.KindLoadIndirectWrite:
		addr := indirectAddr(s, op.IndMode, op.Imm8, op.Imm16)
		var v byte
		if op.Src8 != decoder.R8None {
			v = readReg8(s, bus, op.Src8)
		} else {
			v = op.Imm8
		}
		bus.Write(addr, v)
		adjustHLIndirect(s, op.IndMode)

	case decoder.KindLoadSPToMem:
		bus.Write(op.Imm16, byte(s.SP))
		bus.Write(op.Imm16+1, byte(s.SP>>8))
	case decoder.KindLoadHLSPOffset:
		low := byte(s.SP)
		_, _, _, h, cy := add8(low, byte(op.Offset), false)
		s.HL = uint16(int32(int16(s.SP)) + int32(op.Offset))
		s.SetFlags(false, false, h, cy)
	case decoder.KindLoadSPHL:
		s.SP = s.HL

	case decoder.KindIncReg8:
		old := readReg8(s, bus, op.Dst8)
		v := old + 1
		writeReg8(s, bus, op.Dst8, v)
		s.SetFlags(v == 0, false, old&0x0F == 0x0F, s.Flag(cpustate.FlagC))
	case decoder.KindDecReg8:
		old := readReg8(s, bus, op.Dst8)
		v := old - 1
		writeReg8(s, bus, op.Dst8, v)
		s.SetFlags(v == 0, true, old&0x0F == 0x00, s.Flag(cpustate.FlagC))
	case decoder.KindIncReg16:
		writeReg16(s, op.Dst16, readReg16(s, op.Dst16)+1)
	case decoder.KindDecReg16:
		writeReg16(s, op.Dst16, readReg16(s, op.Dst16)-1)

	case decoder.KindAdd8:
		a := s.A()
		b := aluOperand(s, bus, op)
		r, z, n, h, cy := add8(a, b, false)
		s.SetA(r)
		s.SetFlags(z, n, h, cy)
	case decoder.KindAdc8:
		a := s.A()
		b := aluOperand(s, bus, op)
		r, z, n, h, cy := add8(a, b, s.Flag(cpustate.FlagC))
		s.SetA(r)
		s.SetFlags(z, n, h, cy)
	case decoder.KindSub8:
		a := s.A()
		b := aluOperand(s, bus, op)
		r, z, n, h, cy := sub8(a, b, false)
		s.SetA(r)
		s.SetFlags(z, n, h, cy)
	case decoder.KindSbc8:
		a := s.A()
		b := aluOperand(s, bus, op)
		r, z, n, h, cy := sub8(a, b, s.Flag(cpustate.FlagC))
		s.SetA(r)
		s.SetFlags(z, n, h, cy)
	case decoder.KindAnd8:
		a := s.A()
		b := aluOperand(s, bus, op)
		r := a & b
		s.SetA(r)
		s.SetFlags(r == 0, false, true, false)
	case decoder.KindXor8:
		a := s.A()
		b := aluOperand(s, bus, op)
		r := a ^ b
		s.SetA(r)
		s.SetFlags(r == 0, false, false, false)
	case decoder.KindOr8:
		a := s.A()
		b := aluOperand(s, bus, op)
		r := a | b
		s.SetA(r)
		s.SetFlags(r == 0, false, false, false)
	case decoder.KindCp8:
		a := s.A()
		b := aluOperand(s, bus, op)
		_, z, n, h, cy := sub8(a, b, false)
		s.SetFlags(z, n, h, cy)

	case decoder.KindAddHL:
		hl := s.HL
		src := readReg16(s, op.Src16)
		r := uint32(hl) + uint32(src)
		h := (hl&0x0FFF)+(src&0x0FFF) > 0x0FFF
		s.HL = uint16(r)
		s.SetFlags(s.Flag(cpustate.FlagZ), false, h, r > 0xFFFF)
	case decoder.KindAddSPOffset:
		low := byte(s.SP)
		_, _, _, h, cy := add8(low, byte(op.Offset), false)
		s.SP = uint16(int32(int16(s.SP)) + int32(op.Offset))
		s.SetFlags(false, false, h, cy)

	case decoder.KindRotateLeftCarryA:
		cf := s.A() >> 7
		s.SetA(s.A()<<1 | cf)
		s.SetFlags(false, false, false, cf == 1)
	case decoder.KindRotateRightCarryA:
		cf := s.A() & 1
		s.SetA(s.A()>>1 | cf<<7)
		s.SetFlags(false, false, false, cf == 1)
	case decoder.KindRotateLeftA:
		cf := s.A() >> 7
		cin := carryBit(s)
		s.SetA(s.A()<<1 | cin)
		s.SetFlags(false, false, false, cf == 1)
	case decoder.KindRotateRightA:
		cf := s.A() & 1
		cin := carryBit(s)
		s.SetA(s.A()>>1 | cin<<7)
		s.SetFlags(false, false, false, cf == 1)
	case decoder.KindDAA:
		executeDAA(s)
	case decoder.KindComplementA:
		s.SetA(^s.A())
		s.SetF((s.F() & (cpustate.FlagZ | cpustate.FlagC)) | cpustate.FlagN | cpustate.FlagH)
	case decoder.KindSetCarryFlag:
		s.SetF((s.F() & cpustate.FlagZ) | cpustate.FlagC)
	case decoder.KindComplementCarryFlag:
		var f byte = s.F() & cpustate.FlagZ
		if !s.Flag(cpustate.FlagC) {
			f |= cpustate.FlagC
		}
		s.SetF(f)

	case decoder.KindRotateLeftCarry, decoder.KindRotateLeft,
		decoder.KindRotateRightCarry, decoder.KindRotateRight,
		decoder.KindShiftLeftArith, decoder.KindShiftRightArith,
		decoder.KindSwap, decoder.KindShiftRightLogic:
		executeCBShift(s, bus, op)

	case decoder.KindBitTest:
		v := readReg8(s, bus, op.Dst8)
		f := (s.F() & cpustate.FlagC) | cpustate.FlagH
		if v&op.BitMask == 0 {
			f |= cpustate.FlagZ
		}
		s.SetF(f)
	case decoder.KindBitReset:
		v := readReg8(s, bus, op.Dst8)
		writeReg8(s, bus, op.Dst8, v&^op.BitMask)
	case decoder.KindBitSet:
		v := readReg8(s, bus, op.Dst8)
		writeReg8(s, bus, op.Dst8, v|op.BitMask)

	case decoder.KindPush:
		push16(s, bus, readReg16AF(s, op.Src16))
	case decoder.KindPop:
		writeReg16AF(s, op.Dst16, pop16(s, bus))

	case decoder.KindJump:
		if checkCond(s, op.Cond) {
			s.PC = op.Imm16
			return true
		}
	case decoder.KindJumpHL:
		s.PC = s.HL
	case decoder.KindJumpRelative:
		if checkCond(s, op.Cond) {
			s.PC = uint16(int32(s.PC) + int32(op.Offset))
			return true
		}
	case decoder.KindCall:
		if checkCond(s, op.Cond) {
			push16(s, bus, s.PC)
			s.PC = op.Imm16
			return true
		}
	case decoder.KindRet:
		if checkCond(s, op.Cond) {
			s.PC = pop16(s, bus)
			return true
		}
	case decoder.KindRetUnconditional:
		s.PC = pop16(s, bus)
	case decoder.KindRetInterrupt:
		s.PC = pop16(s, bus)
		s.IME = true
	case decoder.KindRst:
		push16(s, bus, s.PC)
		s.PC = uint16(op.BitMask)

	case decoder.KindInvalid:
		s.Status = cpustate.StatusInvalidOpcode
	}
	return false
}

func aluOperand(s *cpustate.State, bus Bus, op decoder.Op) byte {
	if op.Src8 == decoder.R8None {
		return op.Imm8
	}
	return readReg8(s, bus, op.Src8)
}

func carryBit(s *cpustate.State) byte {
	if s.Flag(cpustate.FlagC) {
		return 1
	}
	return 0
}

func checkCond(s *cpustate.State, cond decoder.Cond) bool {
	switch cond {
	case decoder.CondAlways:
		return true
	case decoder.CondZ:
		return s.Flag(cpustate.FlagZ)
	case decoder.CondNZ:
		return !s.Flag(cpustate.FlagZ)
	case decoder.CondC:
		return s.Flag(cpustate.FlagC)
	case decoder.CondNC:
		return !s.Flag(cpustate.FlagC)
	}
	return false
}

func executeDAA(s *cpustate.State) {
	a := s.A()
	cf := s.Flag(cpustate.FlagC)
	if !s.Flag(cpustate.FlagN) {
		if cf || a > 0x99 {
			a += 0x60
			cf = true
		}
		if s.Flag(cpustate.FlagH) || a&0x0F > 9 {
			a += 0x06
		}
	} else {
		if cf {
			a -= 0x60
		}
		if s.Flag(cpustate.FlagH) {
			a -= 0x06
		}
	}
	s.SetA(a)
	s.SetFlags(a == 0, s.Flag(cpustate.FlagN), false, cf)
}

func executeCBShift(s *cpustate.State, bus Bus, op decoder.Op) {
	v := readReg8(s, bus, op.Dst8)
	var cf byte
	switch op.Kind {
	case decoder.KindRotateLeftCarry:
		cf = v >> 7
		v = v<<1 | cf
	case decoder.KindRotateRightCarry:
		cf = v & 1
		v = v>>1 | cf<<7
	case decoder.KindRotateLeft:
		cf = v >> 7
		v = v<<1 | carryBit(s)
	case decoder.KindRotateRight:
		cf = v & 1
		v = v>>1 | carryBit(s)<<7
	case decoder.KindShiftLeftArith:
		cf = v >> 7
		v <<= 1
	case decoder.KindShiftRightArith:
		cf = v & 1
		v = v>>1 | v&0x80
	case decoder.KindSwap:
		v = v<<4 | v>>4
	case decoder.KindShiftRightLogic:
		cf = v & 1
		v >>= 1
	}
	writeReg8(s, bus, op.Dst8, v)
	if op.Kind == decoder.KindSwap {
		s.SetFlags(v == 0, false, false, false)
	} else {
		s.SetFlags(v == 0, false, false, cf == 1)
	}
}

func indirectAddr(s *cpustate.State, mode decoder.IndMode, imm8 byte, imm16 uint16) uint16 {
	switch mode {
	case decoder.IndBC:
		return s.BC
	case decoder.IndDE:
		return s.DE
	case decoder.IndHLInc, decoder.IndHLDec:
		return s.HL
	case decoder.IndA16:
		return imm16
	case decoder.IndFF00C:
		return 0xFF00 + uint16(s.C())
	case decoder.IndFF00n:
		return 0xFF00 + uint16(imm8)
	}
	return 0
}

func adjustHLIndirect(s *cpustate.State, mode decoder.IndMode) {
	switch mode {
	case decoder.IndHLInc:
		s.HL++
	case decoder.IndHLDec:
		s.HL--
	}
}

func readReg8(s *cpustate.State, bus Bus, r decoder.Reg8) byte {
	switch r {
	case decoder.R8B:
		return s.B()
	case decoder.R8C:
		return s.C()
	case decoder.R8D:
		return s.D()
	case decoder.R8E:
		return s.E()
	case decoder.R8H:
		return s.H()
	case decoder.R8L:
		return s.L()
	case decoder.R8HL:
		return bus.Read(s.HL)
	case decoder.R8A:
		return s.A()
	}
	return 0
}

func writeReg8(s *cpustate.State, bus Bus, r decoder.Reg8, v byte) {
	switch r {
	case decoder.R8B:
		s.SetB(v)
	case decoder.R8C:
		s.SetC(v)
	case decoder.R8D:
		s.SetD(v)
	case decoder.R8E:
		s.SetE(v)
	case decoder.R8H:
		s.SetH(v)
	case decoder.R8L:
		s.SetL(v)
	case decoder.R8HL:
		bus.Write(s.HL, v)
	case decoder.R8A:
		s.SetA(v)
	}
}

func readReg16(s *cpustate.State, r decoder.Reg16) uint16 {
	switch r {
	case decoder.R16BC:
		return s.BC
	case decoder.R16DE:
		return s.DE
	case decoder.R16HL:
		return s.HL
	case decoder.R16SP:
		return s.SP
	}
	return 0
}

func writeReg16(s *cpustate.State, r decoder.Reg16, v uint16) {
	switch r {
	case decoder.R16BC:
		s.BC = v
	case decoder.R16DE:
		s.DE = v
	case decoder.R16HL:
		s.HL = v
	case decoder.R16SP:
		s.SP = v
	}
}

func readReg16AF(s *cpustate.State, r decoder.Reg16) uint16 {
	switch r {
	case decoder.R16BC:
		return s.BC
	case decoder.R16DE:
		return s.DE
	case decoder.R16HL:
		return s.HL
	case decoder.R16AF:
		return s.AF & 0xFFF0
	}
	return 0
}

func writeReg16AF(s *cpustate.State, r decoder.Reg16, v uint16) {
	switch r {
	case decoder.R16BC:
		s.BC = v
	case decoder.R16DE:
		s.DE = v
	case decoder.R16HL:
		s.HL = v
	case decoder.R16AF:
		s.AF = v & 0xFFF0
	}
}

func push16(s *cpustate.State, bus Bus, v uint16) {
	s.SP -= 2
	bus.Write(s.SP, byte(v))
	bus.Write(s.SP+1, byte(v>>8))
}

func pop16(s *cpustate.State, bus Bus) uint16 {
	lo := bus.Read(s.SP)
	hi := bus.Read(s.SP + 1)
	s.SP += 2
	return uint16(lo) | uint16(hi)<<8
}

func add8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	var ci uint16
	if carryIn {
		ci = 1
	}
	r := uint16(a) + uint16(b) + ci
	res = byte(r)
	z = res == 0
	h = (a&0x0F)+(b&0x0F)+byte(ci) > 0x0F
	cy = r > 0xFF
	return
}

func sub8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	var ci int16
	if carryIn {
		ci = 1
	}
	r := int16(a) - int16(b) - ci
	res = byte(r)
	z = res == 0
	n = true
	h = int16(a&0x0F)-int16(b&0x0F)-ci < 0
	cy = r < 0
	return
}
