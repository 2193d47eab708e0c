//go:build amd64 && !windows

// Package jit's amd64 emitter follows the System V AMD64 calling
// convention and the register binding scheme in
// _examples/original_source/src/emitter/x86_64.rs: AF maps to RAX (A in
// AH, F in AL), BC to RBX, DE to RDX, HL to RCX, SP to R12, PC to R13.
// R14 is zeroed by the prologue and stored into State.Cycles by the
// epilogue; no emitted instruction adds to it, and a block's cycle cost
// is the static Block.BaseCycles instead. R15 holds the Context pointer
// the fallback callback needs. A translated block is a single
// function, called with RDI = *Context (see invoke_amd64.go): the
// prologue loads guest registers from ctx.State into their bound host
// registers, the body emits each Op either as native instructions or as
// a flush/call/reload bracket around fallbackTrampoline, and the
// epilogue stores everything back before returning the guest's Status.
package jit

import (
	"fmt"

	"github.com/kestrelsoft/lr35902jit/internal/cpustate"
	"github.com/kestrelsoft/lr35902jit/internal/decoder"
)

// x86 register encodings used by the ModRM/REX builders below.
const (
	regAX  = 0
	regCX  = 1
	regDX  = 2
	regBX  = 3
	regSP  = 4
	regBP  = 5
	regSI  = 6
	regDI  = 7
	regR12 = 4 // +REX.B/.R
	regR13 = 5
	regR14 = 6
	regR15 = 7
)

type asm struct {
	buf []byte
}

func (a *asm) b(v byte)         { a.buf = append(a.buf, v) }
func (a *asm) bytes(vs ...byte) { a.buf = append(a.buf, vs...) }

func (a *asm) u64(v uint64) {
	for i := 0; i < 8; i++ {
		a.buf = append(a.buf, byte(v>>(8*i)))
	}
}

// rex builds a REX prefix: W (64-bit op), R (ModRM.reg extension), X
// (SIB.index extension), B (ModRM.rm/opcode-reg extension).
func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrm(mod, reg, rm byte) byte { return mod<<6 | (reg&7)<<3 | (rm & 7) }

func (a *asm) movR15FromRDI() {
	a.bytes(rex(true, false, false, true), 0x89, modrm(3, regDI, regR15&7)) // mov r15, rdi
}

// emitPrologue copies RDI (*Context) into R15, loads *cpustate.State
// (Context's first field) into RBP, loads AF/BC/DE/HL/SP/PC from it into
// their bound registers, and zeroes R14.
func (a *asm) emitPrologue() {
	a.movR15FromRDI()
	a.bytes(0x48, 0x8B, modrm(1, regBP, regDI), 0x00) // mov rbp, [rdi+0]
	a.loadPairFromState(regAX, cpustate.OffsetAF)
	a.loadPairFromState(regBX, cpustate.OffsetBC)
	a.loadPairFromState(regDX, cpustate.OffsetDE)
	a.loadPairFromState(regCX, cpustate.OffsetHL)
	a.loadPairFromStateExt(regR12, cpustate.OffsetSP)
	a.loadPairFromStateExt(regR13, cpustate.OffsetPC)
	a.bytes(rex(true, true, false, true), 0x31, modrm(3, regR14&7, regR14&7)) // xor r14,r14
}

func (a *asm) loadPairFromState(reg byte, off int) {
	a.bytes(0x66, 0x8B, modrm(1, reg, regBP), byte(off))
}

func (a *asm) loadPairFromStateExt(reg byte, off int) {
	a.bytes(0x66, rex(false, true, false, false), 0x8B, modrm(1, reg&7, regBP), byte(off))
}

func (a *asm) storePairToState(reg byte, off int) {
	a.bytes(0x66, 0x89, modrm(1, reg, regBP), byte(off))
}

func (a *asm) storePairToStateExt(reg byte, off int) {
	a.bytes(0x66, rex(false, true, false, false), 0x89, modrm(1, reg&7, regBP), byte(off))
}

// flushAll stores every bound register back into ctx.State, leaving
// Status/Cycles untouched; used both by emitEpilogue and by the
// flush/call/reload bracket around a fallback call.
func (a *asm) flushAll() {
	a.storePairToState(regAX, cpustate.OffsetAF)
	a.storePairToState(regBX, cpustate.OffsetBC)
	a.storePairToState(regDX, cpustate.OffsetDE)
	a.storePairToState(regCX, cpustate.OffsetHL)
	a.storePairToStateExt(regR12, cpustate.OffsetSP)
	a.storePairToStateExt(regR13, cpustate.OffsetPC)
}

func (a *asm) reloadAll() {
	a.loadPairFromState(regAX, cpustate.OffsetAF)
	a.loadPairFromState(regBX, cpustate.OffsetBC)
	a.loadPairFromState(regDX, cpustate.OffsetDE)
	a.loadPairFromState(regCX, cpustate.OffsetHL)
	a.loadPairFromStateExt(regR12, cpustate.OffsetSP)
	a.loadPairFromStateExt(regR13, cpustate.OffsetPC)
}

// emitEpilogue flushes every bound register, writes the block's final
// Status byte and R14 (still 0) into State.Cycles, and returns.
func (a *asm) emitEpilogue(status cpustate.Status) {
	a.flushAll()
	a.bytes(0xC6, modrm(1, 0, regBP), byte(cpustate.OffsetStatus), byte(status))
	a.bytes(rex(false, true, false, false), 0x89, modrm(1, regR14&7, regBP), byte(cpustate.OffsetCycles))
	a.b(0xC3) // ret
}

// nativeEncodable reports whether emitNative has a bespoke x86 encoding
// for this Kind. Everything else still executes correctly (it goes
// through the fallback bracket, same as memory ops) but forgoes the
// native speed win; see DESIGN.md for which Kinds remain on that path.
func nativeEncodable(op decoder.Op) bool {
	switch op.Kind {
	case decoder.KindNop, decoder.KindJumpHL, decoder.KindLoad16Imm,
		decoder.KindIncReg16, decoder.KindDecReg16,
		decoder.KindJump, decoder.KindJumpRelative,
		decoder.KindEnableInterrupts, decoder.KindDisableInterrupts,
		decoder.KindHalt, decoder.KindStop, decoder.KindInvalid:
		return true
	}
	return false
}

// emitNative appends host instructions for a Kind nativeEncodable
// accepts. EI/DI/HALT/STOP/Invalid need no register-level work at all:
// their entire effect is the Status byte emitEpilogue already bakes in
// from blockEndStatus, so they fall into the same empty case as Nop.
func (a *asm) emitNative(op decoder.Op) {
	switch op.Kind {
	case decoder.KindNop, decoder.KindEnableInterrupts, decoder.KindDisableInterrupts,
		decoder.KindHalt, decoder.KindStop, decoder.KindInvalid:
		// no register effect; Status is set by the epilogue.
	case decoder.KindJumpHL:
		// mov r13w, cx
		a.bytes(0x66, rex(false, false, false, true), 0x89, modrm(3, regCX, regR13&7))
	case decoder.KindLoad16Imm:
		a.emitLoad16Imm(op)
	case decoder.KindIncReg16:
		a.emitAdjustReg16(op.Dst16, 1)
	case decoder.KindDecReg16:
		a.emitAdjustReg16(op.Dst16, -1)
	case decoder.KindJump:
		a.emitJumpAbsolute(op)
	case decoder.KindJumpRelative:
		a.emitJumpRelative(op)
	}
}

func reg16Host(r decoder.Reg16) byte {
	switch r {
	case decoder.R16BC:
		return regBX
	case decoder.R16DE:
		return regDX
	case decoder.R16HL:
		return regCX
	default: // R16SP
		return regR12
	}
}

func isExtendedReg16(r decoder.Reg16) bool { return r == decoder.R16SP }

// emitLoad16Imm: mov reg16, imm16 for the bound register named by
// op.Dst16 (SP uses the extended R12 encoding; PC is never a
// KindLoad16Imm target per the decoder).
func (a *asm) emitLoad16Imm(op decoder.Op) {
	reg := reg16Host(op.Dst16)
	if isExtendedReg16(op.Dst16) {
		a.bytes(0x66, rex(false, false, false, true), 0xB8+(reg&7))
	} else {
		a.bytes(0x66, 0xB8+reg)
	}
	a.bytes(byte(op.Imm16), byte(op.Imm16>>8))
}

// emitAdjustReg16 emits `inc reg16` / `dec reg16` (delta is +1 or -1;
// SM83's 16-bit INC/DEC never touch flags, matching the bare x86 inc/dec
// encoding instead of needing an add-with-flags form).
func (a *asm) emitAdjustReg16(r decoder.Reg16, delta int) {
	reg := reg16Host(r)
	// 0x40-0x4F are REX prefixes in 64-bit mode, so no register has a
	// single-byte INC/DEC form; use FF /0 or FF /1.
	modField := byte(0)
	if delta < 0 {
		modField = 1
	}
	if isExtendedReg16(r) {
		a.bytes(0x66, rex(false, false, false, true), 0xFF, modrm(3, modField, reg&7))
		return
	}
	a.bytes(0x66, 0xFF, modrm(3, modField, reg))
}

// emitJumpAbsolute: `mov r13w, imm16` when the condition always holds
// (unconditional JP); conditional forms test the guest flag bits folded
// into AL (the low byte of the bound AF register) the same way the
// epilogue's flag layout does, then skip the move if the flag test
// fails.
func (a *asm) emitJumpAbsolute(op decoder.Op) {
	if op.Cond == decoder.CondAlways {
		a.movR13Imm16(op.Imm16)
		return
	}
	skip := a.emitSkipIfConditionFalse(op.Cond)
	a.movR13Imm16(op.Imm16)
	a.patchShortJump(skip)
}

func (a *asm) movR13Imm16(imm uint16) {
	a.bytes(0x66, rex(false, false, false, true), 0xB8+(regR13&7), byte(imm), byte(imm>>8))
}

// emitJumpRelative adds a signed displacement to R13. By the time this
// runs, Translate has already emitted emitAdvancePC for this
// instruction, so R13 already sits past it; adding Offset needs no
// further adjustment.
func (a *asm) emitJumpRelative(op decoder.Op) {
	if op.Cond == decoder.CondAlways {
		a.addR13Imm8(op.Offset)
		return
	}
	skip := a.emitSkipIfConditionFalse(op.Cond)
	a.addR13Imm8(op.Offset)
	a.patchShortJump(skip)
}

// emitAdvancePC adds this instruction's guest length to R13 before its
// body is emitted, mirroring interp.Step's `s.PC += length` ahead of
// Execute: every Kind, native or fallback, sees a post-instruction PC
// the same way the interpreter does, whether it leaves PC alone,
// overwrites it (a jump/call), or a fallback call pushes it as a return
// address.
func (a *asm) emitAdvancePC(length int) {
	a.addR13Imm8(int8(length))
}

func (a *asm) addR13Imm8(off int8) {
	// add r13w, imm8 (sign-extended): 66 41 83 c5 ib
	a.bytes(0x66, rex(false, false, false, true), 0x83, modrm(3, 0, regR13&7), byte(off))
}

// emitSkipIfConditionFalse tests the guest Z/C flag bits directly out of
// AL (bit 7 = Z, bit 4 = C, matching cpustate's FlagZ/FlagC layout) and
// emits a short conditional jump whose displacement is patched in by
// patchShortJump once the skipped region's length is known. It returns
// the buffer offset of the displacement byte.
func (a *asm) emitSkipIfConditionFalse(cond decoder.Cond) int {
	// test al, mask
	var mask byte
	switch cond {
	case decoder.CondZ, decoder.CondNZ:
		mask = cpustate.FlagZ
	case decoder.CondC, decoder.CondNC:
		mask = cpustate.FlagC
	}
	a.bytes(0xA8, mask) // test al, imm8
	// jz/jnz rel8 depending on whether we skip-if-clear or skip-if-set
	var jcc byte
	switch cond {
	case decoder.CondZ, decoder.CondC:
		jcc = 0x74 // JE/JZ: skip the branch body when the flag bit is clear
	case decoder.CondNZ, decoder.CondNC:
		jcc = 0x75 // JNE/JNZ: skip the branch body when the flag bit is set
	}
	a.bytes(jcc, 0x00) // placeholder rel8
	return len(a.buf) - 1
}

func (a *asm) patchShortJump(dispOffset int) {
	a.buf[dispOffset] = byte(len(a.buf) - (dispOffset + 1))
}

// Translate decodes guest instructions starting at start, one at a time
// via mem, emitting native host code for the control-flow/16-bit Kinds
// nativeEncodable accepts and a fallback call for everything else
// (memory ops and, for now, the 8-bit ALU/rotate/CB family), until a
// block-ending Op is reached (spec §4.1).
func Translate(mem MemoryReader, start uint16) (*Block, error) {
	a := &asm{}
	a.emitPrologue()

	var ops []decoder.Op
	guestLen := 0
	var baseCycles uint32
	var enderBranchCycles uint32

	for {
		addr := start + uint16(guestLen)
		code := [3]byte{mem.Read(addr), mem.Read(addr + 1), mem.Read(addr + 2)}
		op, length, cycles, branchCycles := decoder.Decode(code[:])

		idx := len(ops)
		ops = append(ops, op)
		guestLen += length
		baseCycles += uint32(cycles)

		a.emitAdvancePC(length)
		if nativeEncodable(op) {
			a.emitNative(op)
		} else {
			a.emitFallbackCall(idx)
		}

		if decoder.IsBlockEnder(op) {
			enderBranchCycles = uint32(branchCycles)
			a.emitEpilogue(blockEndStatus(op))
			break
		}
	}

	exec, err := Commit(a.buf)
	if err != nil {
		return nil, fmt.Errorf("jit: commit translated block at %#04x: %w", start, err)
	}

	return &Block{
		Code: a.buf, Exec: exec, GuestLength: guestLen, BaseCycles: baseCycles, Ops: ops,
		EnderBranchCycles: enderBranchCycles,
	}, nil
}

func blockEndStatus(op decoder.Op) cpustate.Status {
	switch op.Kind {
	case decoder.KindHalt:
		return cpustate.StatusHalt
	case decoder.KindStop:
		return cpustate.StatusStop
	case decoder.KindEnableInterrupts:
		return cpustate.StatusEnableInterrupts
	case decoder.KindDisableInterrupts:
		return cpustate.StatusDisableInterrupts
	case decoder.KindInvalid:
		return cpustate.StatusInvalidOpcode
	default:
		return cpustate.StatusNone
	}
}

// emitFallbackCall brackets a call to fallbackTrampoline with a full
// register flush/reload, passing this Op's index in the block's decoded
// sequence so the callback can re-run it against ctx.State/ctx.Bus
// (spec §4.2 — memory-touching and not-yet-natively-encoded Ops share
// this path, so their semantics can never drift from internal/interp's).
func (a *asm) emitFallbackCall(opIndex int) {
	a.flushAll()
	a.bytes(rex(true, true, false, false), 0x89, modrm(3, regR15&7, regDI)) // mov rdi, r15
	a.movRegImm64Legacy(regSI, uint64(opIndex))                             // mov rsi, imm64
	a.movRegImm64Legacy(regAX, uint64(fallbackCallback()))                  // mov rax, imm64
	a.bytes(0xFF, modrm(3, 2, regAX))                                       // call rax
	a.reloadAll()
}

func (a *asm) movRegImm64Legacy(reg byte, imm uint64) {
	a.bytes(rex(true, false, false, false), 0xB8+reg)
	a.u64(imm)
}
