// Package membus wires the guest CPU's 16-bit address space to the
// cartridge, work RAM, high RAM, PPU, and the timer/joypad/serial
// peripherals, grounded on teacher _examples/.../internal/bus/bus.go.
// Bus satisfies both internal/interp.Bus and internal/jit.MemoryBus/
// MemoryReader with the same two-method Read/Write shape, so the
// interpreter, the JIT's fallback trampoline, and internal/system's
// orchestrator all drive the exact same memory model.
package membus

import (
	"io"

	"github.com/kestrelsoft/lr35902jit/internal/apu"
	"github.com/kestrelsoft/lr35902jit/internal/cart"
	"github.com/kestrelsoft/lr35902jit/internal/ppu"
)

// Bus is the memory and peripheral model one Machine owns.
type Bus struct {
	cart cart.Cartridge

	wram [0x2000]byte // 0xC000-0xDFFF, 8 KiB (no CGB bank switching: wramBank selects nothing)
	hram [0x7F]byte   // 0xFF80-0xFFFE

	ppu *ppu.PPU
	apu *apu.APU

	ie    byte
	ifReg byte

	joypad   joypadState
	timer    timerState
	serial   serialState
	dma      dmaState
	vramBank byte // 0xFF4F: CGB VRAM bank select, latched and read back but selects no bank (Non-goal: CGB banking)
	wramBank byte // 0xFF70: CGB WRAM bank select, latched (0 reads as 1) but selects no bank (Non-goal: CGB banking)

	bootROM     []byte
	bootEnabled bool
}

// New constructs a Bus around the cartridge controller cart.NewCartridge
// selects from rom's header.
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.NewCartridge(rom))
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{cart: c, wramBank: 1}
	b.ppu = ppu.New(func(bit int) { b.ifReg |= 1 << bit })
	b.apu = apu.New(44100)
	return b
}

// PPU exposes the video processor for the rendering front end.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// APU exposes the audio unit for the front end's audio.Player.
func (b *Bus) APU() *apu.APU { return b.apu }

// Cart exposes the cartridge for battery-backed RAM persistence.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// IF returns the current interrupt-flag byte (low 5 bits meaningful);
// internal/system reads this to decide which interrupt, if any, to
// dispatch next.
func (b *Bus) IF() byte { return b.ifReg & 0x1F }

// IE returns the interrupt-enable byte (0xFFFF).
func (b *Bus) IE() byte { return b.ie }

// ClearIF clears the given interrupt-flag bit once its handler has been
// dispatched.
func (b *Bus) ClearIF(bit int) { b.ifReg &^= 1 << bit }

// SetJoypadState reports which buttons are currently pressed; mask uses
// the Joyp* constants in joypad.go.
func (b *Bus) SetJoypadState(mask byte) {
	b.joypad.pressed = mask
	b.joypad.updateIRQ(&b.ifReg)
}

// SetSerialWriter sets a sink that receives each byte shifted out over
// the serial port (spec's Open Question on real shift-clock timing is
// left unresolved; this remains the teacher's print-to-writer model).
func (b *Bus) SetSerialWriter(w io.Writer) { b.serial.sink = w }

// SetBootROM maps a 256-byte DMG boot ROM over 0x0000-0x00FF until a
// non-zero write to 0xFF50 disables it.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[(addr-0x2000)-0xC000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dma.active {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	case addr == 0xFF00:
		return b.joypad.read()
	case addr == 0xFF01, addr == 0xFF02:
		return b.serial.read(addr)
	case addr == 0xFF04, addr == 0xFF05, addr == 0xFF06, addr == 0xFF07:
		return b.timer.read(addr)
	case addr == 0xFF0F:
		return 0xE0 | (b.ifReg & 0x1F)
	case addr >= 0xFF10 && addr <= 0xFF3F:
		return b.apu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma.reg
	case addr == 0xFF4F:
		return 0xFE | b.vramBank
	case addr == 0xFF50:
		return 0xFF
	case addr == 0xFF70:
		return 0xF8 | b.wramBank
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.ie
	}
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		if mirror >= 0xC000 && mirror <= 0xDDFF {
			b.wram[mirror-0xC000] = value
		}
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if !b.dma.active {
			b.ppu.CPUWrite(addr, value)
		}
	case addr == 0xFF00:
		b.joypad.writeSelect(value, &b.ifReg)
	case addr == 0xFF01, addr == 0xFF02:
		b.serial.write(addr, value, &b.ifReg)
	case addr == 0xFF04, addr == 0xFF05, addr == 0xFF06, addr == 0xFF07:
		b.timer.write(addr, value, &b.ifReg)
	case addr == 0xFF0F:
		b.ifReg = value & 0x1F
	case addr >= 0xFF10 && addr <= 0xFF3F:
		b.apu.CPUWrite(addr, value)
	case addr == 0xFF46:
		b.dma.trigger(value)
	case addr == 0xFF4F:
		b.vramBank = value & 0x01 // latched but never switches banks (Non-goal)
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
	case addr == 0xFF70:
		if value&0x07 == 0 {
			b.wramBank = 1
		} else {
			b.wramBank = value & 0x07 // latched; internal/membus keeps a single WRAM image (Non-goal)
		}
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
	case addr == 0xFFFF:
		b.ie = value
	}
}

// Tick advances timer, OAM DMA, and video by the given number of
// T-cycles, one cycle at a time so the timer's falling-edge detection
// and the PPU's dot-accurate mode scheduling both see every step.
func (b *Bus) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		b.timer.tickOne(&b.ifReg)
		b.dma.tickOne(b)
		if b.ppu != nil {
			b.ppu.Tick(1)
		}
		if b.apu != nil {
			b.apu.Tick(1)
		}
	}
}
