package system

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/kestrelsoft/lr35902jit/internal/cart"
	"github.com/kestrelsoft/lr35902jit/internal/cpustate"
	"github.com/kestrelsoft/lr35902jit/internal/interp"
	"github.com/kestrelsoft/lr35902jit/internal/jit"
	"github.com/kestrelsoft/lr35902jit/internal/membus"
)

// DotsPerFrame is one 154-line frame's worth of T-cycles.
const DotsPerFrame = 456 * 154

// Buttons mirrors the eight-button DMG input surface.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.A {
		m |= membus.JoypA
	}
	if b.B {
		m |= membus.JoypB
	}
	if b.Start {
		m |= membus.JoypStart
	}
	if b.Select {
		m |= membus.JoypSelectBtn
	}
	if b.Up {
		m |= membus.JoypUp
	}
	if b.Down {
		m |= membus.JoypDown
	}
	if b.Left {
		m |= membus.JoypLeft
	}
	if b.Right {
		m |= membus.JoypRight
	}
	return m
}

// jitCapable is true only on the platform internal/jit actually emits
// native code for; everywhere else Machine always uses internal/interp.
var jitCapable = runtime.GOARCH == "amd64" && runtime.GOOS != "windows"

// Machine ties the decoder/interpreter/JIT/membus/cart/ppu packages
// into one runnable system.
type Machine struct {
	cfg Config

	state *cpustate.State
	bus   *membus.Bus
	cache *jit.Cache

	romPath string
}

// New constructs a Machine with no cartridge loaded; LoadCartridge must
// be called before Step/StepFrame.
func New(cfg Config) *Machine {
	m := &Machine{cfg: cfg, state: cpustate.New()}
	if cfg.UseJIT && jitCapable {
		m.cache = jit.NewCache()
	}
	return m
}

// LoadCartridge parses rom's header, builds the matching MBC, and wires
// a fresh Bus/State around it. boot, if at least 256 bytes, is mapped
// over 0x0000-0x00FF until the guest disables it via 0xFF50.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	if _, err := cart.ParseHeader(rom); err != nil {
		return err
	}
	m.bus = membus.New(rom)
	if m.cache != nil {
		m.cache = jit.NewCache()
	}
	if len(boot) >= 0x100 {
		m.bus.SetBootROM(boot)
		m.state = &cpustate.State{SP: 0xFFFE, PC: 0x0000}
	} else {
		m.state = cpustate.New()
	}
	return nil
}

// ROMPath reports the path LoadROMFromFile last loaded, for save-RAM
// sidecar naming by callers.
func (m *Machine) ROMPath() string { return m.romPath }

// LoadROMFromFile reads and loads the ROM at path, recording the path
// for ROMPath.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(data, nil); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// SaveBattery returns the cartridge's battery-backed RAM, if any.
func (m *Machine) SaveBattery() ([]byte, bool) {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	return bb.SaveRAM(), true
}

// LoadBattery restores previously saved battery RAM, if the cartridge
// supports it.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SetButtons reports the live state of all eight buttons to the joypad
// peripheral, which edge-detects each line itself.
func (m *Machine) SetButtons(b Buttons) {
	if m.bus == nil {
		return
	}
	m.bus.SetJoypadState(b.mask())
}

// SetSerialWriter routes bytes shifted out over the serial port to w.
func (m *Machine) SetSerialWriter(w io.Writer) { m.bus.SetSerialWriter(w) }

// Bus exposes the memory/peripheral model for debugger/disassembler use.
func (m *Machine) Bus() *membus.Bus { return m.bus }

// State exposes the live CPU register record for debugger use.
func (m *Machine) State() *cpustate.State { return m.state }

// PullAudio returns up to max stereo frames (interleaved L,R int16
// pairs) for a front end's audio.Player to stream; the underlying APU
// is a placeholder, so these are always silence.
func (m *Machine) PullAudio(max int) []int16 { return m.bus.APU().PullStereo(max) }

// Step runs exactly one guest instruction (servicing at most one
// pending interrupt first) and returns the T-cycles it consumed,
// ticking the bus's peripherals for that many cycles before returning.
func (m *Machine) Step() int {
	s, bus := m.state, m.bus

	if m.cfg.Trace {
		fmt.Fprintf(os.Stderr, "PC=%04X SP=%04X AF=%04X BC=%04X DE=%04X HL=%04X IME=%t\n",
			s.PC, s.SP, s.AF, s.BC, s.DE, s.HL, s.IME)
	}

	// Halt-wake and interrupt dispatch are whole-instruction-boundary
	// events the interpreter already implements correctly (priority
	// order, EI's one-instruction delay via EIPending). A cached or
	// freshly translated block never straddles one of these events —
	// Translate always stops at the first block-ender — so routing
	// every such boundary through interp.Step before ever considering
	// the JIT keeps native code and interrupt handling from ever
	// needing to interact directly.
	if s.Halted || (s.IME && bus.IE()&bus.IF() != 0) {
		cyc := interp.Step(s, bus)
		bus.Tick(cyc)
		return cyc
	}

	if region := m.cacheRegion(); region != nil {
		start := s.PC
		if block := region.Get(start); block != nil {
			return m.invoke(block, start)
		}
		if block, err := jit.Translate(bus, start); err == nil {
			region.Insert(start, block)
			return m.invoke(block, start)
		}
	}

	cyc := interp.Step(s, bus)
	bus.Tick(cyc)
	return cyc
}

// invoke runs a cached/freshly translated Block and ticks the
// peripherals for the cycles it reports. The emitted code does not
// track a conditional ender's branch-taken extra dynamically, so invoke
// adds it itself: if PC did not land where the block falls through to,
// the ender's branch was taken (true by definition for any conditional
// jump/call/ret, and vacuously for an unconditional one, whose
// branchCycles is always 0 anyway). It also applies the block's exit
// Status to the run state the way interp.Execute does for HALT/STOP/DI/EI,
// and completes an EI left pending by the previous block or instruction.
func (m *Machine) invoke(block *jit.Block, start uint16) int {
	s := m.state
	eiWasPending := s.EIPending
	switch jit.Invoke(block, s, m.bus) {
	case cpustate.StatusHalt:
		s.Halted = true
	case cpustate.StatusStop:
		s.Stopped = true
	case cpustate.StatusDisableInterrupts:
		s.IME, s.EIPending, eiWasPending = false, false, false
	case cpustate.StatusEnableInterrupts:
		s.EIPending = true
	}
	if eiWasPending {
		s.IME, s.EIPending = true, false
	}
	cyc := int(block.BaseCycles)
	fallthroughPC := start + uint16(block.GuestLength)
	if m.state.PC != fallthroughPC {
		cyc += int(block.EnderBranchCycles)
	}
	m.bus.Tick(cyc)
	return cyc
}

// cacheRegion reports which jit.Cache region (if any) backs the guest's
// current PC. A nil region means either the JIT is disabled/unsupported
// or PC sits in a span the cache never caches (VRAM, echo RAM, I/O);
// interp.Step handles those directly.
func (m *Machine) cacheRegion() *jit.Region {
	if m.cache == nil {
		return nil
	}
	return m.cache.RegionFor(m.state.PC)
}

// StepFrame runs guest instructions until one full 154-line frame
// (DotsPerFrame T-cycles) has elapsed.
func (m *Machine) StepFrame() {
	var elapsed int
	for elapsed < DotsPerFrame {
		elapsed += m.Step()
	}
}

// Framebuffer returns the most recently composited frame as RGBA bytes
// (160x144x4), the shape ebiten's image draws expect.
func (m *Machine) Framebuffer() []byte {
	fb := m.bus.PPU().Framebuffer()
	bgp := m.bus.PPU().BGP()
	out := make([]byte, 160*144*4)
	for y := 0; y < 144; y++ {
		for x := 0; x < 160; x++ {
			shade := shadeFor(fb[y][x], bgp)
			i := (y*160 + x) * 4
			out[i+0], out[i+1], out[i+2], out[i+3] = shade, shade, shade, 0xFF
		}
	}
	return out
}

// Shades returns the same frame as spec.md's literal external
// interface: 160x144 bytes, one shade (255/170/85/0) per pixel, BGP
// already applied.
func (m *Machine) Shades() [144][160]byte {
	fb := m.bus.PPU().Framebuffer()
	bgp := m.bus.PPU().BGP()
	var out [144][160]byte
	for y := 0; y < 144; y++ {
		for x := 0; x < 160; x++ {
			out[y][x] = shadeFor(fb[y][x], bgp)
		}
	}
	return out
}

// shadeTable maps a 2-bit DMG color index to its literal display shade.
var shadeTable = [4]byte{255, 170, 85, 0}

// shadeFor applies a palette register to a raw color index the way
// BGP/OBP0/OBP1 remap indices on real hardware: each 2-bit group of the
// palette register selects the shade drawn for that color index.
func shadeFor(colorIndex, palette byte) byte {
	shadeIdx := (palette >> (colorIndex * 2)) & 0x03
	return shadeTable[shadeIdx]
}
