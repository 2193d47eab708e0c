package system

import "testing"

// blankROM returns a minimally valid ROM-only cartridge image: large
// enough for ParseHeader, cart type 0x00, and an infinite JR -2 loop at
// the reset vector so tests can drive a bounded number of steps without
// running off the end of a zeroed ROM (which would decode as NOPs
// forever, harmless but not useful to assert against).
func blankROM(size int) []byte {
	rom := make([]byte, size)
	rom[0x0147] = 0x00 // ROM ONLY
	rom[0x0100] = 0x18 // JR -2
	rom[0x0101] = 0xFE
	return rom
}

func TestLoadCartridgeAndStep(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(0x8000), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if got := m.State().PC; got != 0x0100 {
		t.Fatalf("PC = %04X, want post-boot default 0x0100", got)
	}
	cyc := m.Step()
	if cyc != 12 {
		t.Fatalf("JR -2 cost %d cycles, want 12 (unconditional JR taken)", cyc)
	}
	if got := m.State().PC; got != 0x0100 {
		t.Fatalf("PC after JR -2 = %04X, want back at 0x0100", got)
	}
}

func TestLoadCartridgeWithBootROM(t *testing.T) {
	m := New(Config{})
	boot := make([]byte, 0x100)
	boot[0] = 0x00 // NOP
	if err := m.LoadCartridge(blankROM(0x8000), boot); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if got := m.State().PC; got != 0x0000 {
		t.Fatalf("PC = %04X, want 0x0000 with a boot ROM mapped", got)
	}
}

func TestStepFrameAdvancesLY(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(0x8000), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.Bus().Write(0xFF40, 0x91) // LCD+BG+OBJ on
	m.StepFrame()
	if ly := m.Bus().Read(0xFF44); ly != 0 {
		t.Fatalf("LY after one full frame = %d, want wrapped back to 0", ly)
	}
}

func TestSetButtonsReachesJoypad(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(0x8000), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.Bus().Write(0xFF00, 0xDF) // select action buttons (bit5=0, bit4=1)
	m.SetButtons(Buttons{A: true})
	if got := m.Bus().Read(0xFF00) & 0x0F; got&0x01 != 0 {
		t.Fatalf("JOYP A-bit = %d, want 0 (pressed, active-low)", got&0x01)
	}
}

func TestShadeForAppliesPaletteRemap(t *testing.T) {
	// Identity palette (0xE4 = 11 10 01 00): index N maps to shade N.
	for ci := byte(0); ci < 4; ci++ {
		if got := shadeFor(ci, 0xE4); got != shadeTable[ci] {
			t.Fatalf("shadeFor(%d, identity) = %d, want %d", ci, got, shadeTable[ci])
		}
	}
	// Inverted palette (0x1B = 00 01 10 11): index 0 maps to shade 3.
	if got := shadeFor(0, 0x1B); got != shadeTable[3] {
		t.Fatalf("shadeFor(0, inverted) = %d, want %d", got, shadeTable[3])
	}
}

func TestBatterySaveLoadRoundTrip(t *testing.T) {
	rom := blankROM(0x8000)
	rom[0x0147] = 0x06 // MBC2+BATTERY
	m := New(Config{})
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.Bus().Write(0x0000, 0x0A) // enable RAM
	m.Bus().Write(0xA000, 0x07)
	data, ok := m.SaveBattery()
	if !ok {
		t.Fatal("SaveBattery: not supported, want MBC2 battery support")
	}

	m2 := New(Config{})
	if err := m2.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge (m2): %v", err)
	}
	if !m2.LoadBattery(data) {
		t.Fatal("LoadBattery: not supported")
	}
	m2.Bus().Write(0x0000, 0x0A)
	if got := m2.Bus().Read(0xA000) & 0x0F; got != 0x07 {
		t.Fatalf("restored RAM nibble = %02X, want 07", got)
	}
}
