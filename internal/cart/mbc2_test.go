package cart

import "testing"

func TestMBC2_ROMBanking(t *testing.T) {
	rom := make([]byte, 256*1024)
	for bank := 0; bank < 16; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC2(rom)

	if got := m.Read(0x0000); got != 0x00 {
		t.Fatalf("bank0 read got %02X want 00", got)
	}
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("switchable bank defaults to 1, got %02X", got)
	}

	// Bit 8 of the address set selects the ROM bank.
	m.Write(0x2100, 0x05)
	if got := m.Read(0x4000); got != 0x05 {
		t.Fatalf("bank5 read got %02X want 05", got)
	}

	// Writing 0 remaps to 1.
	m.Write(0x2100, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %02X", got)
	}
}

func TestMBC2_BuiltinRAMRequiresEnableAndMasksToNibble(t *testing.T) {
	m := NewMBC2(make([]byte, 0x4000))

	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("RAM disabled read got %02X want FF", got)
	}

	// Bit 8 clear selects the RAM-enable latch.
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0xFF)
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("nibble RAM read got %02X want FF (high nibble forced to 1s)", got)
	}

	m.Write(0xA001, 0x03)
	if got := m.Read(0xA001); got != 0xF3 {
		t.Fatalf("nibble RAM read got %02X want F3", got)
	}
}

func TestMBC2_RAMMirrorsAcrossUpperWindow(t *testing.T) {
	m := NewMBC2(make([]byte, 0x4000))
	m.Write(0x0000, 0x0A)

	m.Write(0xA010, 0x07)
	if got := m.Read(0xA210); got != 0xF7 {
		t.Fatalf("mirrored read at A210 got %02X want F7", got)
	}
}
