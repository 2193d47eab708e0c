package ppu

import "testing"

// TestRenderLineCompositesBGAndSprite drives a live PPU through one full
// scanline and checks that Framebuffer() reflects both the background tile
// fetch and a sprite overlay, exercising the wiring in frame.go rather than
// the fetcher/composer helpers in isolation.
func TestRenderLineCompositesBGAndSprite(t *testing.T) {
	p := New(nil)

	// BG map tile 0 (0x9800) points at tile #1; its row-0 bytes make every
	// pixel color index 1.
	p.CPUWrite(0xFF40, 0x80) // LCD on first so VRAM/OAM writes below land
	p.vram[0x9800-0x8000] = 1
	p.vram[0x8010-0x8000] = 0xFF // lo
	p.vram[0x8011-0x8000] = 0x00 // hi

	// One sprite at screen (5,0), tile #2, row-0 bytes make only the first
	// pixel (screen x=5) opaque with color index 3.
	p.oam[0] = 16 // Y: screen 0
	p.oam[1] = 13 // X: screen 5
	p.oam[2] = 2  // tile
	p.oam[3] = 0  // attrs
	p.vram[0x8020-0x8000] = 0x80
	p.vram[0x8021-0x8000] = 0x80

	p.CPUWrite(0xFF40, 0x80|0x01|0x02|0x10) // LCD+BG+OBJ+0x8000 addressing
	p.Tick(456)                             // run line 0 to completion

	fb := p.Framebuffer()
	for x := 0; x < 8; x++ {
		want := byte(1)
		if x == 5 {
			want = 3
		}
		if fb[0][x] != want {
			t.Fatalf("pixel %d = %d, want %d", x, fb[0][x], want)
		}
	}
	if fb[0][8] != 0 {
		t.Fatalf("pixel 8 = %d, want 0 (untouched map tile)", fb[0][8])
	}
}

// TestRenderLineSkipsWhenLCDOff confirms renderLine leaves the framebuffer
// untouched while the LCD is disabled, matching real hardware's blank
// screen rather than producing stale or garbage rows.
func TestRenderLineSkipsWhenLCDOff(t *testing.T) {
	p := New(nil)
	p.renderLine(0)
	var want [160]byte
	if got := p.Framebuffer()[0]; got != want {
		t.Fatalf("expected untouched row, got %v", got)
	}
}
