package ppu

// Sprite is one OAM entry already converted to screen-space coordinates
// (X = OAM X - 8, Y = OAM Y - 16), the natural shape for ComposeSpriteLine
// and the per-test fixtures that exercise it directly without a live PPU.
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte // bit7 BG-priority, bit6 Y-flip, bit5 X-flip, bit4 DMG palette
	OAMIndex int
}

func (s Sprite) priority() bool { return s.Attr&0x80 != 0 }
func (s Sprite) yFlip() bool    { return s.Attr&0x40 != 0 }
func (s Sprite) xFlip() bool    { return s.Attr&0x20 != 0 }
func (s Sprite) palette() byte  { return (s.Attr >> 4) & 0x01 }

// scanLine finds every sprite that covers scanline ly directly from OAM,
// in OAM order, then keeps at most 10 — real hardware's own per-line
// sprite limit.
func (p *PPU) scanLine(ly byte) []Sprite {
	height := 8
	if p.lcdc&0x04 != 0 {
		height = 16
	}
	var found []Sprite
	for i := 0; i < 40 && len(found) < 10; i++ {
		base := i * 4
		oamY := int(p.oam[base+0]) - 16
		if int(ly) < oamY || int(ly) >= oamY+height {
			continue
		}
		tile := p.oam[base+2]
		if height == 16 {
			tile &^= 0x01
		}
		found = append(found, Sprite{
			X: int(p.oam[base+1]) - 8, Y: oamY,
			Tile: tile, Attr: p.oam[base+3], OAMIndex: i,
		})
	}
	return found
}

// ComposeSpriteLine renders sprites for scanline ly into a sprite-layer
// row: color 0 always means "no sprite pixel here" (sprite color 0 is
// always transparent on real hardware), and a sprite otherwise opaque at
// a pixel is still left out of the row when it carries the BG-priority
// attribute bit and bgci is non-zero there. Callers composite the result
// over their background row themselves. Ties between overlapping sprites
// go to the smaller X (then the smaller OAM index), matching DMG's
// documented sprite-priority rule.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, tall bool) [160]byte {
	var out [160]byte
	ordered := append([]Sprite(nil), sprites...)
	for a := 1; a < len(ordered); a++ {
		b := a
		for b > 0 && spriteLess(ordered[b], ordered[b-1]) {
			ordered[b], ordered[b-1] = ordered[b-1], ordered[b]
			b--
		}
	}

	height := 8
	if tall {
		height = 16
	}

	// Draw back-to-front (lowest priority first) so the highest-priority
	// sprite's opaque pixels end up on top.
	for i := len(ordered) - 1; i >= 0; i-- {
		s := ordered[i]
		row := int(ly) - s.Y
		if row < 0 || row >= height {
			continue
		}
		if s.yFlip() {
			row = height - 1 - row
		}
		tileNum := uint16(s.Tile)
		if tall {
			tileNum += uint16(row / 8)
			row %= 8
		}
		base := 0x8000 + tileNum*16 + uint16(row)*2
		lo := mem.Read(base)
		hi := mem.Read(base + 1)
		for px := 0; px < 8; px++ {
			sx := s.X + px
			if sx < 0 || sx >= 160 {
				continue
			}
			bit := 7 - px
			if s.xFlip() {
				bit = px
			}
			ci := ((hi>>byte(bit))&1)<<1 | ((lo >> byte(bit)) & 1)
			if ci == 0 {
				continue
			}
			if s.priority() && bgci[sx] != 0 {
				continue
			}
			out[sx] = ci
		}
	}
	return out
}

func spriteLess(a, b Sprite) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.OAMIndex < b.OAMIndex
}

// renderObjectLine is the live-PPU entry point frame.go uses: it scans
// OAM for scanline ly against the current LCDC sprite-enable/size bits
// and returns the sprite-layer row (0 = background shows through).
func (p *PPU) renderObjectLine(ly byte, bg [160]byte) [160]byte {
	if p.lcdc&0x02 == 0 {
		var none [160]byte
		return none
	}
	sprites := p.scanLine(ly)
	return ComposeSpriteLine(p, sprites, ly, bg, p.lcdc&0x04 != 0)
}
