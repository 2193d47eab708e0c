package ppu

// frame holds one composited frame as DMG 2-bit color indices (0-3), one
// row at a time as each scanline finishes mode 3. Sprite pixels carry no
// palette selection: internal/system shades every index through BGP, so
// OBP0/OBP1 are not applied.
type frame struct {
	pixels [144][160]byte
}

// LineRegs reports register values relevant to a specific scanline's
// rendering. Only WinLine exists today (the internal window-line
// counter); ly is range-checked against the visible frame but otherwise
// unused since nothing else here is latched per scanline.
type LineRegs struct {
	WinLine byte
}

// renderLine composites background, window, and sprites for ly the way
// DMG hardware's priority rules require: for each pixel, a sprite pixel
// shows unless either it is transparent (color 0) or it is marked
// BG-priority (OAM attribute bit 7) and the background pixel underneath
// is not color 0. Grounded on teacher scanline.go/fetcher.go's
// already-isolated BG/window fetcher helpers; RenderWindowScanlineUsingFetcher
// existed there but nothing ever called it until this method.
func (p *PPU) renderLine(ly byte) {
	if p.lcdc&0x80 == 0 {
		return
	}

	var bg [160]byte
	if p.lcdc&0x01 != 0 {
		mapBase := uint16(0x9800)
		if p.lcdc&0x08 != 0 {
			mapBase = 0x9C00
		}
		bg = RenderBGScanlineUsingFetcher(p, mapBase, p.lcdc&0x10 != 0, p.scx, p.scy, ly)
	}

	windowVisible := p.lcdc&0x20 != 0 && p.lcdc&0x01 != 0 && int(ly) >= int(p.wy) && p.wx <= 166
	if windowVisible {
		winMapBase := uint16(0x9800)
		if p.lcdc&0x40 != 0 {
			winMapBase = 0x9C00
		}
		wxStart := int(p.wx) - 7
		win := RenderWindowScanlineUsingFetcher(p, winMapBase, p.lcdc&0x10 != 0, wxStart, p.windowLine)
		start := wxStart
		if start < 0 {
			start = 0
		}
		for x := start; x < 160; x++ {
			bg[x] = win[x]
		}
		p.windowLine++
	}

	obj := p.renderObjectLine(ly, bg)

	var out [160]byte
	for x := 0; x < 160; x++ {
		out[x] = bg[x]
		if obj[x] != 0 {
			out[x] = obj[x]
		}
	}
	p.fb.pixels[ly] = out
}

// Framebuffer returns the most recently composited frame as 2-bit DMG
// color indices, background/window and sprite pixels alike; it does not
// record which palette register a pixel belongs to.
func (p *PPU) Framebuffer() [144][160]byte { return p.fb.pixels }

// LineRegs returns the live window-line counter for ly. Since nothing
// else in this model is latched per scanline, an out-of-range ly simply
// returns the zero value; in range, every ly sees the same live counter
// (it only advances once, as the PPU crosses that scanline's render
// point) so the caller can poll it before or after that point.
func (p *PPU) LineRegs(ly int) LineRegs {
	if ly < 0 || ly >= 144 {
		return LineRegs{}
	}
	return LineRegs{WinLine: p.windowLine}
}
