// Command gbjit runs the Sharp LR35902 dynarec: a JIT-accelerated
// Game Boy emulator with an optional windowed front end, a headless
// batch mode for automated testing, and an interactive debugger.
package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kestrelsoft/lr35902jit/internal/cart"
	"github.com/kestrelsoft/lr35902jit/internal/debugger"
	"github.com/kestrelsoft/lr35902jit/internal/system"
	"github.com/kestrelsoft/lr35902jit/internal/ui"
)

type cliFlags struct {
	romPath  string
	bootPath string
	scale    int
	title    string
	trace    bool
	useJIT   bool
	saveRAM  bool

	headless bool
	debug    bool
	frames   int
	pngOut   string
	expect   string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.romPath, "rom", "", "path to ROM (.gb)")
	flag.StringVar(&f.bootPath, "bootrom", "", "optional DMG boot ROM")
	flag.IntVar(&f.scale, "scale", 3, "window scale")
	flag.StringVar(&f.title, "title", "gbjit", "window title")
	flag.BoolVar(&f.trace, "trace", false, "log CPU registers at each step")
	flag.BoolVar(&f.useJIT, "jit", true, "translate and cache hot guest code instead of pure interpretation")
	flag.BoolVar(&f.saveRAM, "save", true, "persist battery RAM to ROM.sav on exit and load on start")

	flag.BoolVar(&f.headless, "headless", false, "run without a window")
	flag.BoolVar(&f.debug, "debug", false, "drop into the interactive debugger instead of running")
	flag.IntVar(&f.frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.pngOut, "outpng", "", "write the last framebuffer to PNG at path")
	flag.StringVar(&f.expect, "expect", "", "assert framebuffer CRC32 (hex)")
	flag.Parse()
	return f
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func savePath(romPath string) string {
	return strings.TrimSuffix(romPath, ".gb") + ".sav"
}

func main() {
	f := parseFlags()
	if f.romPath == "" {
		log.Fatal("-rom is required")
	}
	rom := mustRead(f.romPath)
	boot := mustRead(f.bootPath)

	if h, err := cart.ParseHeader(rom); err == nil {
		log.Printf("ROM: %q type=%s banks=%d ram=%dB", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes)
	}

	m := system.New(system.Config{Trace: f.trace, UseJIT: f.useJIT})
	if err := m.LoadCartridge(rom, boot); err != nil {
		log.Fatalf("load cartridge: %v", err)
	}
	m.SetSerialWriter(os.Stdout)

	sav := savePath(f.romPath)
	if f.saveRAM {
		if data, err := os.ReadFile(sav); err == nil {
			if m.LoadBattery(data) {
				log.Printf("loaded save RAM: %s (%d bytes)", sav, len(data))
			}
		}
	}

	writeBattery := func() {
		if !f.saveRAM {
			return
		}
		if data, ok := m.SaveBattery(); ok {
			if err := os.WriteFile(sav, data, 0644); err == nil {
				log.Printf("wrote %s", sav)
			}
		}
	}

	switch {
	case f.debug:
		session := debugger.NewSession(m, os.Stdout)
		session.Run(os.Stdin, "(gbjit) ")
		writeBattery()
	case f.headless:
		if err := runHeadless(m, f.frames, f.pngOut, f.expect); err != nil {
			log.Fatal(err)
		}
		writeBattery()
	default:
		app := ui.NewApp(ui.Config{Title: f.title, Scale: f.scale}, m)
		if err := app.Run(); err != nil {
			log.Fatal(err)
		}
		writeBattery()
	}
}

func runHeadless(m *system.Machine, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}
	start := time.Now()
	for i := 0; i < frames; i++ {
		m.StepFrame()
	}
	dur := time.Since(start)

	fb := m.Framebuffer()
	crc := crc32.ChecksumIEEE(fb)
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if pngPath != "" {
		if err := saveFramePNG(fb, 160, 144, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}

	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{
		Pix:    make([]byte, len(pix)),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	copy(img.Pix, pix)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
