// Package ui is a minimal ebiten front end around internal/system.Machine:
// a 160x144 game view, keyboard input, and a silent-but-present audio
// player. Save-state slots, the ROM browser, and the settings/keybinding
// menus the teacher's app shipped are dropped (Non-goal); what survives
// is the actual emulation loop and its input/audio wiring.
package ui

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/kestrelsoft/lr35902jit/internal/system"
)

const sampleRate = 44100

// App drives one Machine through ebiten's game loop.
type App struct {
	cfg Config
	m   *system.Machine
	tex *ebiten.Image

	paused bool
	fast   bool // Tab held: run extra frames per Update

	audioCtx    *audio.Context
	audioPlayer *audio.Player
}

// NewApp wires a front end around m using cfg (Scale/Title default if
// zero-valued).
func NewApp(cfg Config, m *system.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	return &App{cfg: cfg, m: m, audioCtx: audio.NewContext(sampleRate)}
}

// Run starts the ebiten game loop; it blocks until the window closes.
func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) { return 160, 144 }

func (a *App) Update() error {
	if a.audioPlayer == nil {
		stream := &audioStream{m: a.m}
		if p, err := a.audioCtx.NewPlayer(stream); err == nil {
			a.audioPlayer = p
			a.audioPlayer.Play()
		}
	}

	var btn system.Buttons
	if ebiten.IsKeyPressed(ebiten.KeyRight) {
		btn.Right = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyLeft) {
		btn.Left = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) {
		btn.Up = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) {
		btn.Down = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyZ) {
		btn.A = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyX) {
		btn.B = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyEnter) {
		btn.Start = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyShiftRight) {
		btn.Select = true
	}
	a.m.SetButtons(btn)

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if a.paused {
		if inpututil.IsKeyJustPressed(ebiten.KeyN) {
			a.m.StepFrame()
		}
		return nil
	}

	frames := 1
	if a.fast {
		frames = fastForwardMultiplier
	}
	for i := 0; i < frames; i++ {
		a.m.StepFrame()
	}
	return nil
}

// fastForwardMultiplier is how many frames Update runs per tick while
// Tab is held.
const fastForwardMultiplier = 4

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	a.tex.WritePixels(a.m.Framebuffer())
	screen.DrawImage(a.tex, nil)

	if a.paused {
		ebitenutil.DebugPrintAt(screen, "PAUSED", 4, 4)
	}
	if a.fast {
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("FAST x%d", fastForwardMultiplier), 4, 16)
	}
}

// audioStream adapts Machine.PullAudio to io.Reader for audio.Player.
type audioStream struct {
	m *system.Machine
}

func (s *audioStream) Read(p []byte) (int, error) {
	if len(p) < 4 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	frames := len(p) / 4
	samples := s.m.PullAudio(frames)
	for i, v := range samples {
		p[i*2], p[i*2+1] = byte(v), byte(v>>8)
	}
	n := len(samples) * 2
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}
