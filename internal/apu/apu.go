// Package apu is a silent placeholder for the DMG audio unit: it
// accepts the same 0xFF10-0xFF3F register window and NR52 power/status
// semantics real software polls, and streams zero-filled stereo PCM
// through the same ebiten audio.Player plumbing a real mixer would use,
// but generates no waveform. Sound synthesis is out of scope; the
// register surface and the streaming shape are not, so guest code that
// probes NR52 or writes wave RAM does not crash or desync.
package apu

// APU tracks just enough register state for CPURead to answer what
// guest code actually polls (mainly NR52's power bit); writes elsewhere
// in the window are stored so a later read sees its own value, matching
// real hardware for channel-control registers that are also readable.
type APU struct {
	enabled  bool
	regs     [0x30]byte // 0xFF10-0xFF3F, indexed by addr-0xFF10
	waveRAM  [0x10]byte // 0xFF30-0xFF3F
	sampleRate int
}

// New returns an APU that reports itself powered on (NR52 bit 7) so
// software waiting for it doesn't hang, and streams silence at
// sampleRate.
func New(sampleRate int) *APU {
	a := &APU{enabled: true, sampleRate: sampleRate}
	a.regs[0xFF26-0xFF10] = 0xF0
	return a
}

// CPURead answers reads in 0xFF10-0xFF3F. Unused bits in write-only
// fields read as 1 on real hardware; this placeholder doesn't model
// that per-register mask and just echoes back what was last written.
func (a *APU) CPURead(addr uint16) byte {
	if addr >= 0xFF30 && addr <= 0xFF3F {
		return a.waveRAM[addr-0xFF30]
	}
	if addr == 0xFF26 {
		status := byte(0)
		if a.enabled {
			status = 0x80
		}
		return status | a.regs[addr-0xFF10]&0x70
	}
	if addr >= 0xFF10 && addr < 0xFF30 {
		return a.regs[addr-0xFF10]
	}
	return 0xFF
}

// CPUWrite records a register write. Writing 0 to NR52 bit 7 powers the
// unit off; real hardware then ignores further writes to NR10-NR51
// until powered back on, which this placeholder does not need to model
// since it never produces sound either way.
func (a *APU) CPUWrite(addr uint16, v byte) {
	if addr >= 0xFF30 && addr <= 0xFF3F {
		a.waveRAM[addr-0xFF30] = v
		return
	}
	if addr == 0xFF26 {
		a.enabled = v&0x80 != 0
		a.regs[addr-0xFF10] = v
		return
	}
	if addr >= 0xFF10 && addr < 0xFF30 {
		a.regs[addr-0xFF10] = v
	}
}

// Tick is a no-op: no channel state advances because no channel
// produces sound.
func (a *APU) Tick(cycles int) {}

// PullStereo returns up to max zero-filled interleaved stereo frames,
// satisfying an audio.Player's Read loop without ever underrunning.
func (a *APU) PullStereo(max int) []int16 {
	if max <= 0 {
		return nil
	}
	return make([]int16, max*2)
}

// StereoAvailable reports an effectively unbounded supply of silence.
func (a *APU) StereoAvailable() int { return 1 << 20 }
