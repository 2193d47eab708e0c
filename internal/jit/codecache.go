// Package jit translates decoded guest basic blocks into host machine
// code and caches the result, keyed by guest address and the current
// bank of whichever memory region the block starts in (spec §6).
//
// Grounded on _examples/original_source/src/cache/blocks.rs: the
// CachedBlocks/CacheRegion split keys each region's blocks by the bank
// they were translated under, so a ROM bank switch only changes which of
// that region's blocks are reachable instead of flushing the whole cache.
package jit

import (
	"sort"

	"github.com/kestrelsoft/lr35902jit/internal/decoder"
)

// Block is a translated guest basic block: the host machine code to
// invoke, how many guest bytes it covers, its base cycle cost, and the
// decoded instruction sequence it came from (needed by Invoke to build
// the Context the fallback callback indexes into, and by the
// orchestrator to charge a conditional ender's branch-taken extra).
type Block struct {
	Code        []byte            // the raw bytes Translate emitted, for introspection/tests
	Exec        *ExecutableRegion // Code copied into an OS-backed RX mapping; Invoke calls into this, not Code
	GuestLength int               // bytes of guest code this block translates
	BaseCycles  uint32            // base cycle cost if the terminating branch falls through
	Ops         []decoder.Op

	// EnderBranchCycles is the extra T-cycles a conditional block-ending
	// Op costs when its branch is taken rather than falling through
	// (decoder.Decode's branchCycles for that one Op). The emitted code
	// does not track this dynamically, so the orchestrator adds it
	// itself after the call, by comparing the resulting PC against the
	// block's static fallthrough address.
	EnderBranchCycles uint32
}

// release unmaps a discarded block's executable region. Best-effort: a
// munmap failure here leaks a page but cannot be acted on usefully by a
// cache eviction path.
func (b *Block) release() {
	if b.Exec != nil {
		b.Exec.Close()
	}
}

// Location identifies a block by the bank it was translated under and
// its guest address, packed the way the original dynarec's
// MemoryLocation::as_u32 does: (bank<<16)|address.
type Location struct {
	Bank    uint16
	Address uint16
}

func (l Location) key() uint32 { return uint32(l.Bank)<<16 | uint32(l.Address) }

// Region is one memory-mapped span's block cache. It tracks the bank
// currently mapped into that span; SetBank changes which bank's blocks
// Get/Insert/Invalidate see, without discarding any.
type Region struct {
	blocks      map[uint32]*Block
	currentBank uint16
}

func newRegion() *Region {
	return &Region{blocks: make(map[uint32]*Block)}
}

// Get returns the cached block at address under the region's current
// bank, or nil if none is cached there.
func (r *Region) Get(address uint16) *Block {
	return r.blocks[Location{Bank: r.currentBank, Address: address}.key()]
}

// Insert caches a freshly translated block at address under the current
// bank, releasing whatever block previously occupied that slot.
func (r *Region) Insert(address uint16, b *Block) {
	key := Location{Bank: r.currentBank, Address: address}.key()
	if old, ok := r.blocks[key]; ok {
		old.release()
	}
	r.blocks[key] = b
}

// Invalidate drops the cached block starting exactly at address (used
// when a guest write lands on a block's first byte).
func (r *Region) Invalidate(address uint16) {
	key := Location{Bank: r.currentBank, Address: address}.key()
	if old, ok := r.blocks[key]; ok {
		old.release()
		delete(r.blocks, key)
	}
}

// InvalidateContaining drops every cached block under the current bank
// whose guest byte range covers address. Used for a guest write that
// lands inside a block rather than exactly on its first instruction.
func (r *Region) InvalidateContaining(address uint16) {
	for key, b := range r.blocks {
		bank := uint16(key >> 16)
		start := uint16(key)
		if bank != r.currentBank {
			continue
		}
		end := start + uint16(b.GuestLength)
		if address >= start && address < end {
			b.release()
			delete(r.blocks, key)
		}
	}
}

// SetBank switches the region's active bank. No blocks are discarded —
// the region simply starts looking up a different (bank, address) key
// space, the way a real bank switch makes previously cached translations
// for the old bank unreachable without needing to be freed eagerly.
func (r *Region) SetBank(bank uint16) { r.currentBank = bank }

// InvalidateAll drops every cached block in the region, regardless of
// bank. Used when the whole region's backing store changes shape (e.g.
// cartridge RAM is disabled then re-enabled pointing at different banks).
func (r *Region) InvalidateAll() {
	for _, b := range r.blocks {
		b.release()
	}
	r.blocks = make(map[uint32]*Block)
}

// Len reports how many blocks are currently cached, for tests and
// diagnostics.
func (r *Region) Len() int { return len(r.blocks) }

// Addresses returns the cached addresses under the region's current
// bank, sorted, for deterministic test assertions.
func (r *Region) Addresses() []uint16 {
	var out []uint16
	for key := range r.blocks {
		if uint16(key>>16) == r.currentBank {
			out = append(out, uint16(key))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Cache partitions the cacheable guest address space into regions (spec
// §6): ROM bank 0, switchable ROM bank, cartridge RAM, the two WRAM
// banks, and high RAM. VRAM, OAM, and I/O are deliberately excluded —
// code never executes from them on real hardware.
type Cache struct {
	ROMLow   *Region // 0x0000-0x3FFF
	ROMHigh  *Region // 0x4000-0x7FFF
	CartRAM  *Region // 0xA000-0xBFFF
	WRAMLow  *Region // 0xC000-0xCFFF
	WRAMHigh *Region // 0xD000-0xDFFF
	HighRAM  *Region // 0xFF80-0xFFFE
}

// NewCache builds an empty cache with one Region per memory span.
func NewCache() *Cache {
	return &Cache{
		ROMLow:   newRegion(),
		ROMHigh:  newRegion(),
		CartRAM:  newRegion(),
		WRAMLow:  newRegion(),
		WRAMHigh: newRegion(),
		HighRAM:  newRegion(),
	}
}

// RegionFor returns the Region backing address, or nil if address falls
// in a span that is never cacheable (VRAM, OAM, echo RAM, I/O, IE).
func (c *Cache) RegionFor(address uint16) *Region {
	switch {
	case address < 0x4000:
		return c.ROMLow
	case address < 0x8000:
		return c.ROMHigh
	case address < 0xA000:
		return nil // VRAM
	case address < 0xC000:
		return c.CartRAM
	case address < 0xD000:
		return c.WRAMLow
	case address < 0xE000:
		return c.WRAMHigh
	case address < 0xFF80:
		return nil // echo RAM, OAM, I/O
	case address == 0xFFFF:
		return nil // IE register
	default:
		return c.HighRAM
	}
}

// InvalidateWrite notifies the cache that the guest wrote to address, so
// any block depending on the old bytes there is dropped. Writes to
// ROM are bank-select writes, not code mutation, and the orchestrator
// calls SetBank on the relevant region for those instead; InvalidateWrite
// is for writes to a cacheable RAM region (self-modifying code).
func (c *Cache) InvalidateWrite(address uint16) {
	r := c.RegionFor(address)
	if r == nil {
		return
	}
	r.InvalidateContaining(address)
}
