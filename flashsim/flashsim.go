// Package flashsim is a hosted test double for package flash: an
// in-memory flash.Driver that enforces real NOR semantics (Write can
// only clear bits, Erase is the only way to set them back), plus a
// write-log recorder and replay helper used to build crash-safety
// tests — run an operation's writes up to some prefix, rebuild a fresh
// Sim from just that prefix, and check that kved's recovery pass
// restores an invariant-respecting state.
//
// Grounded on original_source/port/simul/port_flash.c, generalized from
// a fixed 4-byte word / 16-word sector to arbitrary word width and
// sector size, and hardened to actually reject the "resurrect an erased
// bit without erasing" bug class the original simulator allowed. Unlike
// that simulator — whose kved_flash_init erases both sectors, since its
// backing arrays are fresh process memory with nothing to recover —
// Sim.Init is a no-op, matching what every real MCU port in the same
// tree does (port/stm32f4/port_flash.c's kved_flash_init is empty):
// a flash driver's Init must never destroy the contents recovery
// depends on.
package flashsim

import (
	"fmt"

	"github.com/kved-go/kved/flash"
)

// Sim is an in-memory pair of flash sectors.
type Sim struct {
	wordSize   int
	sectorSize int
	sectors    [flash.NumSectors][]byte
}

// New creates a Sim with the given word size (4, 8, or 16 bytes) and
// sector size in bytes. sectorSize must be a multiple of wordSize.
func New(wordSize, sectorSize int) (*Sim, error) {
	if wordSize != 4 && wordSize != 8 && wordSize != 16 {
		return nil, fmt.Errorf("flashsim: invalid word size %d", wordSize)
	}
	if sectorSize <= 0 || sectorSize%wordSize != 0 {
		return nil, fmt.Errorf("flashsim: sector size %d not a multiple of word size %d", sectorSize, wordSize)
	}

	s := &Sim{wordSize: wordSize, sectorSize: sectorSize}
	for sec := range s.sectors {
		s.sectors[sec] = make([]byte, sectorSize)
	}
	return s, nil
}

// Init is a no-op: real NOR flash retains its contents across a driver
// Init call (that's the entire point of nonvolatile storage the engine
// recovers from at boot). A Sim's sectors start zero-valued from New,
// representing untouched memory; call Erase explicitly to model a
// blank, erased chip.
func (s *Sim) Init() error { return nil }

func (s *Sim) SectorSize() int { return s.sectorSize }
func (s *Sim) WordSize() int   { return s.wordSize }

func (s *Sim) Erase(sec flash.Sector) error {
	buf, err := s.buffer(sec)
	if err != nil {
		return err
	}
	for i := range buf {
		buf[i] = 0xFF
	}
	return nil
}

func (s *Sim) Write(sec flash.Sector, wordIndex int, word []byte) error {
	if len(word) != s.wordSize {
		return fmt.Errorf("flashsim: write word length %d, want %d", len(word), s.wordSize)
	}
	buf, err := s.buffer(sec)
	if err != nil {
		return err
	}
	off, err := s.offset(wordIndex)
	if err != nil {
		return err
	}
	// Real NOR flash can only clear bits between erasures: AND the new
	// pattern into what's already there instead of overwriting, so a
	// caller accidentally trying to set an already-cleared bit silently
	// fails to set it rather than appearing to succeed.
	for i := 0; i < s.wordSize; i++ {
		buf[off+i] &= word[i]
	}
	return nil
}

func (s *Sim) Read(sec flash.Sector, wordIndex int) ([]byte, error) {
	buf, err := s.buffer(sec)
	if err != nil {
		return nil, err
	}
	off, err := s.offset(wordIndex)
	if err != nil {
		return nil, err
	}
	out := make([]byte, s.wordSize)
	copy(out, buf[off:off+s.wordSize])
	return out, nil
}

func (s *Sim) buffer(sec flash.Sector) ([]byte, error) {
	if sec < 0 || int(sec) >= len(s.sectors) {
		return nil, fmt.Errorf("flashsim: invalid sector %d", sec)
	}
	return s.sectors[sec], nil
}

func (s *Sim) offset(wordIndex int) (int, error) {
	off := wordIndex * s.wordSize
	if wordIndex < 0 || off+s.wordSize > s.sectorSize {
		return 0, fmt.Errorf("flashsim: word index %d out of range", wordIndex)
	}
	return off, nil
}

var _ flash.Driver = (*Sim)(nil)
