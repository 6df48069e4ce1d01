// Package recovery implements the two-pass boot-time recovery sequence
// spec.md §4.3 describes: Pass A selects which of the two sectors is
// active by comparing header generation counters, invalidating the
// loser, and Pass B scrubs the chosen sector's entry region for damage
// a crash mid-write can leave behind (a torn append, or a duplicate
// live key from an overwrite interrupted before its old slot was
// tombstoned).
package recovery

import (
	"errors"

	"github.com/kved-go/kved/codec"
	"github.com/kved-go/kved/flash"
	"github.com/kved-go/kved/scanner"
)

// ErrNotFormatted is returned by SelectSector when neither sector
// carries a valid header signature: the flash region has never been
// formatted, or both headers were destroyed beyond their counters being
// usable for comparison.
var ErrNotFormatted = errors.New("recovery: no sector carries a valid header")

func hasValidSignature(d flash.Driver, sector flash.Sector) (bool, error) {
	sig, err := d.Read(sector, 0)
	if err != nil {
		return false, err
	}
	return codec.WordsEqual(sig, codec.SignatureWord(d.WordSize())), nil
}

func readCounter(d flash.Driver, sector flash.Sector) (uint64, error) {
	ctr, err := d.Read(sector, 1)
	if err != nil {
		return 0, err
	}
	return codec.CounterValue(ctr), nil
}

// SelectSector runs Pass A. If only one sector carries the header
// signature, it is active outright — the other is either freshly
// erased or was invalidated by a prior sector switch. If both carry
// the signature, the generation counters decide, with two special
// cases ahead of plain comparison:
//
//   - Rollover: one counter at the word-relative max-1
//     (codec.MaxCounterValueForWordSize) and the other at 0 means the
//     0-sector just completed a switch and wrapped; it wins even
//     though its raw counter value is numerically smaller.
//   - Corruption: a counter equal to that word-relative max is the
//     reserved "never valid" sentinel, so that sector cannot have
//     actually reached this generation through normal increments. It
//     loses to the other sector; if both counters are at the max,
//     neither is trustworthy and ErrNotFormatted is returned so the
//     caller reformats.
//
// The losing sector's header is invalidated (InvalidateSector) before
// SelectSector returns, per spec.md's "invalidation is performed by
// writing 0 to word 0" — this makes the decision durable rather than
// re-derived from two equally-valid headers on every boot.
func SelectSector(d flash.Driver) (flash.Sector, uint64, error) {
	validA, err := hasValidSignature(d, flash.SectorA)
	if err != nil {
		return 0, 0, err
	}
	validB, err := hasValidSignature(d, flash.SectorB)
	if err != nil {
		return 0, 0, err
	}

	switch {
	case validA && !validB:
		ctr, err := readCounter(d, flash.SectorA)
		return flash.SectorA, ctr, err
	case validB && !validA:
		ctr, err := readCounter(d, flash.SectorB)
		return flash.SectorB, ctr, err
	case !validA && !validB:
		return 0, 0, ErrNotFormatted
	}

	ctrA, err := readCounter(d, flash.SectorA)
	if err != nil {
		return 0, 0, err
	}
	ctrB, err := readCounter(d, flash.SectorB)
	if err != nil {
		return 0, 0, err
	}

	winner, loser, counter := resolve(ctrA, ctrB, d.WordSize())
	if winner < 0 {
		return 0, 0, ErrNotFormatted
	}

	if err := InvalidateSector(d, loser); err != nil {
		return 0, 0, err
	}
	return winner, counter, nil
}

// resolve applies the rollover/corruption/plain-comparison rules to a
// pair of generation counters read from sectors A and B, returning the
// winning sector, the losing sector, and the winner's counter value.
// winner is -1 if both counters are the corrupt max-value sentinel,
// meaning neither sector can be trusted. The sentinel is keyed to
// wordSize: the counter field is only min(wordSize, 8) bytes wide, so
// the reserved "max" value and the rollover point sit at 2^32-1 for a
// 4-byte word, not the 2^64-1 a fixed-width compare would assume.
func resolve(ctrA, ctrB uint64, wordSize int) (winner, loser flash.Sector, counter uint64) {
	max := codec.MaxCounterValueForWordSize(wordSize)
	switch {
	case ctrA == max-1 && ctrB == 0:
		return flash.SectorB, flash.SectorA, ctrB
	case ctrB == max-1 && ctrA == 0:
		return flash.SectorA, flash.SectorB, ctrA
	case ctrA == max && ctrB == max:
		return -1, -1, 0
	case ctrA == max:
		return flash.SectorB, flash.SectorA, ctrB
	case ctrB == max:
		return flash.SectorA, flash.SectorB, ctrA
	case ctrA >= ctrB:
		return flash.SectorA, flash.SectorB, ctrA
	default:
		return flash.SectorB, flash.SectorA, ctrB
	}
}

// InvalidateSector overwrites sector's header signature word with the
// deleted-word sentinel (all zero bits), so a subsequent SelectSector
// never mistakes it for a candidate active sector. The engine also
// calls this directly on the old sector once a sector switch finishes
// copying every live entry forward (spec.md §4.4.1 step 6).
func InvalidateSector(d flash.Driver, sector flash.Sector) error {
	return d.Write(sector, 0, codec.DeletedWord(d.WordSize()))
}

// Scan rebuilds the control-state cache for sector by delegating to
// scanner.Scan. Recovery exposes this so callers don't need to import
// scanner directly just to drive SelectSector/Scrub/Scan in sequence.
func Scan(d flash.Driver, sector flash.Sector) (*scanner.Cache, error) {
	return scanner.Scan(d, sector)
}
