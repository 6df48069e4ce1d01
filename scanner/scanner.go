// Package scanner walks a flash sector's entry region, classifies every
// slot (USED/DELETED/FREE), and locates entries by key. It also builds
// the in-memory control-state cache the engine consults between scans:
// a bitset of USED slot positions and a Bloom filter over USED key
// bytes, so that iteration and lookup don't have to re-read flash for
// every query.
package scanner

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/bits-and-blooms/bloom/v3"

	"github.com/kved-go/kved/codec"
	"github.com/kved-go/kved/flash"
)

// Stats mirrors spec.md §3's control-state counters. USED + DELETED +
// FREE always equals TOTAL.
type Stats struct {
	Total   uint16
	Used    uint16
	Deleted uint16
	Free    uint16
}

// bloomFalsePositiveRate is deliberately loose: a false positive only
// costs one wasted linear scan, never a wrong answer, so there is no
// reason to pay for a tighter filter on a microcontroller's memory
// budget.
const bloomFalsePositiveRate = 0.01

// Cache is the scanned snapshot of one sector's entry region, including
// the bounds and stats spec.md §3 assigns to the control state, plus
// the USED-slot bitmap and key Bloom filter that back fast iteration
// and lookup (SPEC_FULL.md §4.2/§10).
type Cache struct {
	FirstIndex     int
	LastIndex      int
	FirstFreeIndex int
	Stats          Stats

	used  *bitset.BitSet
	bloom *bloom.BloomFilter
}

func slotCount(firstIndex, lastIndex int) uint {
	if lastIndex < firstIndex {
		return 0
	}
	return uint((lastIndex-firstIndex)/codec.EntrySizeWords + 1)
}

func slotOf(firstIndex, index int) uint {
	return uint((index - firstIndex) / codec.EntrySizeWords)
}

// Scan walks sector's entry region slot by slot, classifying every slot
// and rebuilding the bitmap/Bloom-filter cache from scratch. It is
// O(S/w), performed at Init, after a sector switch, and after Format,
// matching spec.md §4.2.
func Scan(d flash.Driver, sector flash.Sector) (*Cache, error) {
	wordSize := d.WordSize()
	firstIndex := codec.HeaderSizeWords
	lastIndex := d.SectorSize()/wordSize - codec.HeaderSizeWords

	c := &Cache{
		FirstIndex:     firstIndex,
		LastIndex:      lastIndex,
		FirstFreeIndex: codec.NotFound,
		used:           bitset.New(slotCount(firstIndex, lastIndex)),
		bloom:          bloom.NewWithEstimates(uint(slotCount(firstIndex, lastIndex))+1, bloomFalsePositiveRate),
	}

	for index := firstIndex; index <= lastIndex; index += codec.EntrySizeWords {
		key, err := d.Read(sector, index)
		if err != nil {
			return nil, err
		}

		switch {
		case codec.IsDeletedWord(key):
			c.Stats.Deleted++
		case codec.IsFreeWord(key):
			c.Stats.Free++
			if c.FirstFreeIndex == codec.NotFound {
				c.FirstFreeIndex = index
			}
		default:
			c.Stats.Used++
			c.used.Set(slotOf(firstIndex, index))
			c.bloom.Add(codec.MaskHeader(key))
		}

		c.Stats.Total++
	}

	return c, nil
}

// IsUsed reports whether index, as classified by the most recent Scan
// (updated incrementally by the caller thereafter), holds a USED entry.
func (c *Cache) IsUsed(index int) bool {
	if index < c.FirstIndex || index > c.LastIndex {
		return false
	}
	return c.used.Test(slotOf(c.FirstIndex, index))
}

// MarkUsed records that index now holds a USED entry with the given
// (header-masked) key bytes, keeping the bitmap and Bloom filter
// current without a full rescan.
func (c *Cache) MarkUsed(index int, maskedKey []byte) {
	c.used.Set(slotOf(c.FirstIndex, index))
	c.bloom.Add(maskedKey)
}

// MarkDeleted records that index no longer holds a USED entry. The
// Bloom filter is intentionally left untouched: it has no delete
// operation, and an occasional stale positive there only costs a wasted
// linear scan, never a wrong answer.
func (c *Cache) MarkDeleted(index int) {
	c.used.Clear(slotOf(c.FirstIndex, index))
}

// Find returns the word index of the USED slot in sector whose
// non-header key bytes match keyWord's, or codec.NotFound. The Bloom
// filter is consulted first: a negative match skips the scan entirely.
func Find(d flash.Driver, sector flash.Sector, c *Cache, keyWord []byte) (int, error) {
	masked := codec.MaskHeader(keyWord)

	if c.bloom != nil && !c.bloom.Test(masked) {
		return codec.NotFound, nil
	}

	for index := c.FirstIndex; index <= c.LastIndex; index += codec.EntrySizeWords {
		if !c.IsUsed(index) {
			continue
		}

		key, err := d.Read(sector, index)
		if err != nil {
			return codec.NotFound, err
		}
		if codec.KeyBytesEqual(key, keyWord) {
			return index, nil
		}
	}

	return codec.NotFound, nil
}
