package recovery

import (
	"github.com/kved-go/kved/codec"
	"github.com/kved-go/kved/flash"
)

// Scrub runs Pass B over sector's entry region, fixing the two kinds of
// damage a crash can leave mid-write:
//
//   - Torn append: the value word was written but the crash landed
//     before the key word that commits the entry (spec.md §5's
//     value-before-key write order), so the key word reads as Free
//     while the value word doesn't. The slot is tombstoned so it is
//     never mistaken for free space and never decoded as live data.
//   - Duplicate live key: an overwrite that crashed after appending the
//     new entry but before tombstoning the old one leaves two USED
//     slots with the same key in this sector. The earlier slot loses;
//     log-structured append order makes the later one authoritative.
//     (Copies split across the two sectors by an interrupted sector
//     switch are settled by Pass A, which keeps only one sector.)
//
// Scrub mutates flash directly rather than through a scanner.Cache,
// since both fixes are themselves tombstone writes that must be
// durable before recovery finishes. Callers must re-run scanner.Scan
// afterward to get a cache consistent with the scrubbed sector: a torn
// entry can turn a FREE slot into DELETED, which shifts FirstFreeIndex
// in a way cheaper to recompute than to track through every case here.
func Scrub(d flash.Driver, sector flash.Sector, firstIndex, lastIndex int) error {
	wordSize := d.WordSize()
	seen := make(map[string]int)

	for index := firstIndex; index <= lastIndex; index += codec.EntrySizeWords {
		keyWord, err := d.Read(sector, index)
		if err != nil {
			return err
		}

		switch {
		case codec.IsFreeWord(keyWord):
			valWord, err := d.Read(sector, index+1)
			if err != nil {
				return err
			}
			if !codec.IsFreeWord(valWord) {
				if err := d.Write(sector, index, codec.DeletedWord(wordSize)); err != nil {
					return err
				}
			}

		case codec.IsDeletedWord(keyWord):
			// already tombstoned, nothing to scrub

		case !codec.IsValidKey(wordSize, keyWord):
			// unrecognized header: neither a live entry nor a clean
			// sentinel, so it can only be damage. Tombstone it.
			if err := d.Write(sector, index, codec.DeletedWord(wordSize)); err != nil {
				return err
			}

		default:
			masked := string(codec.MaskHeader(keyWord))
			if prev, dup := seen[masked]; dup {
				if err := d.Write(sector, prev, codec.DeletedWord(wordSize)); err != nil {
					return err
				}
			}
			seen[masked] = index
		}
	}

	return nil
}
