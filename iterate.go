package kved

import (
	"iter"

	"github.com/kved-go/kved/codec"
)

// Iterate returns a range-over-func sequence of every USED record in
// the active sector, built on top of FirstUsedIndex/NextUsedIndex. It
// is sugar over those index-based primitives, which remain the
// contract surface spec.md §6 describes; iteration order is physical
// slot order and is not stable across intervening Write/Delete/sector
// switches, matching the donor WAL reader's iter.Seq2[Log, error]
// range-over-func style.
func (e *Engine) Iterate() iter.Seq[codec.Record] {
	return func(yield func(codec.Record) bool) {
		for index := e.FirstUsedIndex(); index != codec.NotFound; index = e.NextUsedIndex(index) {
			rec, err := e.ReadByIndex(index)
			if err != nil {
				return
			}
			if !yield(rec) {
				return
			}
		}
	}
}
