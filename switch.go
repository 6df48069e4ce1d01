package kved

import (
	"github.com/kved-go/kved/codec"
	"github.com/kved-go/kved/flash"
	"github.com/kved-go/kved/recovery"
	"github.com/kved-go/kved/scanner"
)

// switchSector runs the sector-switch (compaction) protocol of spec.md
// §4.4.1, triggered when the active sector has no FREE slots left.
// overrideKey/overrideVal are the pending write that triggered the
// switch: its update is applied during the copy-forward, not as a
// separate step afterward, so a crash partway through the switch still
// leaves the pending write either fully durable or fully absent.
func (e *Engine) switchSector(overrideKey, overrideVal []byte) error {
	next := e.sector.Other()
	if err := e.driver.Erase(next); err != nil {
		return flashFault(err)
	}

	writeIndex := e.cache.FirstIndex
	overrideApplied := false

	for index := e.cache.FirstIndex; index <= e.cache.LastIndex; index += codec.EntrySizeWords {
		if !e.cache.IsUsed(index) {
			continue
		}

		keyWord, err := e.driver.Read(e.sector, index)
		if err != nil {
			return flashFault(err)
		}

		var valWord []byte
		if codec.KeyBytesEqual(keyWord, overrideKey) {
			keyWord = overrideKey
			valWord = overrideVal
			overrideApplied = true
		} else {
			valWord, err = e.driver.Read(e.sector, index+1)
			if err != nil {
				return flashFault(err)
			}
		}

		if err := e.writeForwardEntry(next, writeIndex, keyWord, valWord); err != nil {
			return err
		}
		writeIndex += codec.EntrySizeWords
	}

	// The pending write was for a brand-new key, not an update to one
	// of the entries just copied: append it as one more entry.
	if !overrideApplied {
		if err := e.writeForwardEntry(next, writeIndex, overrideKey, overrideVal); err != nil {
			return err
		}
	}

	newCounterWord := codec.NextCounter(e.wordSize, codec.CounterWord(e.wordSize, e.counter))
	if err := e.driver.Write(next, 1, newCounterWord); err != nil {
		return flashFault(err)
	}
	if err := e.driver.Write(next, 0, codec.SignatureWord(e.wordSize)); err != nil {
		return flashFault(err)
	}

	// Invalidate the old sector only after the new one's header is
	// durable: a crash between these two writes leaves both sectors
	// with a valid signature, and recovery's Pass A picks the higher
	// counter, which is next (spec.md §4.4.1).
	if err := recovery.InvalidateSector(e.driver, e.sector); err != nil {
		return flashFault(err)
	}

	cache, err := scanner.Scan(e.driver, next)
	if err != nil {
		return flashFault(err)
	}

	e.sector = next
	e.counter = codec.CounterValue(newCounterWord)
	e.cache = cache
	return nil
}

func (e *Engine) writeForwardEntry(sector flash.Sector, index int, keyWord, valWord []byte) error {
	if err := e.driver.Write(sector, index+1, valWord); err != nil {
		return flashFault(err)
	}
	if err := e.driver.Write(sector, index, keyWord); err != nil {
		return flashFault(err)
	}
	return nil
}
