package kved

import (
	"fmt"
	"io"

	"github.com/kved-go/kved/codec"
)

// Dump writes a human-readable table of the active sector's header and
// every slot (index, state, type, key, raw hex words) to w. It is a
// diagnostic-only capability: nothing in the engine reads its own
// output back, and w can be any io.Writer, including one the caller
// throws away in production builds.
func (e *Engine) Dump(w io.Writer) error {
	e.cs.Enter()
	defer e.cs.Leave()

	if !e.started {
		return ErrNotStarted
	}

	fmt.Fprintf(w, "sector=%s counter=%d wordSize=%d total=%d used=%d deleted=%d free=%d\n",
		e.sector, e.counter, e.wordSize,
		e.cache.Stats.Total, e.cache.Stats.Used, e.cache.Stats.Deleted, e.cache.Stats.Free)

	for index := e.cache.FirstIndex; index <= e.cache.LastIndex; index += codec.EntrySizeWords {
		keyWord, err := e.driver.Read(e.sector, index)
		if err != nil {
			return flashFault(err)
		}
		valWord, err := e.driver.Read(e.sector, index+1)
		if err != nil {
			return flashFault(err)
		}

		switch {
		case codec.IsFreeWord(keyWord):
			fmt.Fprintf(w, "%4d FREE\n", index)
		case codec.IsDeletedWord(keyWord):
			fmt.Fprintf(w, "%4d DELETED\n", index)
		default:
			t, key := codec.DecodeKey(keyWord)
			val := codec.DecodeValue(t, valWord)
			fmt.Fprintf(w, "%4d USED    type=%-4s key=%-16q key_word=% x val_word=% x value=%v\n",
				index, t, key, keyWord, valWord, val)
		}
	}

	return nil
}
