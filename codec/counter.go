package codec

import "encoding/binary"

// Generation counters are stored as a little-endian unsigned integer in
// the low 8 bytes of the header's counter word (word 1), zero-padded for
// wider words. Realistic deployments never approach 2^64 sector
// switches, so treating the counter as a uint64 view over the word,
// rather than modeling full word-width arithmetic, loses nothing
// observable while avoiding 128-bit arithmetic for the 16-byte word
// case.

// CounterValue decodes the generation counter from a header counter
// word.
func CounterValue(counterWord []byte) uint64 {
	n := len(counterWord)
	if n > 8 {
		n = 8
	}
	buf := make([]byte, 8)
	copy(buf, counterWord[:n])
	return binary.LittleEndian.Uint64(buf)
}

// CounterWord encodes a generation counter value into a word of the
// given size.
func CounterWord(wordSize int, value uint64) []byte {
	word := make([]byte, wordSize)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	n := wordSize
	if n > 8 {
		n = 8
	}
	copy(word, buf[:n])
	return word
}

// IsMaxCounter reports whether counterWord equals the erased-word
// pattern, i.e. the reserved "never valid" sentinel value.
func IsMaxCounter(counterWord []byte) bool {
	return IsFreeWord(counterWord)
}

// MaxCounterValue is the largest representable counter value in the
// 8-byte-truncated view CounterValue/CounterWord use, i.e. the value
// for a word size of 8 or more. Narrower words have a narrower
// counter field — use MaxCounterValueForWordSize for rollover/
// corruption comparisons, which must key off the actual field width.
const MaxCounterValue = ^uint64(0)

// MaxCounterValueForWordSize returns the largest counter value that
// fits in the counter field of a word of the given size: the field is
// min(wordSize, 8) bytes wide, so at w=4 the reserved sentinel and the
// rollover point sit at 2^32-1, not the 2^64-1 a fixed-width compare
// would assume.
func MaxCounterValueForWordSize(wordSize int) uint64 {
	n := wordSize
	if n >= 8 {
		return MaxCounterValue
	}
	return uint64(1)<<(8*uint(n)) - 1
}

// NextCounter computes the next generation counter word after cur,
// applying the spec's rollover rule: if cur+1 would equal the reserved
// max sentinel, the next value is 0 instead of cur+1.
func NextCounter(wordSize int, cur []byte) []byte {
	v := CounterValue(cur)
	if v == MaxCounterValueForWordSize(wordSize)-1 {
		return CounterWord(wordSize, 0)
	}
	return CounterWord(wordSize, v+1)
}
