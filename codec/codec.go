// Package codec implements the on-flash byte layout kved.h describes: a
// two-word entry (encoded key word, raw value word), a two-word sector
// header (signature, generation counter), and the typed value union. All
// functions here are pure — they never touch a flash.Driver — so the
// on-flash bit layout can be tested in isolation from the engine that
// drives it.
//
// Word width w is 4, 8, or 16 bytes, matching the target flash
// controller's programmable unit (flash.Driver.WordSize). Every word in
// this package is a []byte of exactly that length.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// DataType is the type-nibble stored in byte 0 of an encoded key word.
type DataType uint8

const (
	TypeU8 DataType = iota
	TypeI8
	TypeU16
	TypeI16
	TypeU32
	TypeI32
	TypeF32
	TypeString
	TypeU64
	TypeI64
	TypeF64

	numTypes = TypeF64 + 1
)

func (t DataType) String() string {
	names := [numTypes]string{"U8", "I8", "U16", "I16", "U32", "I32", "FLT", "STR", "U64", "I64", "DBL"}
	if int(t) < len(names) {
		return names[t]
	}
	return "?"
}

// wideTypes require WordSize >= 8.
func (t DataType) wide() bool { return t >= TypeU64 }

// headerSize returns the value in spec.md §3's "size" column for t at
// the given word size: a fixed byte count for numeric types, and the
// word width for TypeString (the header's size nibble names the type's
// fixed slot size, not a particular string value's length — string
// entries are length-self-describing only via their NUL padding in the
// value word).
//
// The size nibble is only 4 bits wide, so it cannot literally hold 16
// for a 16-byte-word string slot; it is capped at 15 in that one case.
// DecodeKey never reads the size back, and IsValidKey only checks it
// against this same capped value, so the cap loses no information the
// rest of the engine relies on.
func headerSize(t DataType, wordSize int) (int, bool) {
	switch t {
	case TypeU8, TypeI8:
		return 1, true
	case TypeU16, TypeI16:
		return 2, true
	case TypeU32, TypeI32, TypeF32:
		return 4, true
	case TypeString:
		if wordSize > 15 {
			return 15, true
		}
		return wordSize, true
	case TypeU64, TypeI64, TypeF64:
		return 8, true
	default:
		return 0, false
	}
}

// Record is the logical, decoded user-visible entity: a key, its type,
// and a typed value.
type Record struct {
	Key   string
	Value Value
}

const (
	// NotFound is the sentinel word index meaning "no such entry",
	// returned by Find and by the engine's iteration primitives. Index
	// 0 is always the header's signature word, so it can never be a
	// valid entry index.
	NotFound = 0

	// HeaderSizeWords and EntrySizeWords are both 2: one word each for
	// signature/counter, and one word each for key/value.
	HeaderSizeWords = 2
	EntrySizeWords  = 2
)

// MaxKeyLen returns the longest key (in ASCII bytes, no terminator)
// that fits in a word of the given size: w-1, since byte 0 is the
// header byte.
func MaxKeyLen(wordSize int) int { return wordSize - 1 }

// MaxStringLen returns the longest string value that fits in a value
// word of the given size: the whole word, NUL-padded.
func MaxStringLen(wordSize int) int { return wordSize }

// FreeWord returns the erased-word sentinel (all bytes 0xFF) for the
// given word size.
func FreeWord(wordSize int) []byte {
	w := make([]byte, wordSize)
	for i := range w {
		w[i] = 0xFF
	}
	return w
}

// DeletedWord returns the tombstone sentinel (all bytes 0) for the given
// word size. It doubles as the "null" word used to invalidate a sector
// header.
func DeletedWord(wordSize int) []byte {
	return make([]byte, wordSize)
}

// signaturePattern is 0xDEADBEEF, repeated to fill a word of any
// supported width.
var signaturePattern = [4]byte{0xDE, 0xAD, 0xBE, 0xEF}

// SignatureWord returns the sector-header signature word for the given
// word size: 0xDEADBEEF truncated/repeated to fill wordSize bytes.
func SignatureWord(wordSize int) []byte {
	w := make([]byte, wordSize)
	for i := range w {
		w[i] = signaturePattern[i%4]
	}
	return w
}

// IsFreeWord reports whether word is the erased sentinel.
func IsFreeWord(word []byte) bool {
	for _, b := range word {
		if b != 0xFF {
			return false
		}
	}
	return true
}

// IsDeletedWord reports whether word is the tombstone sentinel.
func IsDeletedWord(word []byte) bool {
	for _, b := range word {
		if b != 0x00 {
			return false
		}
	}
	return true
}

// WordsEqual compares two words of equal length byte-for-byte.
func WordsEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MaskHeader zeroes the header byte (byte 0) of a key word, leaving the
// key-bytes portion used for key-equality comparisons (spec: "compare
// only the non-header bytes of the encoded key word").
func MaskHeader(keyWord []byte) []byte {
	out := make([]byte, len(keyWord))
	copy(out, keyWord)
	if len(out) > 0 {
		out[0] = 0
	}
	return out
}

// KeyBytesEqual compares two key words ignoring their header byte: two
// encodings with identical key bytes but different type/size nibbles are
// the same key.
func KeyBytesEqual(a, b []byte) bool {
	return WordsEqual(MaskHeader(a), MaskHeader(b))
}

// errInvalidKey is returned (wrapped) by EncodeKey for a record that
// IsValidKey would reject once encoded; callers normally check
// IsValidKey on the result rather than matching this error, but it is
// exposed so EncodeKey's own input validation failures are traceable.
var errInvalidKey = errors.New("codec: invalid key or type")

// EncodeKey packs rec's type, size, and key name into a single key word
// of the given width. Layout (spec.md §3/§4.1):
//
//	byte 0:        (type << 4) | size
//	bytes 1..w-1:  ASCII key, left-justified, zero-padded tail
//
// size is the type's fixed size per spec.md §3's type table. EncodeKey
// returns an error if rec's key is
// empty, longer than w-1 bytes, the type code doesn't exist, the type
// needs WordSize >= 8 but wordSize is smaller, or (for strings) the
// value is longer than the value word can hold. The caller should still
// run IsValidKey on the result before trusting it as a flash key: a
// successfully encoded key can only fail to be "valid" if it collides
// with a sentinel pattern, which EncodeKey itself guards against by
// construction, but IsValidKey is the single source of truth the rest
// of the engine relies on.
func EncodeKey(wordSize int, rec Record) ([]byte, error) {
	if len(rec.Key) == 0 || len(rec.Key) > MaxKeyLen(wordSize) {
		return nil, fmt.Errorf("%w: key %q length must be 1..%d", errInvalidKey, rec.Key, MaxKeyLen(wordSize))
	}

	t := rec.Value.Type
	if t >= numTypes {
		return nil, fmt.Errorf("%w: unknown type %d", errInvalidKey, t)
	}
	if t.wide() && wordSize < 8 {
		return nil, fmt.Errorf("%w: type %s requires word size >= 8", errInvalidKey, t)
	}

	if t == TypeString && len(rec.Value.str) > MaxStringLen(wordSize) {
		return nil, fmt.Errorf("%w: string value longer than %d bytes", errInvalidKey, MaxStringLen(wordSize))
	}

	size, ok := headerSize(t, wordSize)
	if !ok {
		return nil, fmt.Errorf("%w: type %s has no fixed size", errInvalidKey, t)
	}

	word := make([]byte, wordSize)
	word[0] = byte(t)<<4 | byte(size)
	copy(word[1:], rec.Key)

	return word, nil
}

// EncodeKeyLookup builds a probe word carrying just key's ASCII bytes
// with a zero header byte, for callers that only have a key name and
// need to compare it against stored keys via Find/KeyBytesEqual (which
// ignore the header byte already). Read and Delete go through this
// rather than EncodeKey, since they don't know the type nibble at
// lookup time; Write looks up with the full word EncodeKey produced.
func EncodeKeyLookup(wordSize int, key string) ([]byte, error) {
	if len(key) == 0 || len(key) > MaxKeyLen(wordSize) {
		return nil, fmt.Errorf("%w: key %q length must be 1..%d", errInvalidKey, key, MaxKeyLen(wordSize))
	}
	word := make([]byte, wordSize)
	copy(word[1:], key)
	return word, nil
}

// DecodeKey reverses EncodeKey: given a key word, it returns the stored
// type and the ASCII key name (trimmed at the first zero byte, or at
// w-1 bytes if none).
func DecodeKey(keyWord []byte) (DataType, string) {
	hdr := keyWord[0]
	t := DataType(hdr >> 4)

	end := 1
	for end < len(keyWord) && keyWord[end] != 0 {
		end++
	}
	return t, string(keyWord[1:end])
}

// IsValidKey reports whether keyWord can represent a real, decodable
// entry: it must differ from the signature, deleted, and free sentinels
// (comparing only the non-header key bytes, as key equality does), and
// its header byte must carry a recognized type with a nonzero size.
func IsValidKey(wordSize int, keyWord []byte) bool {
	masked := MaskHeader(keyWord)
	if WordsEqual(masked, MaskHeader(SignatureWord(wordSize))) {
		return false
	}
	if WordsEqual(masked, MaskHeader(DeletedWord(wordSize))) {
		return false
	}
	if WordsEqual(masked, MaskHeader(FreeWord(wordSize))) {
		return false
	}

	hdr := keyWord[0]
	t := DataType(hdr >> 4)
	size := hdr & 0x0F

	if t >= numTypes || size == 0 {
		return false
	}
	if t.wide() && wordSize < 8 {
		return false
	}
	want, ok := headerSize(t, wordSize)
	if !ok || int(size) != want {
		return false
	}

	return true
}

// EncodeValue packs rec's value into a value word of the given width:
// a raw little-endian bit copy for numeric types, zero-padded; a raw
// ASCII byte copy for strings, NUL-padded.
func EncodeValue(wordSize int, rec Record) ([]byte, error) {
	word := make([]byte, wordSize)
	v := rec.Value

	switch v.Type {
	case TypeU8:
		word[0] = v.u8
	case TypeI8:
		word[0] = byte(v.i8)
	case TypeU16:
		binary.LittleEndian.PutUint16(word, v.u16)
	case TypeI16:
		binary.LittleEndian.PutUint16(word, uint16(v.i16))
	case TypeU32:
		binary.LittleEndian.PutUint32(word, v.u32)
	case TypeI32:
		binary.LittleEndian.PutUint32(word, uint32(v.i32))
	case TypeF32:
		binary.LittleEndian.PutUint32(word, math.Float32bits(v.f32))
	case TypeString:
		if len(v.str) > wordSize {
			return nil, fmt.Errorf("codec: string value longer than word size %d", wordSize)
		}
		copy(word, v.str)
	case TypeU64:
		if wordSize < 8 {
			return nil, fmt.Errorf("codec: type %s requires word size >= 8", v.Type)
		}
		binary.LittleEndian.PutUint64(word, v.u64)
	case TypeI64:
		if wordSize < 8 {
			return nil, fmt.Errorf("codec: type %s requires word size >= 8", v.Type)
		}
		binary.LittleEndian.PutUint64(word, uint64(v.i64))
	case TypeF64:
		if wordSize < 8 {
			return nil, fmt.Errorf("codec: type %s requires word size >= 8", v.Type)
		}
		binary.LittleEndian.PutUint64(word, math.Float64bits(v.f64))
	default:
		return nil, fmt.Errorf("codec: unknown type %d", v.Type)
	}

	return word, nil
}

// DecodeValue reverses EncodeValue given the type recovered from the
// key word by DecodeKey.
func DecodeValue(t DataType, valWord []byte) Value {
	switch t {
	case TypeU8:
		return ValueU8(valWord[0])
	case TypeI8:
		return ValueI8(int8(valWord[0]))
	case TypeU16:
		return ValueU16(binary.LittleEndian.Uint16(valWord))
	case TypeI16:
		return ValueI16(int16(binary.LittleEndian.Uint16(valWord)))
	case TypeU32:
		return ValueU32(binary.LittleEndian.Uint32(valWord))
	case TypeI32:
		return ValueI32(int32(binary.LittleEndian.Uint32(valWord)))
	case TypeF32:
		return ValueF32(math.Float32frombits(binary.LittleEndian.Uint32(valWord)))
	case TypeString:
		end := 0
		for end < len(valWord) && valWord[end] != 0 {
			end++
		}
		return ValueString(string(valWord[:end]))
	case TypeU64:
		return ValueU64(binary.LittleEndian.Uint64(valWord))
	case TypeI64:
		return ValueI64(int64(binary.LittleEndian.Uint64(valWord)))
	case TypeF64:
		return ValueF64(math.Float64frombits(binary.LittleEndian.Uint64(valWord)))
	default:
		return Value{}
	}
}
