package codec

import "testing"

func TestEncodeDecodeKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		wordSize int
		key      string
		typ      DataType
	}{
		{"u32 short key", 4, "c1", TypeU32},
		{"u8 max key", 4, "abc", TypeU8},
		{"string type", 4, "id", TypeString},
		{"u64 needs wide word", 8, "big", TypeU64},
		{"f64 on 16 byte word", 16, "pi", TypeF64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record{Key: tt.key, Value: Value{Type: tt.typ}}
			word, err := EncodeKey(tt.wordSize, rec)
			if err != nil {
				t.Fatalf("EncodeKey: %v", err)
			}
			if len(word) != tt.wordSize {
				t.Fatalf("word length = %d, want %d", len(word), tt.wordSize)
			}

			gotType, gotKey := DecodeKey(word)
			if gotType != tt.typ {
				t.Fatalf("decoded type = %v, want %v", gotType, tt.typ)
			}
			if gotKey != tt.key {
				t.Fatalf("decoded key = %q, want %q", gotKey, tt.key)
			}

			if !IsValidKey(tt.wordSize, word) {
				t.Fatalf("IsValidKey rejected a freshly encoded key")
			}
		})
	}
}

func TestEncodeKeyRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name     string
		wordSize int
		rec      Record
	}{
		{"empty key", 4, Record{Key: "", Value: Value{Type: TypeU32}}},
		{"key too long", 4, Record{Key: "abcd", Value: Value{Type: TypeU32}}},
		{"unknown type", 4, Record{Key: "k", Value: Value{Type: 99}}},
		{"u64 needs wide word", 4, Record{Key: "k", Value: Value{Type: TypeU64}}},
		{"string value too long", 4, Record{Key: "k", Value: ValueString("toolong")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeKey(tt.wordSize, tt.rec); err == nil {
				t.Fatalf("expected EncodeKey to reject %+v", tt.rec)
			}
		})
	}
}

func TestIsValidKeyRejectsSentinels(t *testing.T) {
	const w = 4

	if IsValidKey(w, FreeWord(w)) {
		t.Fatal("free word must not be a valid key")
	}
	if IsValidKey(w, DeletedWord(w)) {
		t.Fatal("deleted word must not be a valid key")
	}
	if IsValidKey(w, SignatureWord(w)) {
		t.Fatal("signature word must not be a valid key")
	}
}

func TestKeyBytesEqualIgnoresHeader(t *testing.T) {
	a, err := EncodeKey(4, Record{Key: "c1", Value: Value{Type: TypeU32}})
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodeKey(4, Record{Key: "c1", Value: Value{Type: TypeU8}})
	if err != nil {
		t.Fatal(err)
	}

	if !KeyBytesEqual(a, b) {
		t.Fatal("same key bytes with different type nibble should compare equal")
	}

	c, err := EncodeKey(4, Record{Key: "c2", Value: Value{Type: TypeU32}})
	if err != nil {
		t.Fatal(err)
	}
	if KeyBytesEqual(a, c) {
		t.Fatal("different keys should not compare equal")
	}
}

func TestEncodeDecodeValueRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		wordSize int
		value    Value
	}{
		{"u8", 4, ValueU8(0x7F)},
		{"i8", 4, ValueI8(-5)},
		{"u16", 4, ValueU16(0xBEEF)},
		{"i16", 4, ValueI16(-1234)},
		{"u32", 4, ValueU32(0x12345678)},
		{"i32", 4, ValueI32(-12345)},
		{"f32", 4, ValueF32(3.5)},
		{"string", 4, ValueString("abc")},
		{"empty string", 4, ValueString("")},
		{"u64", 8, ValueU64(0x0102030405060708)},
		{"i64", 8, ValueI64(-1)},
		{"f64", 8, ValueF64(2.718281828)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record{Key: "k", Value: tt.value}
			word, err := EncodeValue(tt.wordSize, rec)
			if err != nil {
				t.Fatalf("EncodeValue: %v", err)
			}
			if len(word) != tt.wordSize {
				t.Fatalf("value word length = %d, want %d", len(word), tt.wordSize)
			}

			decoded := DecodeValue(tt.value.Type, word)
			if !decoded.Equal(tt.value) {
				t.Fatalf("decoded value %+v != original %+v", decoded, tt.value)
			}
		})
	}
}

func TestCounterRolloverIsSymmetric(t *testing.T) {
	const w = 4

	almostMax := CounterWord(w, MaxCounterValue-1)
	next := NextCounter(w, almostMax)
	if CounterValue(next) != 0 {
		t.Fatalf("counter after max-1 = %d, want 0", CounterValue(next))
	}

	zero := CounterWord(w, 0)
	afterZero := NextCounter(w, zero)
	if CounterValue(afterZero) != 1 {
		t.Fatalf("counter after 0 = %d, want 1", CounterValue(afterZero))
	}

	if !IsMaxCounter(FreeWord(w)) {
		t.Fatal("free word must report as the max/invalid counter sentinel")
	}
}
