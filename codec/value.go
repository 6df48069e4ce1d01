package codec

import "fmt"

// Value is a tagged union over the 11 supported data types (spec.md
// §3). Per Design Notes, this replaces the original C implementation's
// overlapping-storage union with an explicit discriminant and per-arm
// fields; there is no unsafe and no aliasing between arms.
type Value struct {
	Type DataType

	u64 uint64
	i64 int64
	f32 float32
	f64 float64
	u8  byte
	i8  int8
	u16 uint16
	i16 int16
	u32 uint32
	i32 int32
	str string
}

func ValueU8(v uint8) Value     { return Value{Type: TypeU8, u8: v} }
func ValueI8(v int8) Value      { return Value{Type: TypeI8, i8: v} }
func ValueU16(v uint16) Value   { return Value{Type: TypeU16, u16: v} }
func ValueI16(v int16) Value    { return Value{Type: TypeI16, i16: v} }
func ValueU32(v uint32) Value   { return Value{Type: TypeU32, u32: v} }
func ValueI32(v int32) Value    { return Value{Type: TypeI32, i32: v} }
func ValueF32(v float32) Value  { return Value{Type: TypeF32, f32: v} }
func ValueString(v string) Value { return Value{Type: TypeString, str: v} }
func ValueU64(v uint64) Value   { return Value{Type: TypeU64, u64: v} }
func ValueI64(v int64) Value    { return Value{Type: TypeI64, i64: v} }
func ValueF64(v float64) Value  { return Value{Type: TypeF64, f64: v} }

// Uint8 returns v's payload as a uint8, and whether v actually holds
// that type.
func (v Value) Uint8() (uint8, bool) { return v.u8, v.Type == TypeU8 }

// Int8 returns v's payload as an int8, and whether v actually holds
// that type.
func (v Value) Int8() (int8, bool) { return v.i8, v.Type == TypeI8 }

// Uint16 returns v's payload as a uint16, and whether v actually holds
// that type.
func (v Value) Uint16() (uint16, bool) { return v.u16, v.Type == TypeU16 }

// Int16 returns v's payload as an int16, and whether v actually holds
// that type.
func (v Value) Int16() (int16, bool) { return v.i16, v.Type == TypeI16 }

// Uint32 returns v's payload as a uint32, and whether v actually holds
// that type.
func (v Value) Uint32() (uint32, bool) { return v.u32, v.Type == TypeU32 }

// Int32 returns v's payload as an int32, and whether v actually holds
// that type.
func (v Value) Int32() (int32, bool) { return v.i32, v.Type == TypeI32 }

// Float32 returns v's payload as a float32, and whether v actually holds
// that type.
func (v Value) Float32() (float32, bool) { return v.f32, v.Type == TypeF32 }

// Str returns v's payload as a string, and whether v actually holds
// that type.
func (v Value) Str() (string, bool) { return v.str, v.Type == TypeString }

// Uint64 returns v's payload as a uint64, and whether v actually holds
// that type.
func (v Value) Uint64() (uint64, bool) { return v.u64, v.Type == TypeU64 }

// Int64 returns v's payload as an int64, and whether v actually holds
// that type.
func (v Value) Int64() (int64, bool) { return v.i64, v.Type == TypeI64 }

// Float64 returns v's payload as a float64, and whether v actually holds
// that type.
func (v Value) Float64() (float64, bool) { return v.f64, v.Type == TypeF64 }

// String renders v's payload for diagnostics (Engine.Dump and test
// failure messages), not for on-flash or wire encoding.
func (v Value) String() string {
	switch v.Type {
	case TypeU8:
		return fmt.Sprintf("%d", v.u8)
	case TypeI8:
		return fmt.Sprintf("%d", v.i8)
	case TypeU16:
		return fmt.Sprintf("%d", v.u16)
	case TypeI16:
		return fmt.Sprintf("%d", v.i16)
	case TypeU32:
		return fmt.Sprintf("%d", v.u32)
	case TypeI32:
		return fmt.Sprintf("%d", v.i32)
	case TypeF32:
		return fmt.Sprintf("%g", v.f32)
	case TypeString:
		return v.str
	case TypeU64:
		return fmt.Sprintf("%d", v.u64)
	case TypeI64:
		return fmt.Sprintf("%d", v.i64)
	case TypeF64:
		return fmt.Sprintf("%g", v.f64)
	default:
		return "?"
	}
}

// Equal reports whether two values of the same type hold the same
// payload. Values of different types are never equal, even if their
// encoded words would coincide.
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case TypeU8:
		return v.u8 == other.u8
	case TypeI8:
		return v.i8 == other.i8
	case TypeU16:
		return v.u16 == other.u16
	case TypeI16:
		return v.i16 == other.i16
	case TypeU32:
		return v.u32 == other.u32
	case TypeI32:
		return v.i32 == other.i32
	case TypeF32:
		return v.f32 == other.f32
	case TypeString:
		return v.str == other.str
	case TypeU64:
		return v.u64 == other.u64
	case TypeI64:
		return v.i64 == other.i64
	case TypeF64:
		return v.f64 == other.f64
	default:
		return false
	}
}
