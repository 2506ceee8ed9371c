// Package dtype implements the compute core's datatype registry (C2):
// an enumerated set of element types with byte width, zero value, and
// conversion rules to/from 64-bit integer/float canonical forms.
package dtype

import (
	"math"

	"github.com/arbalest-compute/compute/errs"
)

// Datatype enumerates the element types a buffer or tensor may hold.
type Datatype int

const (
	I8 Datatype = iota
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
)

func (dt Datatype) String() string {
	switch dt {
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "unknown"
	}
}

// ByteWidth returns the element size in bytes.
func ByteWidth(dt Datatype) int {
	switch dt {
	case I8, U8:
		return 1
	case I16, U16:
		return 2
	case I32, U32, F32:
		return 4
	case I64, U64, F64:
		return 8
	default:
		panic("dtype: unknown datatype")
	}
}

// IsInteger reports whether dt is an integer type.
func IsInteger(dt Datatype) bool {
	switch dt {
	case I8, I16, I32, I64, U8, U16, U32, U64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether dt is a floating-point type.
func IsFloat(dt Datatype) bool {
	switch dt {
	case F32, F64:
		return true
	default:
		return false
	}
}

// IsUnsigned reports whether dt is an unsigned integer type.
func IsUnsigned(dt Datatype) bool {
	switch dt {
	case U8, U16, U32, U64:
		return true
	default:
		return false
	}
}

// bitWidth returns the width in bits, used for modulo-wrap arithmetic.
func bitWidth(dt Datatype) uint {
	return uint(ByteWidth(dt)) * 8
}

// ToInt64 converts a raw value of datatype src (given as the canonical
// int64/float64 pair produced by the typed accessor) to the 64-bit
// integer canonical form. Float sources round toward zero.
func ToInt64(dt Datatype, i int64, f float64) int64 {
	if IsFloat(dt) {
		return int64(f)
	}
	return i
}

// ToFloat64 converts a raw value of datatype dt to the 64-bit float
// canonical form.
func ToFloat64(dt Datatype, i int64, f float64) float64 {
	if IsFloat(dt) {
		return f
	}
	if IsUnsigned(dt) {
		return float64(uint64(i))
	}
	return float64(i)
}

// wrapInt wraps v modulo 2^width for an integer target of width bits,
// i.e. the standard two's-complement/unsigned wraparound conversion.
func wrapInt(v int64, width uint, unsigned bool) int64 {
	if width >= 64 {
		return v
	}
	mask := int64(1)<<width - 1
	wrapped := v & mask
	if !unsigned {
		signBit := int64(1) << (width - 1)
		if wrapped&signBit != 0 {
			wrapped -= int64(1) << width
		}
	}
	return wrapped
}

// inRange reports whether v fits in dt without truncation.
func inRange(dt Datatype, v int64) bool {
	width := bitWidth(dt)
	if IsUnsigned(dt) {
		if v < 0 {
			return false
		}
		if width >= 64 {
			return true
		}
		return uint64(v) < uint64(1)<<width
	}
	if width >= 64 {
		return true
	}
	lo := -(int64(1) << (width - 1))
	hi := int64(1)<<(width-1) - 1
	return v >= lo && v <= hi
}

// ConvertInt64 converts a canonical int64 value into dt's representation,
// returned as an int64 holding the post-conversion bit pattern (the
// caller's typed store interprets it per dt's width/signedness).
// Narrowing integer conversions wrap modulo 2^width unless unchecked is
// false, in which case an out-of-range value fails with DomainError.
func ConvertInt64(dt Datatype, v int64, unchecked bool) (int64, error) {
	if IsFloat(dt) {
		return v, nil
	}
	if !unchecked && !inRange(dt, v) {
		return 0, errs.NewDomainError("value %d out of range for %s", v, dt)
	}
	return wrapInt(v, bitWidth(dt), IsUnsigned(dt)), nil
}

// ConvertFloat64 converts a canonical float64 value into dt's
// representation. For integer targets the value is truncated toward
// zero (per spec.md §3) before applying the same wrap/domain-check
// policy as ConvertInt64. For float targets narrowing to f32 is a
// plain lossy cast, never a domain error.
func ConvertFloat64(dt Datatype, v float64, unchecked bool) (int64, float64, error) {
	if IsFloat(dt) {
		if dt == F32 {
			return 0, float64(float32(v)), nil
		}
		return 0, v, nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		if !unchecked {
			return 0, 0, errs.NewDomainError("value %v is not representable in %s", v, dt)
		}
		v = 0
	}
	truncated := int64(v) // round toward zero
	i, err := ConvertInt64(dt, truncated, unchecked)
	return i, 0, err
}

// ZeroValue returns the canonical zero for dt as (int64, float64); the
// caller reads whichever field matches IsFloat(dt).
func ZeroValue(dt Datatype) (int64, float64) {
	return 0, 0
}
