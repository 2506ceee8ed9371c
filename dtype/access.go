package dtype

import (
	"encoding/binary"
	"math"
)

// GetInt64 reads the integer element at index idx (element units, not
// bytes) out of buf, which must hold elements of datatype dt in
// little-endian byte order. Float datatypes should use GetFloat64
// instead.
func GetInt64(dt Datatype, buf []byte, idx int) int64 {
	off := idx * ByteWidth(dt)
	switch dt {
	case I8:
		return int64(int8(buf[off]))
	case U8:
		return int64(buf[off])
	case I16:
		return int64(int16(binary.LittleEndian.Uint16(buf[off:])))
	case U16:
		return int64(binary.LittleEndian.Uint16(buf[off:]))
	case I32:
		return int64(int32(binary.LittleEndian.Uint32(buf[off:])))
	case U32:
		return int64(binary.LittleEndian.Uint32(buf[off:]))
	case I64:
		return int64(binary.LittleEndian.Uint64(buf[off:]))
	case U64:
		return int64(binary.LittleEndian.Uint64(buf[off:]))
	default:
		panic("dtype: GetInt64 called on non-integer datatype " + dt.String())
	}
}

// SetInt64 writes v into buf at element index idx under datatype dt.
// v must already have been produced by ConvertInt64 for dt.
func SetInt64(dt Datatype, buf []byte, idx int, v int64) {
	off := idx * ByteWidth(dt)
	switch dt {
	case I8, U8:
		buf[off] = byte(v)
	case I16, U16:
		binary.LittleEndian.PutUint16(buf[off:], uint16(v))
	case I32, U32:
		binary.LittleEndian.PutUint32(buf[off:], uint32(v))
	case I64, U64:
		binary.LittleEndian.PutUint64(buf[off:], uint64(v))
	default:
		panic("dtype: SetInt64 called on non-integer datatype " + dt.String())
	}
}

// GetFloat64 reads the float element at index idx out of buf, which
// must hold elements of datatype dt (F32 or F64) in little-endian byte
// order.
func GetFloat64(dt Datatype, buf []byte, idx int) float64 {
	off := idx * ByteWidth(dt)
	switch dt {
	case F32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])))
	case F64:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	default:
		panic("dtype: GetFloat64 called on non-float datatype " + dt.String())
	}
}

// SetFloat64 writes v into buf at element index idx under datatype dt.
func SetFloat64(dt Datatype, buf []byte, idx int, v float64) {
	off := idx * ByteWidth(dt)
	switch dt {
	case F32:
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v)))
	case F64:
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v))
	default:
		panic("dtype: SetFloat64 called on non-float datatype " + dt.String())
	}
}

// Copy performs a typed elementwise copy of n elements from src (datatype
// srcDT, starting at element offset srcOff) to dst (datatype dstDT,
// starting at element offset dstOff), applying the conversion rules of
// spec.md §3: narrowing integer conversions wrap modulo 2^width unless
// unchecked is false, in which case an out-of-range value fails with
// DomainError and the copy stops at the first offending element.
func Copy(srcDT Datatype, src []byte, srcOff int, dstDT Datatype, dst []byte, dstOff int, n int, unchecked bool) error {
	for i := 0; i < n; i++ {
		si, di := srcOff+i, dstOff+i
		if IsFloat(srcDT) {
			fv := GetFloat64(srcDT, src, si)
			if IsFloat(dstDT) {
				SetFloat64(dstDT, dst, di, fv)
				continue
			}
			iv, _, err := ConvertFloat64(dstDT, fv, unchecked)
			if err != nil {
				return err
			}
			SetInt64(dstDT, dst, di, iv)
			continue
		}

		iv := GetInt64(srcDT, src, si)
		if IsFloat(dstDT) {
			SetFloat64(dstDT, dst, di, ToFloat64(srcDT, iv, 0))
			continue
		}
		converted, err := ConvertInt64(dstDT, iv, unchecked)
		if err != nil {
			return err
		}
		SetInt64(dstDT, dst, di, converted)
	}
	return nil
}
