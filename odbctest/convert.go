// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package odbctest

import (
	"bytes"
	"math"
	"strconv"
	"time"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/canonical/sqlbind/native"
)

// cTypeSize returns the size of a fixed-size C type, or zero for character
// data, whose size is the buffer length.
func cTypeSize(ctype native.CType) (uintptr, bool) {
	switch ctype {
	case native.CChar:
		return 0, true
	case native.CSTinyInt, native.CUTinyInt, native.CBit:
		return 1, true
	case native.CSShort, native.CUShort:
		return 2, true
	case native.CSLong, native.CULong, native.CFloat:
		return 4, true
	case native.CSBigInt, native.CUBigInt, native.CDouble:
		return 8, true
	}
	return 0, false
}

var lenSize = unsafe.Sizeof(native.Len(0))

// locate returns the addresses of row i of an array binding. A bind type of
// zero means column-wise binding, where each bound buffer is an array of its
// own; otherwise bindType is the row stride.
func locate(b binding, row uintptr, bindType uintptr) (unsafe.Pointer, *native.Len) {
	valueStride, indStride := bindType, bindType
	if bindType == native.BindByColumn {
		size, _ := cTypeSize(b.ctype)
		if size == 0 {
			size = uintptr(b.bufLen)
		}
		valueStride, indStride = size, lenSize
	}
	value := b.value
	if value != nil {
		value = unsafe.Add(value, row*valueStride)
	}
	ind := b.ind
	if ind != nil {
		ind = (*native.Len)(unsafe.Add(unsafe.Pointer(ind), row*indStride))
	}
	return value, ind
}

// readParam reads row i of a parameter binding as a value SQLite accepts.
// It returns the SQLSTATE to report alongside any error.
func readParam(b binding, row uintptr, bindType uintptr) (any, string, error) {
	if b.value == nil && b.ind == nil {
		return nil, stateWrongParamCount, errors.New("parameter not bound")
	}
	p, ind := locate(b, row, bindType)
	if ind != nil && *ind == native.NullData {
		return nil, "", nil
	}
	switch b.ctype {
	case native.CChar:
		n := int(b.bufLen)
		if ind != nil {
			switch {
			case *ind == native.NTS:
				n = bytes.IndexByte(unsafe.Slice((*byte)(p), n), 0)
				if n < 0 {
					n = int(b.bufLen)
				}
			case *ind >= 0:
				// The indicator holds the length of this execution, which
				// may differ from the length declared when binding.
				n = int(*ind)
			default:
				return nil, stateNotImplemented, errors.Errorf("unsupported length indicator %d", *ind)
			}
		}
		return string(unsafe.Slice((*byte)(p), n)), "", nil
	case native.CSTinyInt:
		return int64(*(*int8)(p)), "", nil
	case native.CSShort:
		return int64(*(*int16)(p)), "", nil
	case native.CSLong:
		return int64(*(*int32)(p)), "", nil
	case native.CSBigInt:
		return *(*int64)(p), "", nil
	case native.CUTinyInt:
		return int64(*(*uint8)(p)), "", nil
	case native.CUShort:
		return int64(*(*uint16)(p)), "", nil
	case native.CULong:
		return int64(*(*uint32)(p)), "", nil
	case native.CUBigInt:
		// SQLite integers are signed 64-bit; the bits are stored as is and
		// read back unchanged.
		return int64(*(*uint64)(p)), "", nil
	case native.CFloat:
		return float64(*(*float32)(p)), "", nil
	case native.CDouble:
		return *(*float64)(p), "", nil
	case native.CBit:
		if *(*uint8)(p) != 0 {
			return int64(1), "", nil
		}
		return int64(0), "", nil
	}
	return nil, stateBadCType, errors.Errorf("unsupported C type %d", b.ctype)
}

// writeCol stores v into row i of a column binding. It reports whether
// character data was truncated, and the SQLSTATE to report alongside any
// error.
func writeCol(b binding, row uintptr, bindType uintptr, v any) (bool, string, error) {
	p, ind := locate(b, row, bindType)
	if v == nil {
		if ind == nil {
			return false, stateNoIndicator, errors.New("indicator variable required but not supplied")
		}
		*ind = native.NullData
		return false, "", nil
	}

	if b.ctype == native.CChar {
		s, err := toText(v)
		if err != nil {
			return false, stateRestrictedType, err
		}
		truncated := false
		if b.bufLen > 0 {
			buf := unsafe.Slice((*byte)(p), int(b.bufLen))
			n := copy(buf[:len(buf)-1], s)
			buf[n] = 0
			truncated = n < len(s)
		} else {
			truncated = len(s) > 0
		}
		if ind != nil {
			*ind = native.Len(len(s))
		}
		return truncated, "", nil
	}

	size, _ := cTypeSize(b.ctype)
	switch b.ctype {
	case native.CFloat, native.CDouble:
		f, err := toFloat(v)
		if err != nil {
			return false, stateBadCast, err
		}
		if b.ctype == native.CFloat {
			if math.Abs(f) > math.MaxFloat32 && !math.IsInf(f, 0) {
				return false, stateOutOfRange, errors.Errorf("%v out of range for float", f)
			}
			*(*float32)(p) = float32(f)
		} else {
			*(*float64)(p) = f
		}
	default:
		i, err := toInt(v)
		if err != nil {
			return false, stateBadCast, err
		}
		if err := storeInt(b.ctype, p, i); err != nil {
			return false, stateOutOfRange, err
		}
	}
	if ind != nil {
		*ind = native.Len(size)
	}
	return false, "", nil
}

// storeInt writes i at p as the integer C type ctype.
func storeInt(ctype native.CType, p unsafe.Pointer, i int64) error {
	inRange := func(lo, hi int64) error {
		if i < lo || i > hi {
			return errors.Errorf("%d out of range [%d, %d]", i, lo, hi)
		}
		return nil
	}
	var err error
	switch ctype {
	case native.CSTinyInt:
		if err = inRange(math.MinInt8, math.MaxInt8); err == nil {
			*(*int8)(p) = int8(i)
		}
	case native.CSShort:
		if err = inRange(math.MinInt16, math.MaxInt16); err == nil {
			*(*int16)(p) = int16(i)
		}
	case native.CSLong:
		if err = inRange(math.MinInt32, math.MaxInt32); err == nil {
			*(*int32)(p) = int32(i)
		}
	case native.CSBigInt:
		*(*int64)(p) = i
	case native.CUTinyInt:
		if err = inRange(0, math.MaxUint8); err == nil {
			*(*uint8)(p) = uint8(i)
		}
	case native.CUShort:
		if err = inRange(0, math.MaxUint16); err == nil {
			*(*uint16)(p) = uint16(i)
		}
	case native.CULong:
		if err = inRange(0, math.MaxUint32); err == nil {
			*(*uint32)(p) = uint32(i)
		}
	case native.CUBigInt:
		*(*uint64)(p) = uint64(i)
	case native.CBit:
		if err = inRange(0, 1); err == nil {
			*(*uint8)(p) = uint8(i)
		}
	default:
		err = errors.Errorf("unsupported C type %d", ctype)
	}
	return err
}

func toInt(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	}
	return 0, errors.Errorf("cannot convert %T to an integer", v)
}

func toFloat(v any) (float64, error) {
	switch v := v.(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseFloat(v, 64)
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	}
	return 0, errors.Errorf("cannot convert %T to a float", v)
}

func toText(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	}
	return "", errors.Errorf("cannot convert %T to text", v)
}
