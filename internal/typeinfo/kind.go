// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"reflect"
	"strconv"

	"github.com/canonical/sqlbind/native"
)

// Kind is a primitive scalar kind that can be bound to a native slot.
type Kind uint8

const (
	Invalid Kind = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Bool
)

type bindTypes struct {
	name    string
	cType   native.CType
	sqlType native.SQLType
	size    uintptr
}

// kindTable maps each kind to its native transfer code and SQL type code.
var kindTable = [...]bindTypes{
	Int8:    {"int8", native.CSTinyInt, native.SQLTinyInt, 1},
	Int16:   {"int16", native.CSShort, native.SQLSmallInt, 2},
	Int32:   {"int32", native.CSLong, native.SQLInteger, 4},
	Int64:   {"int64", native.CSBigInt, native.SQLBigInt, 8},
	Uint8:   {"uint8", native.CUTinyInt, native.SQLTinyInt, 1},
	Uint16:  {"uint16", native.CUShort, native.SQLSmallInt, 2},
	Uint32:  {"uint32", native.CULong, native.SQLInteger, 4},
	Uint64:  {"uint64", native.CUBigInt, native.SQLBigInt, 8},
	Float32: {"float32", native.CFloat, native.SQLFloat, 4},
	Float64: {"float64", native.CDouble, native.SQLDouble, 8},
	Bool:    {"bool", native.CBit, native.SQLTinyInt, 1},
}

// Text buffers are transferred as characters whatever their capacity.
const (
	TextCType   = native.CChar
	TextSQLType = native.SQLVarChar
)

// Kinds lists every supported scalar kind.
func Kinds() []Kind {
	return []Kind{Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Float32, Float64, Bool}
}

// CType returns the native transfer code of the kind.
func (k Kind) CType() native.CType {
	return kindTable[k].cType
}

// SQLType returns the native SQL type code of the kind.
func (k Kind) SQLType() native.SQLType {
	return kindTable[k].sqlType
}

// Size returns the in-memory size of a value of the kind.
func (k Kind) Size() uintptr {
	return kindTable[k].size
}

func (k Kind) String() string {
	if k == Invalid || int(k) >= len(kindTable) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindTable[k].name
}

// kindOf returns the scalar kind of t, or Invalid when t is not a scalar.
// int and uint follow the platform word size.
func kindOf(t reflect.Type) Kind {
	switch t.Kind() {
	case reflect.Int8:
		return Int8
	case reflect.Int16:
		return Int16
	case reflect.Int32:
		return Int32
	case reflect.Int64:
		return Int64
	case reflect.Int:
		if strconv.IntSize == 64 {
			return Int64
		}
		return Int32
	case reflect.Uint8:
		return Uint8
	case reflect.Uint16:
		return Uint16
	case reflect.Uint32:
		return Uint32
	case reflect.Uint64:
		return Uint64
	case reflect.Uint:
		if strconv.IntSize == 64 {
			return Uint64
		}
		return Uint32
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	case reflect.Bool:
		return Bool
	}
	return Invalid
}
