// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/canonical/sqlbind/internal/typeinfo"
	"github.com/canonical/sqlbind/native"
)

// Text is a text column or parameter of fixed capacity. A is the byte array
// holding the bytes, e.g. Text[[64]byte] holds at most 64 bytes. The zero
// value is the empty string.
//
// Longer values are truncated on Set. When a fetched column does not fit,
// the driver truncates it and Bytes returns the part that was kept. The
// trailing terminator byte gives drivers that write a NUL room to do so; it
// is never written here.
//
// A Text parameter declares its length at the time it is bound as the column
// size, and Params and ParamSet bind only once. A longer value sent by a later
// execution, or by a later row of a ParamSet, keeps that column size: drivers
// that check it report SQLSTATE 22001 (string data, right truncated). Bind
// the longest value first, or prepare the statement again, when lengths vary
// that way.
type Text[A any] struct {
	indicator  native.Len `sqlbind:"indicator"`
	buf        A          `sqlbind:"text"`
	terminator byte       `sqlbind:"terminator"`
}

// NewText returns a Text holding b, truncated to its capacity.
func NewText[A any](b []byte) Text[A] {
	var t Text[A]
	t.Set(b)
	return t
}

// NewTextString returns a Text holding s, truncated to its capacity.
func NewTextString[A any](s string) Text[A] {
	var t Text[A]
	t.SetString(s)
	return t
}

func (t *Text[A]) storage() []byte {
	mustByteArray[A]()
	return unsafe.Slice((*byte)(unsafe.Pointer(&t.buf)), unsafe.Sizeof(t.buf))
}

// Cap returns the capacity of t in bytes.
func (t *Text[A]) Cap() int {
	return len(t.storage())
}

// Set stores b, keeping at most Cap bytes of it.
func (t *Text[A]) Set(b []byte) {
	n := copy(t.storage(), b)
	t.indicator = native.Len(n)
}

// SetString stores s, keeping at most Cap bytes of it.
func (t *Text[A]) SetString(s string) {
	n := copy(t.storage(), s)
	t.indicator = native.Len(n)
}

// SetNull makes t NULL.
func (t *Text[A]) SetNull() {
	t.indicator = native.NullData
}

// Valid reports whether t holds a value. An empty string is a value.
func (t *Text[A]) Valid() bool {
	return t.indicator >= 0 || t.indicator == native.NoTotal
}

// Len returns the number of bytes held. A length reported by the driver that
// exceeds the capacity is clamped.
func (t *Text[A]) Len() int {
	return typeinfo.TextLength(t.indicator, t.Cap())
}

// Bytes returns the bytes held, or nil if t is NULL. The slice aliases t.
func (t *Text[A]) Bytes() []byte {
	if !t.Valid() {
		return nil
	}
	return t.storage()[:t.Len()]
}

// String returns the text held, or "" if t is NULL.
func (t *Text[A]) String() string {
	return string(t.Bytes())
}

// mustByteArray panics unless A is an array of bytes. Binding such a Text
// fails with a StructuralError instead.
func mustByteArray[A any]() {
	typ := reflect.TypeOf((*A)(nil)).Elem()
	if typ.Kind() != reflect.Array || typ.Elem().Kind() != reflect.Uint8 {
		panic(fmt.Sprintf("sqlbind: Text storage must be a byte array, got %s", typ))
	}
}
