// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"unsafe"

	"github.com/canonical/sqlbind/native"
)

// Scalar is the set of types bound as a single fixed-size value.
type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint |
		~float32 | ~float64 | ~bool
}

// Nullable is a scalar column or parameter that may be NULL. Use Null to
// obtain a NULL value; the zero value holds the zero value of T, since the
// driver reads a zero indicator as a present value.
//
// Set, Some and a fetch of a present value leave the size of T in the
// indicator. The zero value is the exception: it is present with an
// indicator of zero. Drivers ignore the indicator length of fixed-size
// types, so both are sent alike.
//
// The indicator is bound alongside the value, so after a fetch it reflects
// whatever the driver wrote.
type Nullable[T Scalar] struct {
	indicator native.Len `sqlbind:"indicator"`
	value     T          `sqlbind:"value"`
}

// Some returns a Nullable holding v.
func Some[T Scalar](v T) Nullable[T] {
	var n Nullable[T]
	n.Set(v)
	return n
}

// Null returns a NULL Nullable.
func Null[T Scalar]() Nullable[T] {
	return Nullable[T]{indicator: native.NullData}
}

// Set stores v.
func (n *Nullable[T]) Set(v T) {
	n.value = v
	n.indicator = native.Len(unsafe.Sizeof(v))
}

// SetNull makes n NULL.
func (n *Nullable[T]) SetNull() {
	var zero T
	n.value = zero
	n.indicator = native.NullData
}

// Get returns the value and whether it is present.
func (n Nullable[T]) Get() (T, bool) {
	if !n.Valid() {
		var zero T
		return zero, false
	}
	return n.value, true
}

// Valid reports whether n holds a value.
func (n Nullable[T]) Valid() bool {
	return n.indicator != native.NullData
}

// Ptr returns a pointer to the value, or nil if n is NULL.
func (n *Nullable[T]) Ptr() *T {
	if !n.Valid() {
		return nil
	}
	return &n.value
}
