// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"fmt"
	"unsafe"

	"github.com/canonical/sqlbind/native"
)

// Descriptor describes one primitive leaf to bind. It borrows addresses from
// the walked value and is only valid for the duration of the Sink call.
type Descriptor struct {
	// Kind is the scalar kind, Invalid for text.
	Kind Kind

	// Text is set for fixed-capacity text buffers.
	Text bool
	// Length is the current length of a text buffer.
	Length int
	// Cap is the declared capacity of a text buffer.
	Cap int

	// Ptr is the address of the value or of the first byte of text.
	Ptr unsafe.Pointer
	// Size is the byte size of a scalar, or the capacity of a text buffer.
	Size uintptr
	// Indicator is the address of the length/NULL indicator, nil for a
	// non-nullable scalar.
	Indicator *native.Len
}

// Sink consumes the descriptors emitted by Walk.
type Sink interface {
	Scalar(d Descriptor) error
	Text(d Descriptor) error
}

// Walk visits the primitive leaves of the value of type info.Type at base, in
// declaration order, and hands one descriptor per leaf to sink. It stops at
// the first error returned by sink.
func Walk(info *Info, base unsafe.Pointer, sink Sink) error {
	return walk(info.Root, base, nil, sink)
}

// walk threads the indicator of an enclosing Nullable down to the single
// scalar it wraps.
func walk(n Node, base unsafe.Pointer, ind *native.Len, sink Sink) error {
	switch n := n.(type) {
	case *Scalar:
		return sink.Scalar(Descriptor{
			Kind:      n.Kind,
			Ptr:       unsafe.Add(base, n.Offset),
			Size:      n.Kind.Size(),
			Indicator: ind,
		})
	case *Nullable:
		p := unsafe.Add(base, n.Offset)
		return walk(n.Value, p, (*native.Len)(unsafe.Add(p, n.IndicatorOffset)), sink)
	case *Text:
		p := unsafe.Add(base, n.Offset)
		textInd := (*native.Len)(unsafe.Add(p, n.IndicatorOffset))
		return sink.Text(Descriptor{
			Text:      true,
			Length:    TextLength(*textInd, n.Cap),
			Cap:       n.Cap,
			Ptr:       unsafe.Add(p, n.BufferOffset),
			Size:      uintptr(n.Cap),
			Indicator: textInd,
		})
	case *Record:
		p := unsafe.Add(base, n.Offset)
		for _, f := range n.Fields {
			if err := walk(f.Node, p, nil, sink); err != nil {
				return err
			}
		}
		return nil
	case *Tuple:
		p := unsafe.Add(base, n.Offset)
		for _, e := range n.Elems {
			if err := walk(e, p, nil, sink); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("internal error: unknown node type %T", n)
}

// TextLength converts an indicator into the number of valid bytes of a text
// buffer of the given capacity. NULL counts as empty. An unknown length, or
// one beyond the capacity as reported on truncation, yields the capacity.
func TextLength(ind native.Len, capacity int) int {
	switch {
	case ind < 0:
		if ind == native.NoTotal {
			return capacity
		}
		return 0
	case int(ind) > capacity:
		return capacity
	}
	return int(ind)
}
