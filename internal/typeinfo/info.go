// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"reflect"
)

// Node is one element of a record shape. Every node is one of *Scalar,
// *Text, *Nullable, *Record or *Tuple.
type Node interface {
	// leaves is the number of primitives the node emits.
	leaves() int
}

// Scalar is a primitive value of a supported kind.
type Scalar struct {
	Offset uintptr
	Kind   Kind
}

// Text is a fixed-capacity text buffer with its own length indicator.
type Text struct {
	Offset uintptr

	// IndicatorOffset and BufferOffset are relative to Offset.
	IndicatorOffset uintptr
	BufferOffset    uintptr

	// Cap is the declared capacity in bytes.
	Cap int
}

// Nullable wraps a scalar with a NULL indicator.
type Nullable struct {
	Offset          uintptr
	IndicatorOffset uintptr

	// Value is positioned relative to Offset.
	Value *Scalar
}

// Field is a named member of a Record.
type Field struct {
	Name string
	Node Node
}

// Record is a struct whose fields are visited in declaration order.
type Record struct {
	Offset uintptr
	Type   reflect.Type
	Fields []Field
}

// Tuple is a fixed-length array whose elements are visited in index order.
type Tuple struct {
	Offset uintptr
	Elems  []Node
}

func (n *Scalar) leaves() int   { return 1 }
func (n *Text) leaves() int     { return 1 }
func (n *Nullable) leaves() int { return 1 }

func (n *Record) leaves() int {
	count := 0
	for _, f := range n.Fields {
		count += f.Node.leaves()
	}
	return count
}

func (n *Tuple) leaves() int {
	count := 0
	for _, e := range n.Elems {
		count += e.leaves()
	}
	return count
}

// Info represents the reflected shape of a record type.
type Info struct {
	Type reflect.Type

	// Root is the shape of Type itself, positioned at offset zero.
	Root Node

	// Leaves is the number of ordinals a value of Type occupies.
	Leaves int
}

// Size returns the size in bytes of one record, which is also the row
// stride of an array of records.
func (info *Info) Size() uintptr {
	return info.Type.Size()
}
