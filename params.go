// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"unsafe"

	"github.com/canonical/sqlbind/internal/typeinfo"
	"github.com/canonical/sqlbind/native"
)

// NoParams is the binding of a statement without parameter markers.
type NoParams struct{}

func (NoParams) attach() error { return nil }

func (NoParams) detach() {}

func (NoParams) bindParams(binder) error { return nil }

// Params binds a single record of type P to the parameter markers. The
// record is bound on the first execution and never again: later executions
// send whatever the record holds at that time.
type Params[P any] struct {
	bindState
	value P
}

// NewParams returns a zeroed parameter record.
func NewParams[P any]() *Params[P] {
	return &Params[P]{}
}

// Value returns the bound record.
func (p *Params[P]) Value() *P {
	return &p.value
}

// Set replaces the bound record.
func (p *Params[P]) Set(v P) {
	p.value = v
}

func (p *Params[P]) bindParams(b binder) error {
	if !p.stale() {
		return nil
	}
	info, err := typeinfo.Of[P]()
	if err != nil {
		return err
	}
	if err := b.bindParams(info, unsafe.Pointer(&p.value)); err != nil {
		return err
	}
	p.markBound()
	return nil
}

// ParamSet binds an array of records of type P, submitted together in one
// execution. Rows are appended, modified in place through Rows and cleared
// with Reset between executions.
type ParamSet[P any] struct {
	bindState
	rows []P
}

// NewParamSet returns an empty parameter set with room for capacity rows.
func NewParamSet[P any](capacity int) *ParamSet[P] {
	return &ParamSet[P]{rows: make([]P, 0, capacity)}
}

// Append adds rows to the set, growing its storage if required.
func (s *ParamSet[P]) Append(rows ...P) {
	if len(s.rows)+len(rows) > cap(s.rows) {
		s.moved()
	}
	s.rows = append(s.rows, rows...)
}

// Reserve makes room for at least n rows.
func (s *ParamSet[P]) Reserve(n int) {
	if n <= cap(s.rows) {
		return
	}
	rows := make([]P, len(s.rows), n)
	copy(rows, s.rows)
	s.rows = rows
	s.moved()
}

// Reset removes every row, keeping the storage.
func (s *ParamSet[P]) Reset() {
	s.rows = s.rows[:0]
}

// Rows returns the rows of the set. Changes made through the returned slice
// are sent on the next execution.
func (s *ParamSet[P]) Rows() []P {
	return s.rows
}

// Len returns the number of rows.
func (s *ParamSet[P]) Len() int {
	return len(s.rows)
}

func (s *ParamSet[P]) bindParams(b binder) error {
	if len(s.rows) == 0 {
		return ErrEmptyParamSet
	}
	info, err := typeinfo.Of[P]()
	if err != nil {
		return err
	}
	if s.stale() {
		if err := b.bindParams(info, unsafe.Pointer(&s.rows[0])); err != nil {
			return err
		}
		s.markBound()
	}
	if s.size != len(s.rows) {
		if err := b.setAttr(native.AttrParamBindType, info.Size()); err != nil {
			return err
		}
		if err := b.setAttr(native.AttrParamsetSize, uintptr(len(s.rows))); err != nil {
			return err
		}
		s.size = len(s.rows)
		b.logger.Debug("bound parameter set", "rows", s.size)
	}
	return nil
}
