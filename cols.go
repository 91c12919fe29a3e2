// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"unsafe"

	"github.com/canonical/sqlbind/internal/typeinfo"
	"github.com/canonical/sqlbind/native"
)

// NoCols is the binding of a statement that produces no result set, or
// whose result set is not read.
type NoCols struct{}

func (NoCols) attach() error { return nil }

func (NoCols) detach() {}

func (NoCols) bindCols(binder) error { return nil }

func (NoCols) fetched() bool { return true }

func (NoCols) exhausted() {}

// Cols binds a single record of type C to the result columns. Each fetch
// overwrites the record with the next row.
type Cols[C any] struct {
	bindState
	value C
}

// NewCols returns a zeroed column record.
func NewCols[C any]() *Cols[C] {
	return &Cols[C]{}
}

// Value returns the record holding the current row.
func (c *Cols[C]) Value() *C {
	return &c.value
}

func (c *Cols[C]) bindCols(b binder) error {
	if !c.stale() {
		return nil
	}
	info, err := typeinfo.Of[C]()
	if err != nil {
		return err
	}
	if err := b.bindCols(info, unsafe.Pointer(&c.value)); err != nil {
		return err
	}
	c.markBound()
	return nil
}

func (c *Cols[C]) fetched() bool { return true }

func (c *Cols[C]) exhausted() {}

// RowSet binds an array of records of type C to the result columns. Each
// fetch fills up to FetchSize rows and Rows returns the rows it delivered.
// The zero value fetches one row at a time.
type RowSet[C any] struct {
	bindState
	// buf holds FetchSize rows; its capacity may be larger after the fetch
	// size was reduced.
	buf         []C
	n           int
	rowsFetched native.ULen
}

// NewRowSet returns a row set fetching up to fetchSize rows at a time.
func NewRowSet[C any](fetchSize int) *RowSet[C] {
	r := &RowSet[C]{}
	r.SetFetchSize(fetchSize)
	return r
}

// FetchSize returns the maximum number of rows delivered by one fetch.
func (r *RowSet[C]) FetchSize() int {
	return len(r.buf)
}

// SetFetchSize changes the number of rows requested by each fetch. Sizes
// below one are treated as one. The storage is only reallocated when it
// grows beyond what was allocated before. The new size takes effect on the
// next execution.
func (r *RowSet[C]) SetFetchSize(size int) {
	if size < 1 {
		size = 1
	}
	if size > cap(r.buf) {
		r.buf = make([]C, size)
		r.moved()
	} else {
		r.buf = r.buf[:size]
	}
	if r.n > size {
		r.n = size
	}
}

// Rows returns the rows delivered by the last fetch. The slice aliases the
// storage and is overwritten by the next fetch.
func (r *RowSet[C]) Rows() []C {
	return r.buf[:r.n]
}

// Len returns the number of rows delivered by the last fetch.
func (r *RowSet[C]) Len() int {
	return r.n
}

func (r *RowSet[C]) bindCols(b binder) error {
	r.n = 0
	if len(r.buf) == 0 {
		r.SetFetchSize(1)
	}
	info, err := typeinfo.Of[C]()
	if err != nil {
		return err
	}
	if r.stale() {
		if err := b.bindCols(info, unsafe.Pointer(&r.buf[0])); err != nil {
			return err
		}
		r.markBound()
	}
	if r.size != len(r.buf) {
		if err := b.setAttr(native.AttrRowBindType, info.Size()); err != nil {
			return err
		}
		if err := b.setAttr(native.AttrRowArraySize, uintptr(len(r.buf))); err != nil {
			return err
		}
		rc := b.api.SetStmtAttrPtr(b.h, native.AttrRowsFetchedPtr, unsafe.Pointer(&r.rowsFetched))
		if err := b.check("SQLSetStmtAttr", rc); err != nil {
			return err
		}
		r.size = len(r.buf)
		b.logger.Debug("bound row set", "rows", r.size)
	}
	return nil
}

func (r *RowSet[C]) fetched() bool {
	r.n = min(int(r.rowsFetched), len(r.buf))
	return r.n != 0
}

func (r *RowSet[C]) exhausted() {
	r.n = 0
}
