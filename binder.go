// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"unsafe"

	"github.com/canonical/sqlbind/internal/typeinfo"
	"github.com/canonical/sqlbind/native"
)

// binder issues the native bind calls of one statement.
type binder struct {
	*handle
}

// bindCols binds the leaves of the record at base to consecutive result
// columns starting at 1.
func (b binder) bindCols(info *typeinfo.Info, base unsafe.Pointer) error {
	sink := colSink{binder: b}
	if err := typeinfo.Walk(info, base, &sink); err != nil {
		return err
	}
	b.logger.Debug("bound columns", "type", info.Type, "columns", sink.ordinal)
	return nil
}

// bindParams binds the leaves of the record at base to consecutive
// parameter markers starting at 1.
func (b binder) bindParams(info *typeinfo.Info, base unsafe.Pointer) error {
	sink := paramSink{binder: b}
	if err := typeinfo.Walk(info, base, &sink); err != nil {
		return err
	}
	b.logger.Debug("bound parameters", "type", info.Type, "parameters", sink.ordinal)
	return nil
}

// setAttr sets an integer statement attribute.
func (b binder) setAttr(attr native.Attr, value uintptr) error {
	return b.check("SQLSetStmtAttr", b.api.SetStmtAttr(b.h, attr, value))
}

// colSink binds each leaf it is given to the next result column.
type colSink struct {
	binder
	ordinal uint16
}

func (s *colSink) Scalar(d typeinfo.Descriptor) error {
	s.ordinal++
	rc := s.api.BindCol(s.h, s.ordinal, d.Kind.CType(), d.Ptr, native.Len(d.Size), d.Indicator)
	return s.check("SQLBindCol", rc)
}

// Text binds the buffer including the terminator slot, so a driver that
// NUL-terminates can still deliver Cap bytes.
func (s *colSink) Text(d typeinfo.Descriptor) error {
	s.ordinal++
	rc := s.api.BindCol(s.h, s.ordinal, typeinfo.TextCType, d.Ptr, native.Len(d.Cap+1), d.Indicator)
	return s.check("SQLBindCol", rc)
}

// paramSink binds each leaf it is given to the next input parameter.
type paramSink struct {
	binder
	ordinal uint16
}

func (s *paramSink) Scalar(d typeinfo.Descriptor) error {
	s.ordinal++
	rc := s.api.BindParameter(s.h, s.ordinal, native.ParamInput, d.Kind.CType(), d.Kind.SQLType(),
		0, 0, d.Ptr, native.Len(d.Size), d.Indicator)
	return s.check("SQLBindParameter", rc)
}

// Text declares the length the text had when it was bound as the column size
// and the buffer length. The driver reads the length of every execution from
// the indicator, and strict drivers reject lengths over the column size.
func (s *paramSink) Text(d typeinfo.Descriptor) error {
	s.ordinal++
	rc := s.api.BindParameter(s.h, s.ordinal, native.ParamInput, typeinfo.TextCType, typeinfo.TextSQLType,
		native.ULen(d.Length), 0, d.Ptr, native.Len(d.Length), d.Indicator)
	return s.check("SQLBindParameter", rc)
}
