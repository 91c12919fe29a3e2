// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package unixodbc

import (
	"testing"
	"unsafe"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqlbind/native"
)

// Hook up gocheck into the "go test" runner.
func TestPins(t *testing.T) { TestingT(t) }

type pinsSuite struct{}

var _ = Suite(&pinsSuite{})

func (s *pinsSuite) TestRebindReleasesPrevious(c *C) {
	var p pins
	const stmt = native.Handle(1)
	first := make([]int32, 4)
	second := make([]int32, 8)
	var ind native.Len

	p.bind(stmt, pinKey{pinCol, 1}, unsafe.Pointer(&first[0]), unsafe.Pointer(&ind))(true)
	old := p.stmts[stmt][pinKey{pinCol, 1}]
	c.Check(p.count(stmt), Equals, 1)

	p.bind(stmt, pinKey{pinCol, 1}, unsafe.Pointer(&second[0]), unsafe.Pointer(&ind))(true)
	c.Check(p.count(stmt), Equals, 1)
	c.Check(p.stmts[stmt][pinKey{pinCol, 1}], Not(Equals), old)

	// Columns and parameters with the same number are different bindings.
	p.bind(stmt, pinKey{pinParam, 1}, unsafe.Pointer(&second[0]))(true)
	c.Check(p.count(stmt), Equals, 2)

	p.releaseAll(stmt)
	c.Check(p.count(stmt), Equals, 0)
}

func (s *pinsSuite) TestFailedBindKeepsPrevious(c *C) {
	var p pins
	const stmt = native.Handle(1)
	first := make([]byte, 16)
	second := make([]byte, 32)

	p.bind(stmt, pinKey{pinParam, 2}, unsafe.Pointer(&first[0]))(true)
	bound := p.stmts[stmt][pinKey{pinParam, 2}]

	p.bind(stmt, pinKey{pinParam, 2}, unsafe.Pointer(&second[0]))(false)
	c.Check(p.count(stmt), Equals, 1)
	c.Check(p.stmts[stmt][pinKey{pinParam, 2}], Equals, bound)

	p.releaseAll(stmt)
}

func (s *pinsSuite) TestReleaseByKind(c *C) {
	var p pins
	const stmt, other = native.Handle(1), native.Handle(2)
	buf := make([]int64, 2)
	var fetched native.ULen

	p.bind(stmt, pinKey{pinCol, 1}, unsafe.Pointer(&buf[0]))(true)
	p.bind(stmt, pinKey{pinCol, 2}, unsafe.Pointer(&buf[1]))(true)
	p.bind(stmt, pinKey{pinParam, 1}, unsafe.Pointer(&buf[0]))(true)
	p.bind(stmt, pinKey{pinAttr, int(native.AttrRowsFetchedPtr)}, unsafe.Pointer(&fetched))(true)
	p.bind(other, pinKey{pinCol, 1}, unsafe.Pointer(&buf[0]))(true)
	c.Check(p.count(stmt), Equals, 4)

	p.release(stmt, pinCol)
	c.Check(p.count(stmt), Equals, 2)
	p.release(stmt, pinParam)
	c.Check(p.count(stmt), Equals, 1)
	c.Check(p.count(other), Equals, 1)

	p.releaseAll(stmt)
	p.releaseAll(other)
	c.Check(p.count(stmt), Equals, 0)
	c.Check(p.count(other), Equals, 0)
}
