// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"errors"
	"unsafe"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqlbind/native"
)

// recorder is a Sink that remembers every descriptor it is given and fails
// once failAt descriptors were seen.
type recorder struct {
	descs  []Descriptor
	failAt int
}

var errStop = errors.New("stop")

func (r *recorder) add(d Descriptor) error {
	if r.failAt > 0 && len(r.descs) == r.failAt {
		return errStop
	}
	r.descs = append(r.descs, d)
	return nil
}

func (r *recorder) Scalar(d Descriptor) error { return r.add(d) }

func (r *recorder) Text(d Descriptor) error { return r.add(d) }

type walkRow struct {
	ID    int32
	Name  text[[8]byte]
	Score nullable[float64]
	_     int16
	Flags [2]bool
	Skip  int64 `sqlbind:"-"`
	Total uint64
}

func (s *typeInfoSuite) TestWalkOrderAndAddresses(c *C) {
	row := walkRow{}
	row.Name.ind = 3
	copy(row.Name.buf[:], "abc")
	row.Score.ind = native.NullData

	info, err := Of[walkRow]()
	c.Assert(err, IsNil)
	r := &recorder{}
	err = Walk(info, unsafe.Pointer(&row), r)
	c.Assert(err, IsNil)
	c.Assert(r.descs, HasLen, info.Leaves)
	c.Assert(r.descs, HasLen, 6)

	id := r.descs[0]
	c.Check(id.Kind, Equals, Int32)
	c.Check(id.Ptr, Equals, unsafe.Pointer(&row.ID))
	c.Check(id.Size, Equals, uintptr(4))
	c.Check(id.Indicator, IsNil)

	name := r.descs[1]
	c.Check(name.Text, Equals, true)
	c.Check(name.Kind, Equals, Invalid)
	c.Check(name.Length, Equals, 3)
	c.Check(name.Cap, Equals, 8)
	c.Check(name.Ptr, Equals, unsafe.Pointer(&row.Name.buf))
	c.Check(name.Indicator, Equals, &row.Name.ind)

	score := r.descs[2]
	c.Check(score.Kind, Equals, Float64)
	c.Check(score.Ptr, Equals, unsafe.Pointer(&row.Score.val))
	c.Check(score.Indicator, Equals, &row.Score.ind)

	c.Check(r.descs[3].Ptr, Equals, unsafe.Pointer(&row.Flags[0]))
	c.Check(r.descs[4].Ptr, Equals, unsafe.Pointer(&row.Flags[1]))
	c.Check(r.descs[4].Kind, Equals, Bool)
	// Members following a nullable do not inherit its indicator.
	c.Check(r.descs[4].Indicator, IsNil)

	c.Check(r.descs[5].Kind, Equals, Uint64)
	c.Check(r.descs[5].Ptr, Equals, unsafe.Pointer(&row.Total))
}

func (s *typeInfoSuite) TestWalkArrayElement(c *C) {
	rows := make([]walkRow, 3)
	info, err := Of[walkRow]()
	c.Assert(err, IsNil)

	r := &recorder{}
	err = Walk(info, unsafe.Pointer(&rows[2]), r)
	c.Assert(err, IsNil)
	c.Check(r.descs[0].Ptr, Equals, unsafe.Pointer(&rows[2].ID))
	c.Check(uintptr(r.descs[0].Ptr)-uintptr(unsafe.Pointer(&rows[0])), Equals, 2*info.Size())
}

func (s *typeInfoSuite) TestWalkTextLengthClamped(c *C) {
	var t text[[4]byte]
	t.ind = 10
	info, err := Of[text[[4]byte]]()
	c.Assert(err, IsNil)

	r := &recorder{}
	c.Assert(Walk(info, unsafe.Pointer(&t), r), IsNil)
	c.Assert(r.descs, HasLen, 1)
	c.Check(r.descs[0].Length, Equals, 4)

	t.ind = native.NullData
	r = &recorder{}
	c.Assert(Walk(info, unsafe.Pointer(&t), r), IsNil)
	c.Check(r.descs[0].Length, Equals, 0)
}

func (s *typeInfoSuite) TestWalkStopsAtFirstError(c *C) {
	var row walkRow
	info, err := Of[walkRow]()
	c.Assert(err, IsNil)

	r := &recorder{failAt: 2}
	err = Walk(info, unsafe.Pointer(&row), r)
	c.Assert(err, Equals, errStop)
	c.Assert(r.descs, HasLen, 2)
}

func (s *typeInfoSuite) TestWalkEmpty(c *C) {
	var v struct{}
	info, err := Of[struct{}]()
	c.Assert(err, IsNil)
	r := &recorder{}
	c.Assert(Walk(info, unsafe.Pointer(&v), r), IsNil)
	c.Assert(r.descs, HasLen, 0)
}
