// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package odbctest

import (
	"testing"
	"unsafe"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqlbind/native"
)

// Hook up gocheck into the "go test" runner.
func TestDriver(t *testing.T) { TestingT(t) }

type driverSuite struct{}

var _ = Suite(&driverSuite{})

// open allocates an environment and a connection to a new in-memory
// database in autocommit mode.
func open(c *C, d *Driver) (env, dbc native.Handle) {
	env, rc := d.AllocHandle(native.HandleEnv, native.NullHandle)
	c.Assert(rc, Equals, native.Success)
	c.Assert(d.SetEnvAttr(env, native.AttrODBCVersion, native.OVODBC3), Equals, native.Success)
	dbc, rc = d.AllocHandle(native.HandleDbc, env)
	c.Assert(rc, Equals, native.Success)
	c.Assert(d.DriverConnect(dbc, "Driver=sqlite3;Database=:memory:"), Equals, native.Success)
	return env, dbc
}

// prepare allocates a statement and prepares query on it.
func prepare(c *C, d *Driver, dbc native.Handle, query string) native.Handle {
	stmt, rc := d.AllocHandle(native.HandleStmt, dbc)
	c.Assert(rc, Equals, native.Success)
	c.Assert(d.Prepare(stmt, query), Equals, native.Success, Commentf("%v", native.Diagnostics(d, native.HandleStmt, stmt)))
	return stmt
}

func run(c *C, d *Driver, dbc native.Handle, query string) {
	stmt := prepare(c, d, dbc, query)
	c.Assert(d.Execute(stmt), Equals, native.Success, Commentf("%v", native.Diagnostics(d, native.HandleStmt, stmt)))
	c.Assert(d.FreeHandle(native.HandleStmt, stmt), Equals, native.Success)
}

func state(d *Driver, typ native.HandleType, h native.Handle) string {
	diags := native.Diagnostics(d, typ, h)
	if len(diags) == 0 {
		return ""
	}
	return diags[0].State
}

func (s *driverSuite) TestHandleOrdering(c *C) {
	d := New()
	env, rc := d.AllocHandle(native.HandleEnv, native.NullHandle)
	c.Assert(rc, Equals, native.Success)

	_, rc = d.AllocHandle(native.HandleDbc, env)
	c.Assert(rc, Equals, native.Error)
	c.Check(state(d, native.HandleEnv, env), Equals, "HY010")

	c.Assert(d.SetEnvAttr(env, native.AttrODBCVersion, native.OVODBC3), Equals, native.Success)
	dbc, rc := d.AllocHandle(native.HandleDbc, env)
	c.Assert(rc, Equals, native.Success)

	_, rc = d.AllocHandle(native.HandleStmt, dbc)
	c.Assert(rc, Equals, native.Error)
	c.Check(state(d, native.HandleDbc, dbc), Equals, "08003")

	c.Assert(d.DriverConnect(dbc, "DRIVER={sqlite3};DATABASE=:memory:;"), Equals, native.Success)
	stmt, rc := d.AllocHandle(native.HandleStmt, dbc)
	c.Assert(rc, Equals, native.Success)
	c.Check(d.Handles(), Equals, 3)

	c.Check(d.FreeHandle(native.HandleEnv, env), Equals, native.Error)
	c.Check(d.FreeHandle(native.HandleDbc, dbc), Equals, native.Error)
	c.Check(state(d, native.HandleDbc, dbc), Equals, "HY010")
	c.Check(d.FreeHandle(native.HandleDbc, stmt), Equals, native.InvalidHandle)

	c.Assert(d.FreeHandle(native.HandleStmt, stmt), Equals, native.Success)
	c.Assert(d.Disconnect(dbc), Equals, native.Success)
	c.Assert(d.FreeHandle(native.HandleDbc, dbc), Equals, native.Success)
	c.Assert(d.FreeHandle(native.HandleEnv, env), Equals, native.Success)
	c.Check(d.Handles(), Equals, 0)
}

func (s *driverSuite) TestDisconnectFreesStatements(c *C) {
	d := New()
	env, dbc := open(c, d)
	prepare(c, d, dbc, "SELECT 1")
	prepare(c, d, dbc, "SELECT 2")
	c.Check(d.Handles(), Equals, 4)

	c.Assert(d.Disconnect(dbc), Equals, native.Success)
	c.Check(d.Handles(), Equals, 2)
	c.Assert(d.FreeHandle(native.HandleDbc, dbc), Equals, native.Success)
	c.Assert(d.FreeHandle(native.HandleEnv, env), Equals, native.Success)
}

func (s *driverSuite) TestConnectErrors(c *C) {
	d := New()
	env, rc := d.AllocHandle(native.HandleEnv, native.NullHandle)
	c.Assert(rc, Equals, native.Success)
	c.Assert(d.SetEnvAttr(env, native.AttrODBCVersion, native.OVODBC3), Equals, native.Success)
	dbc, rc := d.AllocHandle(native.HandleDbc, env)
	c.Assert(rc, Equals, native.Success)

	c.Check(d.DriverConnect(dbc, "Database=:memory:"), Equals, native.Error)
	c.Check(state(d, native.HandleDbc, dbc), Equals, "IM002")
	c.Check(d.DriverConnect(dbc, "Driver=sqlite3;Database="+c.MkDir()+"/missing/dir.db"), Equals, native.Error)
	c.Check(state(d, native.HandleDbc, dbc), Equals, "08001")
	c.Check(d.Disconnect(dbc), Equals, native.Error)
	c.Check(state(d, native.HandleDbc, dbc), Equals, "08003")
}

func (s *driverSuite) TestGetDiagRec(c *C) {
	d := New()
	_, dbc := open(c, d)
	stmt, rc := d.AllocHandle(native.HandleStmt, dbc)
	c.Assert(rc, Equals, native.Success)

	c.Assert(d.Prepare(stmt, "SELECT FROM WHERE"), Equals, native.Error)
	diag, rc := d.GetDiagRec(native.HandleStmt, stmt, 1)
	c.Assert(rc, Equals, native.Success)
	c.Check(diag.State, Equals, "42000")
	c.Check(diag.Message, Matches, ".*syntax error.*")

	_, rc = d.GetDiagRec(native.HandleStmt, stmt, 2)
	c.Check(rc, Equals, native.NoData)
	_, rc = d.GetDiagRec(native.HandleStmt, stmt, 0)
	c.Check(rc, Equals, native.Error)
	_, rc = d.GetDiagRec(native.HandleDbc, stmt, 1)
	c.Check(rc, Equals, native.InvalidHandle)

	// Diagnostics are cleared by the next call on the handle.
	c.Assert(d.Prepare(stmt, "SELECT 1"), Equals, native.Success)
	c.Check(native.Diagnostics(d, native.HandleStmt, stmt), HasLen, 0)
}

func (s *driverSuite) TestCursorState(c *C) {
	d := New()
	_, dbc := open(c, d)
	stmt := prepare(c, d, dbc, "SELECT 1")

	c.Check(d.Fetch(stmt), Equals, native.Error)
	c.Check(state(d, native.HandleStmt, stmt), Equals, "24000")

	c.Assert(d.Execute(stmt), Equals, native.Success)
	c.Check(d.Execute(stmt), Equals, native.Error)
	c.Check(state(d, native.HandleStmt, stmt), Equals, "24000")

	c.Assert(d.FreeStmt(stmt, native.Close), Equals, native.Success)
	c.Check(d.Execute(stmt), Equals, native.Success)
}

func (s *driverSuite) TestParameterCount(c *C) {
	d := New()
	_, dbc := open(c, d)
	stmt := prepare(c, d, dbc, "SELECT ?, '?'")
	c.Check(d.Execute(stmt), Equals, native.Error)
	c.Check(state(d, native.HandleStmt, stmt), Equals, "07002")

	c.Check(countMarkers("SELECT ?, '?', \"?\", `?`, ?"), Equals, 2)
}

func (s *driverSuite) TestRowWiseFetch(c *C) {
	d := New()
	_, dbc := open(c, d)
	run(c, d, dbc, "CREATE TABLE t (id INTEGER, name TEXT)")
	run(c, d, dbc, "INSERT INTO t VALUES (1, 'one'), (2, NULL), (3, 'three')")

	type row struct {
		id      int16
		nameInd native.Len
		name    [4]byte
	}
	var rows [2]row
	var fetched native.ULen
	stmt := prepare(c, d, dbc, "SELECT id, name FROM t ORDER BY id")
	c.Assert(d.BindCol(stmt, 1, native.CSShort, unsafe.Pointer(&rows[0].id), 2, nil), Equals, native.Success)
	c.Assert(d.BindCol(stmt, 2, native.CChar, unsafe.Pointer(&rows[0].name), 4, &rows[0].nameInd), Equals, native.Success)
	c.Assert(d.SetStmtAttr(stmt, native.AttrRowBindType, unsafe.Sizeof(row{})), Equals, native.Success)
	c.Assert(d.SetStmtAttr(stmt, native.AttrRowArraySize, 2), Equals, native.Success)
	c.Assert(d.SetStmtAttrPtr(stmt, native.AttrRowsFetchedPtr, unsafe.Pointer(&fetched)), Equals, native.Success)
	c.Assert(d.Execute(stmt), Equals, native.Success)

	c.Assert(d.Fetch(stmt), Equals, native.Success)
	c.Check(fetched, Equals, native.ULen(2))
	c.Check(rows[0].id, Equals, int16(1))
	c.Check(string(rows[0].name[:rows[0].nameInd]), Equals, "one")
	c.Check(rows[0].name[3], Equals, byte(0))
	c.Check(rows[1].id, Equals, int16(2))
	c.Check(rows[1].nameInd, Equals, native.NullData)

	// "three" does not fit in four bytes with its terminator.
	c.Assert(d.Fetch(stmt), Equals, native.SuccessWithInfo)
	c.Check(state(d, native.HandleStmt, stmt), Equals, "01004")
	c.Check(fetched, Equals, native.ULen(1))
	c.Check(rows[0].id, Equals, int16(3))
	c.Check(rows[0].nameInd, Equals, native.Len(5))
	c.Check(string(rows[0].name[:3]), Equals, "thr")

	c.Assert(d.Fetch(stmt), Equals, native.NoData)
	c.Check(fetched, Equals, native.ULen(0))
}

func (s *driverSuite) TestColumnWiseArrays(c *C) {
	d := New()
	_, dbc := open(c, d)
	run(c, d, dbc, "CREATE TABLE t (id INTEGER, score REAL)")

	ids := [3]uint32{10, 20, 30}
	scores := [3]float64{0.5, 1.5, 2.5}
	scoreInds := [3]native.Len{8, native.NullData, 8}
	insert := prepare(c, d, dbc, "INSERT INTO t VALUES (?, ?)")
	c.Assert(d.BindParameter(insert, 1, native.ParamInput, native.CULong, native.SQLInteger, 0, 0, unsafe.Pointer(&ids[0]), 4, nil), Equals, native.Success)
	c.Assert(d.BindParameter(insert, 2, native.ParamInput, native.CDouble, native.SQLDouble, 0, 0, unsafe.Pointer(&scores[0]), 8, &scoreInds[0]), Equals, native.Success)
	c.Assert(d.SetStmtAttr(insert, native.AttrParamBindType, native.BindByColumn), Equals, native.Success)
	c.Assert(d.SetStmtAttr(insert, native.AttrParamsetSize, 3), Equals, native.Success)
	c.Assert(d.Execute(insert), Equals, native.Success)

	var outIDs [4]int64
	var outScores [4]float32
	var outInds [4]native.Len
	var fetched native.ULen
	stmt := prepare(c, d, dbc, "SELECT id, score FROM t ORDER BY id")
	c.Assert(d.BindCol(stmt, 1, native.CSBigInt, unsafe.Pointer(&outIDs[0]), 8, nil), Equals, native.Success)
	c.Assert(d.BindCol(stmt, 2, native.CFloat, unsafe.Pointer(&outScores[0]), 4, &outInds[0]), Equals, native.Success)
	c.Assert(d.SetStmtAttr(stmt, native.AttrRowArraySize, 4), Equals, native.Success)
	c.Assert(d.SetStmtAttrPtr(stmt, native.AttrRowsFetchedPtr, unsafe.Pointer(&fetched)), Equals, native.Success)
	c.Assert(d.Execute(stmt), Equals, native.Success)
	c.Assert(d.Fetch(stmt), Equals, native.Success)

	c.Check(fetched, Equals, native.ULen(3))
	c.Check(outIDs[:3], DeepEquals, []int64{10, 20, 30})
	c.Check(outScores[0], Equals, float32(0.5))
	c.Check(outInds[1], Equals, native.NullData)
	c.Check(outScores[2], Equals, float32(2.5))
	c.Check(outInds[2], Equals, native.Len(4))
}

func (s *driverSuite) TestTextParameters(c *C) {
	d := New()
	_, dbc := open(c, d)

	buf := []byte("hello\x00world")
	ind := native.NTS
	var out [16]byte
	var outInd native.Len
	stmt := prepare(c, d, dbc, "SELECT ?")
	c.Assert(d.BindParameter(stmt, 1, native.ParamInput, native.CChar, native.SQLVarChar, 0, 0, unsafe.Pointer(&buf[0]), native.Len(len(buf)), &ind), Equals, native.Success)
	c.Assert(d.BindCol(stmt, 1, native.CChar, unsafe.Pointer(&out[0]), 16, &outInd), Equals, native.Success)
	c.Assert(d.Execute(stmt), Equals, native.Success)
	c.Assert(d.Fetch(stmt), Equals, native.Success)
	c.Check(string(out[:outInd]), Equals, "hello")

	// An explicit length overrides the declared buffer length.
	ind = 11
	c.Assert(d.FreeStmt(stmt, native.Close), Equals, native.Success)
	c.Assert(d.Execute(stmt), Equals, native.Success)
	c.Assert(d.Fetch(stmt), Equals, native.Success)
	c.Check(string(out[:outInd]), Equals, "hello\x00world")
}

func (s *driverSuite) TestColumnSizes(c *C) {
	d := New()
	_, dbc := open(c, d)

	buf := []byte("hello")
	ind := native.Len(len(buf))
	stmt := prepare(c, d, dbc, "SELECT ?")
	c.Assert(d.BindParameter(stmt, 1, native.ParamInput, native.CChar, native.SQLVarChar, 3, 0, unsafe.Pointer(&buf[0]), 3, &ind), Equals, native.Success)

	// Ignored until asked for.
	c.Assert(d.Execute(stmt), Equals, native.Success)
	c.Assert(d.FreeStmt(stmt, native.Close), Equals, native.Success)

	d.CheckColumnSizes()
	c.Assert(d.Execute(stmt), Equals, native.Error)
	c.Check(state(d, native.HandleStmt, stmt), Equals, "22001")

	ind = 3
	c.Assert(d.Execute(stmt), Equals, native.Success)
	c.Assert(d.FreeStmt(stmt, native.Close), Equals, native.Success)

	// A column size of zero is not checked.
	c.Assert(d.BindParameter(stmt, 1, native.ParamInput, native.CChar, native.SQLVarChar, 0, 0, unsafe.Pointer(&buf[0]), 5, &ind), Equals, native.Success)
	ind = 5
	c.Assert(d.Execute(stmt), Equals, native.Success)
}

func (s *driverSuite) TestConversionErrors(c *C) {
	d := New()
	_, dbc := open(c, d)

	tests := []struct {
		query string
		ctype native.CType
		state string
	}{
		{"SELECT 300", native.CSTinyInt, "22003"},
		{"SELECT -1", native.CULong, "22003"},
		{"SELECT 2", native.CBit, "22003"},
		{"SELECT 'abc'", native.CSLong, "22018"},
		{"SELECT 1.5", native.CSLong, "22018"},
		{"SELECT NULL", native.CSLong, "22002"},
	}
	for _, t := range tests {
		var out [8]byte
		stmt := prepare(c, d, dbc, t.query)
		c.Assert(d.BindCol(stmt, 1, t.ctype, unsafe.Pointer(&out[0]), 8, nil), Equals, native.Success)
		c.Assert(d.Execute(stmt), Equals, native.Success)
		c.Check(d.Fetch(stmt), Equals, native.Error, Commentf("%s", t.query))
		c.Check(state(d, native.HandleStmt, stmt), Equals, t.state, Commentf("%s", t.query))
	}

	stmt := prepare(c, d, dbc, "SELECT 1")
	var out int32
	c.Check(d.BindCol(stmt, 1, native.CType(99), unsafe.Pointer(&out), 4, nil), Equals, native.Error)
	c.Check(state(d, native.HandleStmt, stmt), Equals, "HY003")
	c.Check(d.BindCol(stmt, 2, native.CSLong, unsafe.Pointer(&out), 4, nil), Equals, native.Success)
	c.Assert(d.Execute(stmt), Equals, native.Success)
	c.Check(d.Fetch(stmt), Equals, native.Error)
	c.Check(state(d, native.HandleStmt, stmt), Equals, "07009")
}

func (s *driverSuite) TestManualCommit(c *C) {
	d := New()
	_, dbc := open(c, d)
	c.Assert(d.SetConnectAttr(dbc, native.AttrAutoCommit, native.AutoCommitOff), Equals, native.Success)

	run(c, d, dbc, "CREATE TABLE t (id INTEGER)")
	c.Assert(d.EndTran(native.HandleDbc, dbc, native.Commit), Equals, native.Success)
	run(c, d, dbc, "INSERT INTO t VALUES (1)")
	c.Assert(d.EndTran(native.HandleDbc, dbc, native.Rollback), Equals, native.Success)
	run(c, d, dbc, "INSERT INTO t VALUES (2)")
	// Turning autocommit back on commits.
	c.Assert(d.SetConnectAttr(dbc, native.AttrAutoCommit, native.AutoCommitOn), Equals, native.Success)

	var n int64
	stmt := prepare(c, d, dbc, "SELECT SUM(id) FROM t")
	c.Assert(d.BindCol(stmt, 1, native.CSBigInt, unsafe.Pointer(&n), 8, nil), Equals, native.Success)
	c.Assert(d.Execute(stmt), Equals, native.Success)
	c.Assert(d.Fetch(stmt), Equals, native.Success)
	c.Check(n, Equals, int64(2))
}

func (s *driverSuite) TestFailAndCalls(c *C) {
	d := New()
	_, dbc := open(c, d)
	c.Check(d.Calls("SQLDriverConnect"), Equals, 1)

	d.Fail("SQLPrepare", native.Error)
	d.Fail("SQLPrepare", native.SuccessWithInfo)
	stmt, rc := d.AllocHandle(native.HandleStmt, dbc)
	c.Assert(rc, Equals, native.Success)
	c.Check(d.Prepare(stmt, "SELECT 1"), Equals, native.Error)
	c.Check(state(d, native.HandleStmt, stmt), Equals, "HY000")
	c.Check(d.Prepare(stmt, "SELECT 1"), Equals, native.SuccessWithInfo)
	c.Check(d.Prepare(stmt, "SELECT 1"), Equals, native.Success)
	c.Check(d.Calls("SQLPrepare"), Equals, 3)

	d.ResetCalls()
	c.Check(d.Calls("SQLPrepare"), Equals, 0)
}

func (s *driverSuite) TestParseConnStr(c *C) {
	c.Check(parseConnStr("Driver={sqlite3}; DATABASE = /tmp/x.db ;;junk"), DeepEquals, map[string]string{
		"driver":   "sqlite3",
		"database": "/tmp/x.db",
	})
}
