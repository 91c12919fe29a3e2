// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package odbctest

import (
	"strings"
	"unsafe"

	"github.com/canonical/sqlbind/native"
)

// binding is one bound column or parameter.
type binding struct {
	ctype   native.CType
	sqlType native.SQLType
	colSize native.ULen
	value   unsafe.Pointer
	bufLen  native.Len
	ind     *native.Len
}

// cursor is an open result set. Rows are read from SQLite in full when the
// statement executes, so the engine is never involved in a fetch.
type cursor struct {
	columns []string
	rows    [][]any
	pos     int
}

type statement struct {
	conn     *connection
	query    string
	prepared bool

	cols   map[uint16]binding
	params map[uint16]binding

	rowBindType   uintptr
	rowArraySize  uintptr
	rowsFetched   *native.ULen
	paramBindType uintptr
	paramsetSize  uintptr

	cursor *cursor
}

func (*statement) handleType() native.HandleType { return native.HandleStmt }

func newStatement(conn *connection) *statement {
	return &statement{
		conn:         conn,
		cols:         map[uint16]binding{},
		params:       map[uint16]binding{},
		rowArraySize: 1,
		paramsetSize: 1,
	}
}

func (s *statement) closeCursor() {
	s.cursor = nil
}

// close drops everything the statement refers to.
func (s *statement) close() {
	s.cursor = nil
	s.cols = nil
	s.params = nil
	s.rowsFetched = nil
}

// Prepare implements native.API. The query is compiled by SQLite to report
// syntax errors straight away.
func (d *Driver) Prepare(h native.Handle, query string) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLPrepare", h); injected {
		return rc
	}
	stmt, ok := d.stmt(h)
	if !ok {
		return native.InvalidHandle
	}
	if stmt.cursor != nil {
		return d.fail(h, stateInvalidCursor, "invalid cursor state")
	}
	compiled, err := stmt.conn.current().Preparex(query)
	if err != nil {
		return d.fail(h, stateSyntax, "%v", err)
	}
	compiled.Close()
	stmt.query = query
	stmt.prepared = true
	return native.Success
}

// BindCol implements native.API. Binding a nil address unbinds the column.
func (d *Driver) BindCol(h native.Handle, col uint16, ctype native.CType, value unsafe.Pointer, bufLen native.Len, ind *native.Len) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLBindCol", h); injected {
		return rc
	}
	stmt, ok := d.stmt(h)
	if !ok {
		return native.InvalidHandle
	}
	if col == 0 {
		return d.fail(h, stateBadDescriptorIndex, "bookmark columns are not supported")
	}
	if _, ok := cTypeSize(ctype); !ok {
		return d.fail(h, stateBadCType, "invalid application buffer type %d", ctype)
	}
	if bufLen < 0 {
		return d.fail(h, stateBadBufferLength, "invalid buffer length %d", bufLen)
	}
	if value == nil {
		delete(stmt.cols, col)
		return native.Success
	}
	stmt.cols[col] = binding{ctype: ctype, value: value, bufLen: bufLen, ind: ind}
	return native.Success
}

// BindParameter implements native.API. Only input parameters are supported.
func (d *Driver) BindParameter(h native.Handle, param uint16, io native.ParamIO, ctype native.CType, sqlType native.SQLType, colSize native.ULen, digits int16, value unsafe.Pointer, bufLen native.Len, ind *native.Len) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLBindParameter", h); injected {
		return rc
	}
	stmt, ok := d.stmt(h)
	if !ok {
		return native.InvalidHandle
	}
	if param == 0 {
		return d.fail(h, stateBadDescriptorIndex, "invalid parameter number 0")
	}
	if io != native.ParamInput {
		return d.fail(h, stateNotImplemented, "parameter type %d not supported", io)
	}
	if _, ok := cTypeSize(ctype); !ok {
		return d.fail(h, stateBadCType, "invalid application buffer type %d", ctype)
	}
	if value == nil && ind == nil {
		return d.fail(h, stateNullPointer, "invalid use of null pointer")
	}
	stmt.params[param] = binding{ctype: ctype, sqlType: sqlType, colSize: colSize, value: value, bufLen: bufLen, ind: ind}
	return native.Success
}

// SetStmtAttr implements native.API.
func (d *Driver) SetStmtAttr(h native.Handle, attr native.Attr, value uintptr) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLSetStmtAttr", h); injected {
		return rc
	}
	stmt, ok := d.stmt(h)
	if !ok {
		return native.InvalidHandle
	}
	switch attr {
	case native.AttrRowBindType:
		stmt.rowBindType = value
	case native.AttrParamBindType:
		stmt.paramBindType = value
	case native.AttrRowArraySize, native.AttrParamsetSize:
		if value == 0 {
			return d.fail(h, stateBadAttrValue, "array size must be positive")
		}
		if attr == native.AttrRowArraySize {
			stmt.rowArraySize = value
		} else {
			stmt.paramsetSize = value
		}
	default:
		return d.fail(h, stateNotImplemented, "statement attribute %d not supported", attr)
	}
	return native.Success
}

// SetStmtAttrPtr implements native.API.
func (d *Driver) SetStmtAttrPtr(h native.Handle, attr native.Attr, value unsafe.Pointer) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLSetStmtAttr", h); injected {
		return rc
	}
	stmt, ok := d.stmt(h)
	if !ok {
		return native.InvalidHandle
	}
	switch attr {
	case native.AttrRowsFetchedPtr:
		stmt.rowsFetched = (*native.ULen)(value)
	default:
		return d.fail(h, stateNotImplemented, "statement attribute %d not supported", attr)
	}
	return native.Success
}

// Execute implements native.API. Every row of the parameter set runs the
// query once; the rows of all result sets are concatenated into one cursor.
func (d *Driver) Execute(h native.Handle) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLExecute", h); injected {
		return rc
	}
	stmt, ok := d.stmt(h)
	if !ok {
		return native.InvalidHandle
	}
	if !stmt.prepared {
		return d.fail(h, stateSequence, "statement not prepared")
	}
	if stmt.cursor != nil {
		return d.fail(h, stateInvalidCursor, "invalid cursor state")
	}

	markers := countMarkers(stmt.query)
	if len(stmt.params) < markers {
		return d.fail(h, stateWrongParamCount, "%d parameters bound, %d expected", len(stmt.params), markers)
	}

	q, err := stmt.conn.begin()
	if err != nil {
		return d.fail(h, stateGeneral, "%v", err)
	}

	var result *cursor
	for row := uintptr(0); row < stmt.paramsetSize; row++ {
		args := make([]any, markers)
		for i := range args {
			p := stmt.params[uint16(i+1)]
			arg, state, err := readParam(p, row, stmt.paramBindType)
			if err != nil {
				return d.fail(h, state, "parameter %d of row %d: %v", i+1, row, err)
			}
			if text, ok := arg.(string); ok && d.checkSizes && p.colSize > 0 && len(text) > int(p.colSize) {
				return d.fail(h, stateRightTruncated, "string data, right truncated: parameter %d of row %d has %d bytes, column size is %d", i+1, row, len(text), p.colSize)
			}
			args[i] = arg
		}

		rows, err := q.Queryx(stmt.query, args...)
		if err != nil {
			return d.fail(h, stateGeneral, "%v", err)
		}
		columns, err := rows.Columns()
		if err != nil {
			rows.Close()
			return d.fail(h, stateGeneral, "%v", err)
		}
		if result == nil && len(columns) > 0 {
			result = &cursor{columns: columns}
		}
		for rows.Next() {
			values, err := rows.SliceScan()
			if err != nil {
				rows.Close()
				return d.fail(h, stateGeneral, "%v", err)
			}
			result.rows = append(result.rows, values)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return d.fail(h, stateGeneral, "%v", err)
		}
	}
	stmt.cursor = result
	return native.Success
}

// Fetch implements native.API. It fills up to the row array size rows of
// every bound column and stores the number of rows in the rows fetched
// buffer, if one was set.
func (d *Driver) Fetch(h native.Handle) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLFetch", h); injected {
		return rc
	}
	stmt, ok := d.stmt(h)
	if !ok {
		return native.InvalidHandle
	}
	cur := stmt.cursor
	if cur == nil {
		return d.fail(h, stateInvalidCursor, "invalid cursor state")
	}

	n := min(int(stmt.rowArraySize), len(cur.rows)-cur.pos)
	if stmt.rowsFetched != nil {
		*stmt.rowsFetched = native.ULen(max(n, 0))
	}
	if n <= 0 {
		return native.NoData
	}

	rc := native.Success
	for i := 0; i < n; i++ {
		values := cur.rows[cur.pos+i]
		for col, b := range stmt.cols {
			if int(col) > len(values) {
				return d.fail(h, stateBadDescriptorIndex, "column %d bound, result has %d", col, len(values))
			}
			truncated, state, err := writeCol(b, uintptr(i), stmt.rowBindType, values[col-1])
			if err != nil {
				return d.fail(h, state, "column %s of row %d: %v", cur.columns[col-1], cur.pos+i, err)
			}
			if truncated {
				d.diag(h, stateTruncated, "string data, right truncated in column %s", cur.columns[col-1])
				rc = native.SuccessWithInfo
			}
		}
	}
	cur.pos += n
	return rc
}

// FreeStmt implements native.API.
func (d *Driver) FreeStmt(h native.Handle, option native.FreeOption) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLFreeStmt", h); injected {
		return rc
	}
	stmt, ok := d.stmt(h)
	if !ok {
		return native.InvalidHandle
	}
	switch option {
	case native.Close:
		stmt.closeCursor()
	case native.Unbind:
		stmt.cols = map[uint16]binding{}
	case native.ResetParams:
		stmt.params = map[uint16]binding{}
	default:
		return d.fail(h, stateBadOption, "invalid option %d", option)
	}
	return native.Success
}

// countMarkers counts the parameter markers of query, ignoring question
// marks inside string literals and quoted identifiers.
func countMarkers(query string) int {
	count := 0
	var quote rune
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case strings.ContainsRune(`'"`+"`", r):
			quote = r
		case r == '?':
			count++
		}
	}
	return count
}
