// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

//go:build odbc

// Package unixodbc implements native.API on top of the unixODBC driver
// manager. It is only built with the "odbc" build tag and needs the unixODBC
// headers and library (libodbc) to be installed.
//
// Addresses bound with BindCol, BindParameter and SetStmtAttrPtr are pinned
// while the driver may use them: until the column, parameter or attribute is
// bound again, unbound with FreeStmt, or the statement handle is freed.
package unixodbc

/*
#cgo LDFLAGS: -lodbc
#include <stdint.h>
#include <stdlib.h>
#include <sql.h>
#include <sqlext.h>

static SQLRETURN alloc_handle(SQLSMALLINT typ, uintptr_t parent, uintptr_t *out) {
	SQLHANDLE h = SQL_NULL_HANDLE;
	SQLRETURN rc = SQLAllocHandle(typ, (SQLHANDLE)parent, &h);
	*out = (uintptr_t)h;
	return rc;
}

static SQLRETURN free_handle(SQLSMALLINT typ, uintptr_t h) {
	return SQLFreeHandle(typ, (SQLHANDLE)h);
}

static SQLRETURN set_env_attr(uintptr_t env, SQLINTEGER attr, uintptr_t value) {
	return SQLSetEnvAttr((SQLHENV)env, attr, (SQLPOINTER)value, 0);
}

static SQLRETURN set_connect_attr(uintptr_t dbc, SQLINTEGER attr, uintptr_t value) {
	return SQLSetConnectAttr((SQLHDBC)dbc, attr, (SQLPOINTER)value, 0);
}

static SQLRETURN driver_connect(uintptr_t dbc, SQLCHAR *conn, SQLSMALLINT len) {
	SQLSMALLINT out = 0;
	return SQLDriverConnect((SQLHDBC)dbc, NULL, conn, len, NULL, 0, &out, SQL_DRIVER_NOPROMPT);
}

static SQLRETURN disconnect(uintptr_t dbc) {
	return SQLDisconnect((SQLHDBC)dbc);
}

static SQLRETURN end_tran(SQLSMALLINT typ, uintptr_t h, SQLSMALLINT completion) {
	return SQLEndTran(typ, (SQLHANDLE)h, completion);
}

static SQLRETURN prepare(uintptr_t stmt, SQLCHAR *query, SQLINTEGER len) {
	return SQLPrepare((SQLHSTMT)stmt, query, len);
}

static SQLRETURN bind_col(uintptr_t stmt, SQLUSMALLINT col, SQLSMALLINT ctype,
		void *value, SQLLEN buf_len, SQLLEN *ind) {
	return SQLBindCol((SQLHSTMT)stmt, col, ctype, value, buf_len, ind);
}

static SQLRETURN bind_parameter(uintptr_t stmt, SQLUSMALLINT param, SQLSMALLINT io,
		SQLSMALLINT ctype, SQLSMALLINT sql_type, SQLULEN col_size, SQLSMALLINT digits,
		void *value, SQLLEN buf_len, SQLLEN *ind) {
	return SQLBindParameter((SQLHSTMT)stmt, param, io, ctype, sql_type, col_size, digits,
		value, buf_len, ind);
}

static SQLRETURN set_stmt_attr(uintptr_t stmt, SQLINTEGER attr, uintptr_t value) {
	return SQLSetStmtAttr((SQLHSTMT)stmt, attr, (SQLPOINTER)value, 0);
}

static SQLRETURN set_stmt_attr_ptr(uintptr_t stmt, SQLINTEGER attr, void *value) {
	return SQLSetStmtAttr((SQLHSTMT)stmt, attr, value, 0);
}

static SQLRETURN execute(uintptr_t stmt) {
	return SQLExecute((SQLHSTMT)stmt);
}

static SQLRETURN fetch(uintptr_t stmt) {
	return SQLFetch((SQLHSTMT)stmt);
}

static SQLRETURN free_stmt(uintptr_t stmt, SQLUSMALLINT option) {
	return SQLFreeStmt((SQLHSTMT)stmt, option);
}

static SQLRETURN get_diag_rec(SQLSMALLINT typ, uintptr_t h, SQLSMALLINT rec,
		SQLCHAR *state, SQLINTEGER *native_error, SQLCHAR *msg, SQLSMALLINT msg_len,
		SQLSMALLINT *out_len) {
	return SQLGetDiagRec(typ, (SQLHANDLE)h, rec, state, native_error, msg, msg_len, out_len);
}
*/
import "C"

import (
	"unsafe"

	"github.com/canonical/sqlbind/native"
)

// API implements native.API with unixODBC.
type API struct {
	pins pins
}

var _ native.API = (*API)(nil)

// New returns an API calling into the system driver manager.
func New() *API {
	return &API{}
}

func handle(h native.Handle) C.uintptr_t {
	return C.uintptr_t(h)
}

// AllocHandle implements native.API.
func (a *API) AllocHandle(typ native.HandleType, parent native.Handle) (native.Handle, native.Return) {
	var out C.uintptr_t
	rc := C.alloc_handle(C.SQLSMALLINT(typ), handle(parent), &out)
	return native.Handle(out), native.Return(rc)
}

// FreeHandle implements native.API.
func (a *API) FreeHandle(typ native.HandleType, h native.Handle) native.Return {
	rc := native.Return(C.free_handle(C.SQLSMALLINT(typ), handle(h)))
	if typ == native.HandleStmt && rc.Succeeded() {
		a.pins.releaseAll(h)
	}
	return rc
}

// SetEnvAttr implements native.API.
func (a *API) SetEnvAttr(env native.Handle, attr native.Attr, value uintptr) native.Return {
	return native.Return(C.set_env_attr(handle(env), C.SQLINTEGER(attr), C.uintptr_t(value)))
}

// SetConnectAttr implements native.API.
func (a *API) SetConnectAttr(dbc native.Handle, attr native.Attr, value uintptr) native.Return {
	return native.Return(C.set_connect_attr(handle(dbc), C.SQLINTEGER(attr), C.uintptr_t(value)))
}

// DriverConnect implements native.API.
func (a *API) DriverConnect(dbc native.Handle, connStr string) native.Return {
	cs := C.CString(connStr)
	defer C.free(unsafe.Pointer(cs))
	return native.Return(C.driver_connect(handle(dbc), (*C.SQLCHAR)(unsafe.Pointer(cs)), C.SQLSMALLINT(len(connStr))))
}

// Disconnect implements native.API.
func (a *API) Disconnect(dbc native.Handle) native.Return {
	return native.Return(C.disconnect(handle(dbc)))
}

// EndTran implements native.API.
func (a *API) EndTran(typ native.HandleType, h native.Handle, completion native.Completion) native.Return {
	return native.Return(C.end_tran(C.SQLSMALLINT(typ), handle(h), C.SQLSMALLINT(completion)))
}

// Prepare implements native.API.
func (a *API) Prepare(stmt native.Handle, query string) native.Return {
	q := C.CString(query)
	defer C.free(unsafe.Pointer(q))
	return native.Return(C.prepare(handle(stmt), (*C.SQLCHAR)(unsafe.Pointer(q)), C.SQLINTEGER(len(query))))
}

// BindCol implements native.API.
func (a *API) BindCol(stmt native.Handle, col uint16, ctype native.CType, value unsafe.Pointer, bufLen native.Len, ind *native.Len) native.Return {
	done := a.pins.bind(stmt, pinKey{pinCol, int(col)}, value, unsafe.Pointer(ind))
	rc := native.Return(C.bind_col(handle(stmt), C.SQLUSMALLINT(col), C.SQLSMALLINT(ctype),
		value, C.SQLLEN(bufLen), (*C.SQLLEN)(unsafe.Pointer(ind))))
	done(rc.Succeeded())
	return rc
}

// BindParameter implements native.API.
func (a *API) BindParameter(stmt native.Handle, param uint16, io native.ParamIO, ctype native.CType, sqlType native.SQLType, colSize native.ULen, digits int16, value unsafe.Pointer, bufLen native.Len, ind *native.Len) native.Return {
	done := a.pins.bind(stmt, pinKey{pinParam, int(param)}, value, unsafe.Pointer(ind))
	rc := native.Return(C.bind_parameter(handle(stmt), C.SQLUSMALLINT(param), C.SQLSMALLINT(io),
		C.SQLSMALLINT(ctype), C.SQLSMALLINT(sqlType), C.SQLULEN(colSize), C.SQLSMALLINT(digits),
		value, C.SQLLEN(bufLen), (*C.SQLLEN)(unsafe.Pointer(ind))))
	done(rc.Succeeded())
	return rc
}

// SetStmtAttr implements native.API.
func (a *API) SetStmtAttr(stmt native.Handle, attr native.Attr, value uintptr) native.Return {
	return native.Return(C.set_stmt_attr(handle(stmt), C.SQLINTEGER(attr), C.uintptr_t(value)))
}

// SetStmtAttrPtr implements native.API.
func (a *API) SetStmtAttrPtr(stmt native.Handle, attr native.Attr, value unsafe.Pointer) native.Return {
	done := a.pins.bind(stmt, pinKey{pinAttr, int(attr)}, value)
	rc := native.Return(C.set_stmt_attr_ptr(handle(stmt), C.SQLINTEGER(attr), value))
	done(rc.Succeeded())
	return rc
}

// Execute implements native.API.
func (a *API) Execute(stmt native.Handle) native.Return {
	return native.Return(C.execute(handle(stmt)))
}

// Fetch implements native.API.
func (a *API) Fetch(stmt native.Handle) native.Return {
	return native.Return(C.fetch(handle(stmt)))
}

// FreeStmt implements native.API.
func (a *API) FreeStmt(stmt native.Handle, option native.FreeOption) native.Return {
	rc := native.Return(C.free_stmt(handle(stmt), C.SQLUSMALLINT(option)))
	if rc.Succeeded() {
		switch option {
		case native.Unbind:
			a.pins.release(stmt, pinCol)
		case native.ResetParams:
			a.pins.release(stmt, pinParam)
		}
	}
	return rc
}

// GetDiagRec implements native.API.
func (a *API) GetDiagRec(typ native.HandleType, h native.Handle, rec int16) (native.Diagnostic, native.Return) {
	var state [6]C.SQLCHAR
	var nativeError C.SQLINTEGER
	var msg [C.SQL_MAX_MESSAGE_LENGTH]C.SQLCHAR
	var msgLen C.SQLSMALLINT
	rc := native.Return(C.get_diag_rec(C.SQLSMALLINT(typ), handle(h), C.SQLSMALLINT(rec),
		&state[0], &nativeError, &msg[0], C.SQLSMALLINT(len(msg)), &msgLen))
	if !rc.Succeeded() {
		return native.Diagnostic{}, rc
	}
	n := min(int(msgLen), len(msg)-1)
	return native.Diagnostic{
		State:       C.GoStringN((*C.char)(unsafe.Pointer(&state[0])), 5),
		NativeError: int32(nativeError),
		Message:     C.GoStringN((*C.char)(unsafe.Pointer(&msg[0])), C.int(n)),
	}, rc
}
