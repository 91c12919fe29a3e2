// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package native describes the call-level SQL client interface (ODBC) that
sqlbind drives. It holds the handle, return code and type code definitions
shared by the binding engine and by implementations of the interface.

Implementations must honour the ODBC binding contract: once an address is
bound to a column or parameter ordinal, the implementation may read or write
through it on every subsequent Execute or Fetch until the ordinal is rebound
or the statement handle is freed.
*/
package native

import (
	"fmt"
	"unsafe"
)

// Handle is an opaque environment, connection or statement handle.
type Handle uintptr

// NullHandle is the handle passed as parent when allocating an environment.
const NullHandle Handle = 0

// HandleType identifies the kind of a Handle.
type HandleType int16

const (
	HandleEnv  HandleType = 1
	HandleDbc  HandleType = 2
	HandleStmt HandleType = 3
)

func (t HandleType) String() string {
	switch t {
	case HandleEnv:
		return "environment"
	case HandleDbc:
		return "connection"
	case HandleStmt:
		return "statement"
	}
	return fmt.Sprintf("HandleType(%d)", int16(t))
}

// Return is the SQLRETURN code of a native call.
type Return int16

const (
	Success         Return = 0
	SuccessWithInfo Return = 1
	StillExecuting  Return = 2
	NeedData        Return = 99
	NoData          Return = 100
	Error           Return = -1
	InvalidHandle   Return = -2
)

// Succeeded reports whether rc is SQL_SUCCESS or SQL_SUCCESS_WITH_INFO.
func (rc Return) Succeeded() bool {
	return rc == Success || rc == SuccessWithInfo
}

func (rc Return) String() string {
	switch rc {
	case Success:
		return "SQL_SUCCESS"
	case SuccessWithInfo:
		return "SQL_SUCCESS_WITH_INFO"
	case StillExecuting:
		return "SQL_STILL_EXECUTING"
	case NeedData:
		return "SQL_NEED_DATA"
	case NoData:
		return "SQL_NO_DATA"
	case Error:
		return "SQL_ERROR"
	case InvalidHandle:
		return "SQL_INVALID_HANDLE"
	}
	return fmt.Sprintf("SQLRETURN(%d)", int16(rc))
}

// Len is SQLLEN, the signed length/indicator type. Its width follows the
// platform word size, as SQLLEN does for 64-bit unixODBC builds.
type Len int

// ULen is SQLULEN.
type ULen uint

const (
	// NullData is the indicator value of a NULL column or parameter.
	NullData Len = -1
	// DataAtExec marks a parameter supplied with SQLPutData.
	DataAtExec Len = -2
	// NTS marks a null-terminated string.
	NTS Len = -3
	// NoTotal is reported when the driver cannot determine the length.
	NoTotal Len = -4
)

// CType is a C transfer type code (SQL_C_*).
type CType int16

const (
	CChar     CType = 1
	CFloat    CType = 7
	CDouble   CType = 8
	CBit      CType = -7
	CSTinyInt CType = -26
	CSShort   CType = -15
	CSLong    CType = -16
	CSBigInt  CType = -25
	CUTinyInt CType = -28
	CUShort   CType = -17
	CULong    CType = -18
	CUBigInt  CType = -27
)

// SQLType is an SQL data type code.
type SQLType int16

const (
	SQLChar     SQLType = 1
	SQLInteger  SQLType = 4
	SQLSmallInt SQLType = 5
	SQLFloat    SQLType = 6
	SQLReal     SQLType = 7
	SQLDouble   SQLType = 8
	SQLVarChar  SQLType = 12
	SQLBigInt   SQLType = -5
	SQLTinyInt  SQLType = -6
	SQLBit      SQLType = -7
)

// ParamIO is the direction of a bound parameter.
type ParamIO int16

const ParamInput ParamIO = 1

// Attr is an environment, connection or statement attribute.
type Attr int32

// Environment attributes.
const (
	AttrODBCVersion       Attr = 200
	AttrConnectionPooling Attr = 201
)

// Connection attributes.
const (
	AttrAutoCommit Attr = 102
)

// Statement attributes.
const (
	AttrRowBindType    Attr = 5
	AttrParamBindType  Attr = 18
	AttrParamsetSize   Attr = 22
	AttrRowsFetchedPtr Attr = 26
	AttrRowArraySize   Attr = 27
)

// Attribute values.
const (
	OVODBC3        uintptr = 3
	CPOff          uintptr = 0
	CPOnePerDriver uintptr = 1
	AutoCommitOff  uintptr = 0
	AutoCommitOn   uintptr = 1
	BindByColumn   uintptr = 0
)

// Completion selects commit or rollback in EndTran.
type Completion int16

const (
	Commit   Completion = 0
	Rollback Completion = 1
)

// FreeOption is the option passed to SQLFreeStmt.
type FreeOption uint16

const (
	Close       FreeOption = 0
	Unbind      FreeOption = 2
	ResetParams FreeOption = 3
)

// Diagnostic is one SQLGetDiagRec record.
type Diagnostic struct {
	State       string
	NativeError int32
	Message     string
}

func (d Diagnostic) String() string {
	return d.State + ": " + d.Message
}

// API is the subset of the call-level interface used by sqlbind.
//
// Pointers passed to BindCol, BindParameter and SetStmtAttrPtr are retained
// by the implementation and used on later calls of Execute and Fetch.
type API interface {
	AllocHandle(typ HandleType, parent Handle) (Handle, Return)
	FreeHandle(typ HandleType, h Handle) Return

	SetEnvAttr(env Handle, attr Attr, value uintptr) Return
	SetConnectAttr(dbc Handle, attr Attr, value uintptr) Return
	DriverConnect(dbc Handle, connStr string) Return
	Disconnect(dbc Handle) Return
	EndTran(typ HandleType, h Handle, completion Completion) Return

	Prepare(stmt Handle, query string) Return
	BindCol(stmt Handle, col uint16, ctype CType, value unsafe.Pointer, bufLen Len, ind *Len) Return
	BindParameter(stmt Handle, param uint16, io ParamIO, ctype CType, sqlType SQLType, colSize ULen, digits int16, value unsafe.Pointer, bufLen Len, ind *Len) Return
	SetStmtAttr(stmt Handle, attr Attr, value uintptr) Return
	SetStmtAttrPtr(stmt Handle, attr Attr, value unsafe.Pointer) Return
	Execute(stmt Handle) Return
	Fetch(stmt Handle) Return
	FreeStmt(stmt Handle, option FreeOption) Return

	// GetDiagRec returns diagnostic record rec (1-based) of h. It returns
	// NoData once the records are exhausted.
	GetDiagRec(typ HandleType, h Handle, rec int16) (Diagnostic, Return)
}

// Diagnostics collects every diagnostic record currently attached to h.
func Diagnostics(api API, typ HandleType, h Handle) []Diagnostic {
	var diags []Diagnostic
	for rec := int16(1); rec <= maxDiagRecords; rec++ {
		d, rc := api.GetDiagRec(typ, h, rec)
		if !rc.Succeeded() {
			return diags
		}
		diags = append(diags, d)
	}
	return diags
}

const maxDiagRecords = 16
