// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package odbctest provides an in-process implementation of the call-level
interface described by package native, backed by SQLite.

It behaves like an ODBC driver manager with a single driver loaded: values
are read from and written to the addresses bound with BindCol and
BindParameter on every Execute and Fetch, row-wise and column-wise arrays are
honoured, and failures are reported through return codes and diagnostic
records carrying SQLSTATE codes. It is meant for tests of code written
against native.API, and so it also counts calls and can be told to fail
them.

Connection strings have the form "Driver=sqlite3;Database=:memory:;". Keys
are case insensitive. Every connection to ":memory:" gets a database of its
own; any other Database value is the path of a database file.
*/
package odbctest

import (
	"fmt"
	"sync"

	"github.com/canonical/sqlbind/native"
)

// Driver implements native.API. The zero value is not usable; use New.
//
// A Driver is safe for concurrent use, although a single handle should only
// be used by one goroutine at a time, as with any ODBC driver.
type Driver struct {
	mutex   sync.Mutex
	next    native.Handle
	objects map[native.Handle]object
	diags   map[native.Handle][]native.Diagnostic

	calls    map[string]int
	failures map[string][]native.Return

	checkSizes bool
}

var _ native.API = (*Driver)(nil)

// object is the state behind a handle: *environment, *connection or
// *statement.
type object interface {
	handleType() native.HandleType
}

// New returns a Driver with no handles allocated.
func New() *Driver {
	return &Driver{
		objects:  map[native.Handle]object{},
		diags:    map[native.Handle][]native.Diagnostic{},
		calls:    map[string]int{},
		failures: map[string][]native.Return{},
	}
}

// Calls returns how many times the named function, e.g. "SQLBindCol", was
// called since the Driver was created or ResetCalls was last called.
func (d *Driver) Calls(op string) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.calls[op]
}

// ResetCalls sets every call count back to zero.
func (d *Driver) ResetCalls() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.calls = map[string]int{}
}

// Fail makes the next call of the named function return rc without doing
// anything. Each call to Fail affects one call of the function.
func (d *Driver) Fail(op string, rc native.Return) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.failures[op] = append(d.failures[op], rc)
}

// CheckColumnSizes makes Execute fail with SQLSTATE 22001 when a character
// parameter is longer than the column size it was bound with, as strict
// drivers do. By default the column size is ignored, as SQLite does.
func (d *Driver) CheckColumnSizes() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.checkSizes = true
}

// Handles returns the number of handles currently allocated.
func (d *Driver) Handles() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.objects)
}

// enter counts a call of op on h and clears the diagnostics of h, as every
// ODBC function does on entry. If a failure was injected for op, enter
// returns it and the call must return it immediately.
// The mutex must be held.
func (d *Driver) enter(op string, h native.Handle) (native.Return, bool) {
	d.calls[op]++
	if h != native.NullHandle {
		delete(d.diags, h)
	}
	if pending := d.failures[op]; len(pending) > 0 {
		rc := pending[0]
		d.failures[op] = pending[1:]
		if !rc.Succeeded() && h != native.NullHandle {
			d.diag(h, stateGeneral, "injected failure of %s", op)
		}
		return rc, true
	}
	return native.Success, false
}

// diag attaches a diagnostic record to h.
// The mutex must be held.
func (d *Driver) diag(h native.Handle, state string, format string, args ...any) {
	d.diags[h] = append(d.diags[h], native.Diagnostic{State: state, Message: fmt.Sprintf(format, args...)})
}

// fail attaches a diagnostic record to h and returns native.Error.
// The mutex must be held.
func (d *Driver) fail(h native.Handle, state string, format string, args ...any) native.Return {
	d.diag(h, state, format, args...)
	return native.Error
}

// lookup returns the object behind h if it is of type typ.
// The mutex must be held.
func (d *Driver) lookup(typ native.HandleType, h native.Handle) (object, bool) {
	obj, ok := d.objects[h]
	if !ok || obj.handleType() != typ {
		return nil, false
	}
	return obj, true
}

func (d *Driver) env(h native.Handle) (*environment, bool) {
	obj, ok := d.lookup(native.HandleEnv, h)
	if !ok {
		return nil, false
	}
	return obj.(*environment), true
}

func (d *Driver) conn(h native.Handle) (*connection, bool) {
	obj, ok := d.lookup(native.HandleDbc, h)
	if !ok {
		return nil, false
	}
	return obj.(*connection), true
}

func (d *Driver) stmt(h native.Handle) (*statement, bool) {
	obj, ok := d.lookup(native.HandleStmt, h)
	if !ok {
		return nil, false
	}
	return obj.(*statement), true
}

// AllocHandle implements native.API.
func (d *Driver) AllocHandle(typ native.HandleType, parent native.Handle) (native.Handle, native.Return) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLAllocHandle", parent); injected {
		return native.NullHandle, rc
	}

	var obj object
	switch typ {
	case native.HandleEnv:
		obj = &environment{}
	case native.HandleDbc:
		env, ok := d.env(parent)
		if !ok {
			return native.NullHandle, native.InvalidHandle
		}
		if env.version == 0 {
			return native.NullHandle, d.fail(parent, stateSequence, "ODBC version not set on environment")
		}
		obj = &connection{env: env, autoCommit: true}
	case native.HandleStmt:
		conn, ok := d.conn(parent)
		if !ok {
			return native.NullHandle, native.InvalidHandle
		}
		if conn.db == nil {
			return native.NullHandle, d.fail(parent, stateNotConnected, "connection not open")
		}
		obj = newStatement(conn)
	default:
		return native.NullHandle, d.fail(parent, stateInvalidHandleType, "invalid handle type %d", typ)
	}

	d.next++
	h := d.next
	d.objects[h] = obj
	switch obj := obj.(type) {
	case *connection:
		obj.env.conns++
	case *statement:
		obj.conn.stmts++
	}
	return h, native.Success
}

// FreeHandle implements native.API. A connection must be disconnected and an
// environment must have no connections left before they can be freed.
func (d *Driver) FreeHandle(typ native.HandleType, h native.Handle) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLFreeHandle", h); injected {
		return rc
	}

	obj, ok := d.lookup(typ, h)
	if !ok {
		return native.InvalidHandle
	}
	switch obj := obj.(type) {
	case *environment:
		if obj.conns > 0 {
			return d.fail(h, stateSequence, "environment has %d connections allocated", obj.conns)
		}
	case *connection:
		if obj.db != nil {
			return d.fail(h, stateSequence, "connection is still open")
		}
		obj.env.conns--
	case *statement:
		obj.close()
		obj.conn.stmts--
	}
	delete(d.objects, h)
	delete(d.diags, h)
	return native.Success
}

// GetDiagRec implements native.API.
func (d *Driver) GetDiagRec(typ native.HandleType, h native.Handle, rec int16) (native.Diagnostic, native.Return) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.calls["SQLGetDiagRec"]++

	if _, ok := d.lookup(typ, h); !ok {
		return native.Diagnostic{}, native.InvalidHandle
	}
	if rec < 1 {
		return native.Diagnostic{}, native.Error
	}
	diags := d.diags[h]
	if int(rec) > len(diags) {
		return native.Diagnostic{}, native.NoData
	}
	return diags[rec-1], native.Success
}
