// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/canonical/sqlbind/internal/typeinfo"
	"github.com/canonical/sqlbind/native"
)

var (
	// ErrClosed is returned when using a closed environment, connection or
	// statement.
	ErrClosed = errors.New("use of closed handle")

	// ErrTXDone is returned when ending a transaction twice.
	ErrTXDone = errors.New("transaction has already been committed or rolled back")

	// ErrEmptyParamSet is returned when executing a statement whose
	// ParamSet holds no rows.
	ErrEmptyParamSet = errors.New("cannot execute an empty parameter set")

	// ErrBindingInUse is returned when preparing a statement with a binding
	// that already belongs to another statement.
	ErrBindingInUse = errors.New("binding already belongs to a statement")
)

// StructuralError reports a record type that cannot be bound.
type StructuralError = typeinfo.StructuralError

// NativeCallError is a native call that did not succeed.
type NativeCallError struct {
	// Op is the name of the native function, e.g. "SQLExecute".
	Op string
	// Code is the return code of the call.
	Code native.Return
	// Diagnostics are the diagnostic records attached to the handle after
	// the call, if any.
	Diagnostics []native.Diagnostic
}

func (e *NativeCallError) Error() string {
	msg := fmt.Sprintf("%s returned %s", e.Op, e.Code)
	if len(e.Diagnostics) == 0 {
		return msg
	}
	diags := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		diags[i] = d.String()
	}
	return msg + ": " + strings.Join(diags, "; ")
}

// checkCall turns the return code of a call on h into an error. Diagnostics
// are collected from h when the call failed.
func checkCall(api native.API, typ native.HandleType, h native.Handle, op string, rc native.Return) error {
	if rc.Succeeded() {
		return nil
	}
	return &NativeCallError{Op: op, Code: rc, Diagnostics: native.Diagnostics(api, typ, h)}
}
