// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"runtime"

	"github.com/canonical/sqlbind/native"
)

// Statement is a prepared statement together with the bindings that supply
// its parameters and receive its result columns.
//
// A Statement is not safe for concurrent use.
type Statement[P ParamBinding, C ColBinding] struct {
	conn  *Connection
	h     *handle
	query string

	params P
	cols   C

	detached bool

	// positioned is set once a fetch has been issued, meaning a cursor may
	// be open and must be closed before the next execution.
	positioned bool
}

// Prepare prepares query on conn. The bindings belong to the returned
// statement until it is closed.
func Prepare[P ParamBinding, C ColBinding](conn *Connection, query string, params P, cols C) (*Statement[P, C], error) {
	if conn.h.isReleased() {
		return nil, ErrClosed
	}
	if err := params.attach(); err != nil {
		return nil, err
	}
	if err := cols.attach(); err != nil {
		params.detach()
		return nil, err
	}

	api := conn.h.api
	h, rc := api.AllocHandle(native.HandleStmt, conn.h.h)
	if err := conn.h.check("SQLAllocHandle", rc); err != nil {
		params.detach()
		cols.detach()
		return nil, err
	}
	s := &Statement[P, C]{
		conn:   conn,
		h:      newHandle(api, native.HandleStmt, h, conn.cfg.logger, conn.h),
		query:  query,
		params: params,
		cols:   cols,
	}
	if err := s.h.check("SQLPrepare", api.Prepare(h, query)); err != nil {
		s.release()
		return nil, err
	}
	runtime.SetFinalizer(s, func(s *Statement[P, C]) { s.release() })
	return s, nil
}

// Params returns the parameter binding.
func (s *Statement[P, C]) Params() P {
	return s.params
}

// Cols returns the column binding.
func (s *Statement[P, C]) Cols() C {
	return s.cols
}

// Query returns the SQL text the statement was prepared from.
func (s *Statement[P, C]) Query() string {
	return s.query
}

// Handle returns the native statement handle, for use with calls the
// package does not wrap. It must not be freed.
func (s *Statement[P, C]) Handle() native.Handle {
	return s.h.h
}

// Exec executes the statement with the current contents of the parameter
// binding. A cursor left open by an earlier execution is closed first.
func (s *Statement[P, C]) Exec() error {
	if s.h.isReleased() {
		return ErrClosed
	}
	b := binder{s.h}
	if s.positioned {
		if err := b.check("SQLFreeStmt", b.api.FreeStmt(b.h, native.Close)); err != nil {
			return err
		}
		s.positioned = false
		b.logger.Debug("closed cursor", "query", s.query)
	}
	if err := s.params.bindParams(b); err != nil {
		return err
	}
	if err := s.cols.bindCols(b); err != nil {
		return err
	}
	rc := b.api.Execute(b.h)
	if rc == native.NoData {
		// A searched UPDATE or DELETE that matched no rows.
		return nil
	}
	return b.check("SQLExecute", rc)
}

// Fetch advances the cursor, filling the column binding. It returns false
// once the result set is exhausted.
func (s *Statement[P, C]) Fetch() (bool, error) {
	if s.h.isReleased() {
		return false, ErrClosed
	}
	rc := s.h.api.Fetch(s.h.h)
	if rc == native.NoData {
		s.positioned = true
		s.cols.exhausted()
		return false, nil
	}
	if err := s.h.check("SQLFetch", rc); err != nil {
		return false, err
	}
	s.positioned = true
	return s.cols.fetched(), nil
}

// Close frees the statement and releases its bindings. A failure to free
// the handle is logged and otherwise ignored. Close is idempotent.
func (s *Statement[P, C]) Close() error {
	s.release()
	return nil
}

// release also runs when the connection was closed first, which freed the
// handle but left the bindings attached.
func (s *Statement[P, C]) release() {
	s.h.release()
	if !s.detached {
		s.detached = true
		s.params.detach()
		s.cols.detach()
	}
}
