// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"runtime"
	"sync/atomic"

	"github.com/canonical/sqlbind/native"
)

// Environment is the root of every native handle. It selects ODBC 3
// behaviour for everything allocated from it.
type Environment struct {
	h   *handle
	cfg config
}

// NewEnvironment allocates an environment handle on api.
func NewEnvironment(api native.API, opts ...Option) (*Environment, error) {
	cfg := newConfig(opts)
	h, rc := api.AllocHandle(native.HandleEnv, native.NullHandle)
	if !rc.Succeeded() {
		// There is no handle to read diagnostics from.
		return nil, &NativeCallError{Op: "SQLAllocHandle", Code: rc}
	}
	env := &Environment{h: newHandle(api, native.HandleEnv, h, cfg.logger, nil), cfg: cfg}

	err := env.h.check("SQLSetEnvAttr", api.SetEnvAttr(h, native.AttrODBCVersion, native.OVODBC3))
	if err == nil {
		pooling := native.CPOff
		if cfg.pooling {
			pooling = native.CPOnePerDriver
		}
		err = env.h.check("SQLSetEnvAttr", api.SetEnvAttr(h, native.AttrConnectionPooling, pooling))
	}
	if err != nil {
		env.h.release()
		return nil, err
	}
	runtime.SetFinalizer(env, func(env *Environment) { env.h.release() })
	return env, nil
}

// Close frees the environment and every connection still open on it.
func (env *Environment) Close() error {
	env.h.release()
	return nil
}

// Connection is a connection to a data source.
type Connection struct {
	// env keeps the environment reachable while the connection is in use.
	env *Environment
	h   *handle
	cfg config
}

// Connect opens a connection with a driver connection string, e.g.
// "Driver=sqlite3;Database=:memory:;".
func (env *Environment) Connect(connStr string) (*Connection, error) {
	if env.h.isReleased() {
		return nil, ErrClosed
	}
	api := env.h.api
	h, rc := api.AllocHandle(native.HandleDbc, env.h.h)
	if err := env.h.check("SQLAllocHandle", rc); err != nil {
		return nil, err
	}
	conn := &Connection{env: env, h: newHandle(api, native.HandleDbc, h, env.cfg.logger, env.h), cfg: env.cfg}

	if err := conn.h.check("SQLDriverConnect", api.DriverConnect(h, connStr)); err != nil {
		conn.h.release()
		return nil, err
	}
	conn.h.beforeFree = func() {
		if rc := api.Disconnect(h); !rc.Succeeded() {
			conn.cfg.logger.Warn("cannot disconnect", "code", rc)
		}
	}

	autoCommit := native.AutoCommitOff
	if env.cfg.autoCommit {
		autoCommit = native.AutoCommitOn
	}
	if err := conn.h.check("SQLSetConnectAttr", api.SetConnectAttr(h, native.AttrAutoCommit, autoCommit)); err != nil {
		conn.h.release()
		return nil, err
	}
	runtime.SetFinalizer(conn, func(conn *Connection) { conn.h.release() })
	return conn, nil
}

// Handle returns the native connection handle. It must not be freed.
func (conn *Connection) Handle() native.Handle {
	return conn.h.h
}

// Close closes every statement still open on the connection, disconnects
// and frees the connection handle. Work not committed is discarded by the
// driver.
func (conn *Connection) Close() error {
	conn.h.release()
	return nil
}

// endTran commits or rolls back the current unit of work.
func (conn *Connection) endTran(completion native.Completion) error {
	if conn.h.isReleased() {
		return ErrClosed
	}
	err := conn.h.check("SQLEndTran", conn.h.api.EndTran(native.HandleDbc, conn.h.h, completion))
	if err == nil {
		conn.cfg.logger.Debug("transaction ended", "commit", completion == native.Commit)
	}
	return err
}

// TX represents the unit of work in progress on a connection with autocommit
// turned off.
type TX struct {
	conn *Connection
	done int32
}

func (tx *TX) isDone() bool {
	return atomic.LoadInt32(&tx.done) == 1
}

func (tx *TX) setDone() error {
	if !atomic.CompareAndSwapInt32(&tx.done, 0, 1) {
		return ErrTXDone
	}
	return nil
}

// Begin returns the transaction covering the statements executed on the
// connection from now on. A transaction must be ended with a [TX.Commit] or
// [TX.Rollback]; [TX.Close] rolls back a transaction that was not ended.
func (conn *Connection) Begin() *TX {
	return &TX{conn: conn}
}

// Commit makes the work of the transaction durable.
func (tx *TX) Commit() error {
	err := tx.setDone()
	if err == nil {
		err = tx.conn.endTran(native.Commit)
	}
	return err
}

// Rollback discards the work of the transaction.
func (tx *TX) Rollback() error {
	err := tx.setDone()
	if err == nil {
		err = tx.conn.endTran(native.Rollback)
	}
	return err
}

// Close rolls the transaction back unless it was already ended.
func (tx *TX) Close() error {
	if tx.isDone() {
		return nil
	}
	err := tx.Rollback()
	if err == ErrTXDone {
		return nil
	}
	return err
}
