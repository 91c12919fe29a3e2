// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package odbctest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/canonical/sqlbind/native"
)

// This file contains a wrapper sql.Driver over the SQLite driver which counts
// the statements SQLite runs for each database. Fetching from a bound result
// set must never reach SQLite, and a parameter set of N rows must run exactly
// N statements; the counts let tests check both.

const engineDriverName = "sqlite3_odbctest"

// engineQueries counts the statements run on each database, indexed by
// database name. The engineMutex must be used when accessing the counts.
var engineQueries = map[string]int{}
var engineMutex sync.RWMutex

func countQuery(dbName string) {
	engineMutex.Lock()
	defer engineMutex.Unlock()
	engineQueries[dbName]++
}

// EngineQueries returns how many statements SQLite ran on the database
// behind the connection handle h.
func (d *Driver) EngineQueries(h native.Handle) int {
	d.mutex.Lock()
	conn, ok := d.conn(h)
	d.mutex.Unlock()
	if !ok {
		return 0
	}
	engineMutex.RLock()
	defer engineMutex.RUnlock()
	return engineQueries[conn.dbName]
}

type engineDriver struct {
	driver.Driver
}

type engineConn struct {
	dbName string
	*sqlite3.SQLiteConn
}

type engineStmt struct {
	dbName string
	*sqlite3.SQLiteStmt
}

func (c *engineConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	s, err := c.SQLiteConn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	if sm, ok := s.(*sqlite3.SQLiteStmt); ok {
		return &engineStmt{SQLiteStmt: sm, dbName: c.dbName}, nil
	}
	panic(fmt.Sprintf("internal error: base driver is not SQLite, got %T", s))
}

func (c *engineConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *engineConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	rows, err := c.SQLiteConn.QueryContext(ctx, query, args)
	if err == nil {
		countQuery(c.dbName)
	}
	return rows, err
}

func (c *engineConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	res, err := c.SQLiteConn.ExecContext(ctx, query, args)
	if err == nil {
		countQuery(c.dbName)
	}
	return res, err
}

func (s *engineStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	rows, err := s.SQLiteStmt.QueryContext(ctx, args)
	if err == nil {
		countQuery(s.dbName)
	}
	return rows, err
}

func (s *engineStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	res, err := s.SQLiteStmt.ExecContext(ctx, args)
	if err == nil {
		countQuery(s.dbName)
	}
	return res, err
}

// Open expects a DSN of the form "file:<name>[?<options>]".
func (d *engineDriver) Open(dsn string) (driver.Conn, error) {
	name := strings.TrimPrefix(dsn, "file:")
	name, _, _ = strings.Cut(name, "?")

	baseConn, err := d.Driver.Open(dsn)
	if err != nil {
		return nil, err
	}
	if baseConn, ok := baseConn.(*sqlite3.SQLiteConn); ok {
		return &engineConn{SQLiteConn: baseConn, dbName: name}, nil
	}
	panic("internal error: base driver is not SQLite")
}

func init() {
	sql.Register(engineDriverName, &engineDriver{
		&sqlite3.SQLiteDriver{},
	})
}
