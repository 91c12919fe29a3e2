// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package odbctest

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/canonical/sqlbind/native"
)

type environment struct {
	version uintptr
	pooling uintptr
	conns   int
}

func (*environment) handleType() native.HandleType { return native.HandleEnv }

type connection struct {
	env *environment
	// dbName is the name the database is registered under by the engine.
	dbName     string
	db         *sqlx.DB
	tx         *sqlx.Tx
	autoCommit bool
	stmts      int
}

func (*connection) handleType() native.HandleType { return native.HandleDbc }

// queryer is implemented by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	Queryx(query string, args ...any) (*sqlx.Rows, error)
	Preparex(query string) (*sqlx.Stmt, error)
}

// current returns where statements run: the open transaction if there is
// one, the database otherwise.
func (c *connection) current() queryer {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

// begin starts the implicit transaction of a connection in manual commit
// mode, if it is not already running.
func (c *connection) begin() (queryer, error) {
	if c.autoCommit || c.tx != nil {
		return c.current(), nil
	}
	tx, err := c.db.Beginx()
	if err != nil {
		return nil, err
	}
	c.tx = tx
	return tx, nil
}

// end commits or rolls back the implicit transaction, if any.
func (c *connection) end(completion native.Completion) error {
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	if completion == native.Commit {
		return tx.Commit()
	}
	return tx.Rollback()
}

// SetEnvAttr implements native.API.
func (d *Driver) SetEnvAttr(h native.Handle, attr native.Attr, value uintptr) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLSetEnvAttr", h); injected {
		return rc
	}
	env, ok := d.env(h)
	if !ok {
		return native.InvalidHandle
	}
	switch attr {
	case native.AttrODBCVersion:
		if value != native.OVODBC3 {
			return d.fail(h, stateBadAttrValue, "unsupported ODBC version %d", value)
		}
		env.version = value
	case native.AttrConnectionPooling:
		env.pooling = value
	default:
		return d.fail(h, stateNotImplemented, "environment attribute %d not supported", attr)
	}
	return native.Success
}

// SetConnectAttr implements native.API. Turning autocommit on commits the
// transaction in progress.
func (d *Driver) SetConnectAttr(h native.Handle, attr native.Attr, value uintptr) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLSetConnectAttr", h); injected {
		return rc
	}
	conn, ok := d.conn(h)
	if !ok {
		return native.InvalidHandle
	}
	switch attr {
	case native.AttrAutoCommit:
		on := value == native.AutoCommitOn
		if on && !conn.autoCommit {
			if err := conn.end(native.Commit); err != nil {
				return d.fail(h, stateGeneral, "%v", err)
			}
		}
		conn.autoCommit = on
	default:
		return d.fail(h, stateNotImplemented, "connection attribute %d not supported", attr)
	}
	return native.Success
}

// DriverConnect implements native.API.
func (d *Driver) DriverConnect(h native.Handle, connStr string) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLDriverConnect", h); injected {
		return rc
	}
	conn, ok := d.conn(h)
	if !ok {
		return native.InvalidHandle
	}
	if conn.db != nil {
		return d.fail(h, stateSequence, "connection already open")
	}

	attrs := parseConnStr(connStr)
	if driver := attrs["driver"]; !strings.EqualFold(driver, "sqlite3") {
		return d.fail(h, stateDriverNotFound, "data source name not found and no default driver specified: %q", driver)
	}
	name := attrs["database"]
	var dsn string
	if name == "" || name == ":memory:" {
		name = uuid.NewString()
		dsn = "file:" + name + "?mode=memory&cache=shared"
	} else {
		dsn = "file:" + name
	}

	db, err := sqlx.Open(engineDriverName, dsn)
	if err == nil {
		err = db.Ping()
	}
	if err != nil {
		if db != nil {
			db.Close()
		}
		return d.fail(h, stateUnableToConnect, "cannot open %s: %v", name, err)
	}
	// A single engine connection keeps an in-memory database alive and
	// serialises the implicit transaction with everything else.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn.db = db
	conn.dbName = name
	return native.Success
}

// Disconnect implements native.API. Work not committed is rolled back.
func (d *Driver) Disconnect(h native.Handle) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLDisconnect", h); injected {
		return rc
	}
	conn, ok := d.conn(h)
	if !ok {
		return native.InvalidHandle
	}
	if conn.db == nil {
		return d.fail(h, stateNotConnected, "connection not open")
	}
	if conn.stmts > 0 {
		// Statements still allocated are freed implicitly.
		for sh, obj := range d.objects {
			if stmt, ok := obj.(*statement); ok && stmt.conn == conn {
				stmt.close()
				delete(d.objects, sh)
				delete(d.diags, sh)
			}
		}
		conn.stmts = 0
	}
	rbErr := conn.end(native.Rollback)
	err := conn.db.Close()
	conn.db = nil
	if rbErr != nil {
		err = rbErr
	}
	if err != nil {
		d.diag(h, stateGeneral, "%v", err)
		return native.SuccessWithInfo
	}
	return native.Success
}

// EndTran implements native.API. Ending the transactions of an environment
// ends them on every connection allocated from it.
func (d *Driver) EndTran(typ native.HandleType, h native.Handle, completion native.Completion) native.Return {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if rc, injected := d.enter("SQLEndTran", h); injected {
		return rc
	}
	var conns []*connection
	switch typ {
	case native.HandleDbc:
		conn, ok := d.conn(h)
		if !ok {
			return native.InvalidHandle
		}
		if conn.db == nil {
			return d.fail(h, stateNotConnected, "connection not open")
		}
		conns = append(conns, conn)
	case native.HandleEnv:
		env, ok := d.env(h)
		if !ok {
			return native.InvalidHandle
		}
		for _, obj := range d.objects {
			if conn, ok := obj.(*connection); ok && conn.env == env && conn.db != nil {
				conns = append(conns, conn)
			}
		}
	default:
		return d.fail(h, stateInvalidHandleType, "invalid handle type %d", typ)
	}
	if completion != native.Commit && completion != native.Rollback {
		return d.fail(h, stateBadAttrValue, "invalid completion type %d", completion)
	}

	for _, conn := range conns {
		// Cursors do not survive the end of a transaction.
		for _, obj := range d.objects {
			if stmt, ok := obj.(*statement); ok && stmt.conn == conn {
				stmt.closeCursor()
			}
		}
		if err := conn.end(completion); err != nil {
			return d.fail(h, stateInvalidTX, "%v", err)
		}
	}
	return native.Success
}

// parseConnStr splits a connection string into its attributes, keyed by
// lower-case name. Values may be enclosed in braces.
func parseConnStr(connStr string) map[string]string {
	attrs := map[string]string{}
	for _, part := range strings.Split(connStr, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		value = strings.TrimSuffix(strings.TrimPrefix(value, "{"), "}")
		attrs[key] = value
	}
	return attrs
}
