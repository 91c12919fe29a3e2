// Package demo is a todo list store built on sqlbind. Every operation runs
// in a transaction of its own over statements prepared once.
package demo

import (
	"github.com/pkg/errors"

	"github.com/canonical/sqlbind"
)

// MaxTextLen is the longest todo text that can be stored, in bytes.
const MaxTextLen = 4096

// ErrTextTooLong is the cause of the error returned when a todo text is
// longer than MaxTextLen.
var ErrTextTooLong = errors.New("todo text too long")

// Todo is a todo list entry.
type Todo struct {
	Text string
	Done bool
}

// todoRecord is the row of the todos table. A NULL id lets SQLite pick the
// next rowid on insert.
type todoRecord struct {
	ID   sqlbind.Nullable[int32]
	Text sqlbind.Text[[MaxTextLen]byte]
	Done bool
}

type updateRecord struct {
	Todo todoRecord
	ID   int32
}

// Service stores todos in the database behind a connection. It is not safe
// for concurrent use.
type Service struct {
	conn    *sqlbind.Connection
	closers []func() error

	selectAll *sqlbind.Statement[sqlbind.NoParams, *sqlbind.RowSet[todoRecord]]
	selectOne *sqlbind.Statement[*sqlbind.Params[int32], *sqlbind.Cols[todoRecord]]
	insert    *sqlbind.Statement[*sqlbind.Params[todoRecord], sqlbind.NoCols]
	lastRowID *sqlbind.Statement[sqlbind.NoParams, *sqlbind.Cols[int32]]
	update    *sqlbind.Statement[*sqlbind.Params[updateRecord], sqlbind.NoCols]
}

// fetchSize is the number of todos read by each fetch of Todos.
const fetchSize = 32

// NewService creates the todos table if needed and prepares the statements
// of the service.
func NewService(conn *sqlbind.Connection) (_ *Service, err error) {
	s := &Service{conn: conn}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	create, err := prepare(s, `
		CREATE TABLE IF NOT EXISTS todos (
			id INTEGER PRIMARY KEY,
			text VARCHAR(4096) NOT NULL,
			done TINYINT NOT NULL
		)`,
		sqlbind.NoParams{}, sqlbind.NoCols{},
	)
	if err != nil {
		return nil, err
	}
	err = s.inTX(func() error {
		return create.Exec()
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating todos table")
	}

	s.selectAll, err = prepare(s, "SELECT id, text, done FROM todos", sqlbind.NoParams{}, sqlbind.NewRowSet[todoRecord](fetchSize))
	if err != nil {
		return nil, err
	}
	s.selectOne, err = prepare(s, "SELECT id, text, done FROM todos WHERE id = ?", sqlbind.NewParams[int32](), sqlbind.NewCols[todoRecord]())
	if err != nil {
		return nil, err
	}
	s.insert, err = prepare(s, "INSERT INTO todos (id, text, done) VALUES (?, ?, ?)", sqlbind.NewParams[todoRecord](), sqlbind.NoCols{})
	if err != nil {
		return nil, err
	}
	s.lastRowID, err = prepare(s, "SELECT last_insert_rowid()", sqlbind.NoParams{}, sqlbind.NewCols[int32]())
	if err != nil {
		return nil, err
	}
	s.update, err = prepare(s, "UPDATE todos SET id = ?, text = ?, done = ? WHERE id = ?", sqlbind.NewParams[updateRecord](), sqlbind.NoCols{})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func prepare[P sqlbind.ParamBinding, C sqlbind.ColBinding](s *Service, query string, params P, cols C) (*sqlbind.Statement[P, C], error) {
	stmt, err := sqlbind.Prepare(s.conn, query, params, cols)
	if err != nil {
		return nil, errors.Wrapf(err, "preparing %q", query)
	}
	s.closers = append(s.closers, stmt.Close)
	return stmt, nil
}

// Close closes the statements of the service. The connection stays open.
func (s *Service) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// inTX runs f in a transaction, committing if it succeeds.
func (s *Service) inTX(f func() error) error {
	tx := s.conn.Begin()
	defer tx.Close()
	if err := f(); err != nil {
		return err
	}
	return tx.Commit()
}

// Todos returns every todo, keyed by id.
func (s *Service) Todos() (map[int32]Todo, error) {
	todos := map[int32]Todo{}
	err := s.inTX(func() error {
		if err := s.selectAll.Exec(); err != nil {
			return err
		}
		for {
			ok, err := s.selectAll.Fetch()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			rows := s.selectAll.Cols().Rows()
			for i := range rows {
				rec := &rows[i]
				id, _ := rec.ID.Get()
				todos[id] = Todo{Text: rec.Text.String(), Done: rec.Done}
			}
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing todos")
	}
	return todos, nil
}

// Todo returns the todo with the given id. It reports false if there is
// none.
func (s *Service) Todo(id int32) (Todo, bool, error) {
	var todo Todo
	var found bool
	err := s.inTX(func() error {
		s.selectOne.Params().Set(id)
		if err := s.selectOne.Exec(); err != nil {
			return err
		}
		var err error
		found, err = s.selectOne.Fetch()
		if err != nil || !found {
			return err
		}
		rec := s.selectOne.Cols().Value()
		todo = Todo{Text: rec.Text.String(), Done: rec.Done}
		return nil
	})
	if err != nil {
		return Todo{}, false, errors.Wrapf(err, "getting todo %d", id)
	}
	return todo, found, nil
}

// Add stores a new todo and returns its id.
func (s *Service) Add(todo Todo) (int32, error) {
	if len(todo.Text) > MaxTextLen {
		return 0, errors.Wrapf(ErrTextTooLong, "%d bytes", len(todo.Text))
	}
	var id int32
	err := s.inTX(func() error {
		rec := s.insert.Params().Value()
		rec.ID.SetNull()
		rec.Text.SetString(todo.Text)
		rec.Done = todo.Done
		if err := s.insert.Exec(); err != nil {
			return err
		}

		if err := s.lastRowID.Exec(); err != nil {
			return err
		}
		ok, err := s.lastRowID.Fetch()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("no rowid after insert")
		}
		id = *s.lastRowID.Cols().Value()
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "adding todo")
	}
	return id, nil
}

// Set replaces the todo with the given id. Setting a todo that does not
// exist does nothing.
func (s *Service) Set(id int32, todo Todo) error {
	if len(todo.Text) > MaxTextLen {
		return errors.Wrapf(ErrTextTooLong, "%d bytes", len(todo.Text))
	}
	err := s.inTX(func() error {
		args := s.update.Params().Value()
		args.ID = id
		args.Todo.ID.Set(id)
		args.Todo.Text.SetString(todo.Text)
		args.Todo.Done = todo.Done
		return s.update.Exec()
	})
	return errors.Wrapf(err, "setting todo %d", id)
}
