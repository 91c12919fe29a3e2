/*
Package sqlbind binds statically typed Go records directly to the parameter
and result-column slots of an ODBC-style call-level SQL interface.

A record is any Go value built from the supported scalar types (signed and
unsigned integers of every width, float32, float64 and bool), fixed-capacity
text buffers ([Text]), nullable scalars ([Nullable]), structs and arrays.
Every primitive member becomes one column or parameter, numbered in
declaration order:

	type Todo struct {
		ID   sqlbind.Nullable[int32]
		Text sqlbind.Text[[4096]byte]
		Done bool
	}

The record is described once by reflection. After that, binding a record to a
statement issues one native bind call per member and nothing else: the
native layer reads parameters from, and writes columns into, the record's own
memory on every execution.

# Statements

A [Statement] is prepared with one parameter binding and one column binding:

	stmt, err := sqlbind.Prepare(conn, "SELECT id, text, done FROM todos WHERE id = ?",
		sqlbind.NewParams[int32](), sqlbind.NewCols[Todo]())

Parameter bindings are [NoParams], [Params] (a single record) and [ParamSet]
(an array of records submitted in one execution). Column bindings are
[NoCols], [Cols] (a single record) and [RowSet] (an array of records filled
by each fetch).

The application fills the parameter record, calls [Statement.Exec] and then
calls [Statement.Fetch] until it reports that the result set is exhausted,
reading the column record after each successful fetch:

	stmt.Params().Set(42)
	if err := stmt.Exec(); err != nil {
		return err
	}
	for {
		ok, err := stmt.Fetch()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		todo := stmt.Cols().Value()
		...
	}

# Rebinding

Bindings are only reissued when the memory backing a record moves. A
[Params] or [Cols] record never moves, so it is bound exactly once. A
[ParamSet] or [RowSet] moves when it outgrows its capacity; its native array
size attributes are reissued whenever its length changes.

# Errors

Failures of the native layer are returned as [*NativeCallError] carrying the
native return code. A record type that cannot be bound is reported as a
[*StructuralError] on the first execution and on every execution after it.
*/
package sqlbind
