// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

// ParamBinding supplies the parameters of a statement. It is implemented by
// [NoParams], [*Params] and [*ParamSet].
type ParamBinding interface {
	attach() error
	detach()
	// bindParams makes the native parameter bindings match the current
	// storage. It is called before every execution.
	bindParams(b binder) error
}

// ColBinding receives the result columns of a statement. It is implemented
// by [NoCols], [*Cols] and [*RowSet].
type ColBinding interface {
	attach() error
	detach()
	// bindCols makes the native column bindings match the current storage.
	// It is called before every execution.
	bindCols(b binder) error
	// fetched is called after every successful fetch and reports whether
	// it produced any rows.
	fetched() bool
	// exhausted is called when a fetch reports the end of the result set.
	exhausted()
}

// bindState tracks what has been bound for a binding: the statement it
// belongs to, the generation of its storage and the array size.
//
// The generation changes every time the storage is reallocated, and the
// block is rebound when it differs from the generation last bound. Bindings
// hold the memory the driver writes through, so they belong to one
// statement at a time.
type bindState struct {
	attached bool

	current uint64
	bound   uint64
	isBound bool

	// size is the array size last set on the statement, zero if none.
	size int
}

func (st *bindState) attach() error {
	if st.attached {
		return ErrBindingInUse
	}
	st.attached = true
	return nil
}

// detach forgets everything bound, so the binding starts afresh on the next
// statement.
func (st *bindState) detach() {
	st.attached = false
	st.isBound = false
	st.size = 0
}

// moved records a reallocation of the storage.
func (st *bindState) moved() {
	st.current++
}

// stale reports whether the native bindings point at old storage.
func (st *bindState) stale() bool {
	return !st.isBound || st.current != st.bound
}

func (st *bindState) markBound() {
	st.bound = st.current
	st.isBound = true
}
