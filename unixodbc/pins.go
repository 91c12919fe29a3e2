// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package unixodbc

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/canonical/sqlbind/native"
)

// pinKind tells apart the bindings of a statement sharing a number.
type pinKind int

const (
	pinCol pinKind = iota
	pinParam
	pinAttr
)

// pinKey names one binding of a statement: a column, a parameter or a
// pointer attribute.
type pinKey struct {
	kind pinKind
	n    int
}

// pins keeps the Go objects bound to each statement in place while the
// driver may use them. Each binding has a pinner of its own, so rebinding a
// column releases what it was bound to before. An object bound twice stays
// pinned until both bindings are gone.
type pins struct {
	mutex sync.Mutex
	stmts map[native.Handle]map[pinKey]*runtime.Pinner
}

// bind pins ptrs for the binding key of stmt and returns a function that
// must be called with whether the bind call succeeded. On success the
// objects previously pinned for key are released; on failure the new pins
// are.
func (p *pins) bind(stmt native.Handle, key pinKey, ptrs ...unsafe.Pointer) func(ok bool) {
	pinner := &runtime.Pinner{}
	for _, ptr := range ptrs {
		if ptr != nil {
			pinner.Pin(ptr)
		}
	}
	return func(ok bool) {
		if !ok {
			pinner.Unpin()
			return
		}
		p.mutex.Lock()
		defer p.mutex.Unlock()
		if p.stmts == nil {
			p.stmts = map[native.Handle]map[pinKey]*runtime.Pinner{}
		}
		bound, exists := p.stmts[stmt]
		if !exists {
			bound = map[pinKey]*runtime.Pinner{}
			p.stmts[stmt] = bound
		}
		if old, exists := bound[key]; exists {
			old.Unpin()
		}
		bound[key] = pinner
	}
}

// release unpins every binding of stmt of the given kind.
func (p *pins) release(stmt native.Handle, kind pinKind) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for key, pinner := range p.stmts[stmt] {
		if key.kind == kind {
			pinner.Unpin()
			delete(p.stmts[stmt], key)
		}
	}
}

// releaseAll unpins every binding of stmt.
func (p *pins) releaseAll(stmt native.Handle) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, pinner := range p.stmts[stmt] {
		pinner.Unpin()
	}
	delete(p.stmts, stmt)
}

// count returns the number of bindings of stmt holding pins.
func (p *pins) count(stmt native.Handle) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.stmts[stmt])
}
