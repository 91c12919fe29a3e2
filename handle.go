// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/canonical/sqlbind/native"
)

// handleIDCount is used to generate unique handle IDs.
var handleIDCount int64

// handle owns one native handle and releases it at most once.
//
// Handles form a tree: statements are children of their connection and
// connections are children of their environment. Releasing a handle first
// releases its children, so a parent is never freed while something derived
// from it is still allocated.
//
// Environments, connections and statements set a finalizer that releases
// their handle once they are garbage collected. The parent only holds the
// child *handle and never the object that owns it, so an unreachable
// statement is still collected while its connection is alive.
//
// The mutex must be locked when accessing released or children.
type handle struct {
	api    native.API
	typ    native.HandleType
	h      native.Handle
	logger *slog.Logger
	id     int64
	parent *handle

	// beforeFree runs before the handle is freed, e.g. to disconnect.
	beforeFree func()

	mutex    sync.Mutex
	released bool
	children map[int64]*handle
}

func newHandle(api native.API, typ native.HandleType, h native.Handle, logger *slog.Logger, parent *handle) *handle {
	hd := &handle{
		api:      api,
		typ:      typ,
		h:        h,
		logger:   logger,
		id:       atomic.AddInt64(&handleIDCount, 1),
		parent:   parent,
		children: map[int64]*handle{},
	}
	if parent != nil {
		parent.mutex.Lock()
		parent.children[hd.id] = hd
		parent.mutex.Unlock()
	}
	return hd
}

// isReleased reports whether the handle has been freed.
func (hd *handle) isReleased() bool {
	hd.mutex.Lock()
	defer hd.mutex.Unlock()
	return hd.released
}

// release frees the children of the handle and then the handle itself.
// Failures are logged and otherwise ignored: there is nothing the caller can
// do about a handle the driver refuses to free.
func (hd *handle) release() {
	hd.mutex.Lock()
	if hd.released {
		hd.mutex.Unlock()
		return
	}
	hd.released = true
	children := hd.children
	hd.children = nil
	hd.mutex.Unlock()

	for _, child := range children {
		child.release()
	}
	if hd.beforeFree != nil {
		hd.beforeFree()
	}
	if rc := hd.api.FreeHandle(hd.typ, hd.h); !rc.Succeeded() {
		hd.logger.Warn("cannot free handle", "type", hd.typ, "code", rc)
	}
	if hd.parent != nil {
		hd.parent.mutex.Lock()
		delete(hd.parent.children, hd.id)
		hd.parent.mutex.Unlock()
	}
}

// check turns the return code of a call on the handle into an error.
func (hd *handle) check(op string, rc native.Return) error {
	return checkCall(hd.api, hd.typ, hd.h, op, rc)
}
