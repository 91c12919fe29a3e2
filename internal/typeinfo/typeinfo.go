// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"

	"github.com/canonical/sqlbind/native"
)

// cached holds the outcome of describing a type, successful or not.
type cached struct {
	info *Info
	err  error
}

var cacheMutex sync.RWMutex
var cache = make(map[reflect.Type]cached)

// GetTypeInfo returns the Info of the given type, generating and caching it
// as required. A type that could not be described once returns the same
// error on every later call.
func GetTypeInfo(t reflect.Type) (*Info, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot reflect nil type")
	}

	cacheMutex.RLock()
	c, found := cache[t]
	cacheMutex.RUnlock()
	if found {
		return c.info, c.err
	}

	info, err := generate(t)
	c = cached{info: info, err: err}

	cacheMutex.Lock()
	cache[t] = c
	cacheMutex.Unlock()

	return c.info, c.err
}

// Of returns the Info of T.
func Of[T any]() (*Info, error) {
	return GetTypeInfo(reflect.TypeOf((*T)(nil)).Elem())
}

// generate produces the shape of t.
func generate(t reflect.Type) (*Info, error) {
	g := generator{root: t}
	root, err := g.node(t, 0, "")
	if err != nil {
		return nil, err
	}
	return &Info{Type: t, Root: root, Leaves: root.leaves()}, nil
}

// The "sqlbind" struct tag marks the members of the Nullable and Text
// wrappers, and lets record fields opt out of binding with "-".
const tagKey = "sqlbind"

const (
	tagSkip       = "-"
	tagIndicator  = "indicator"
	tagValue      = "value"
	tagText       = "text"
	tagTerminator = "terminator"
)

var lenType = reflect.TypeOf(native.Len(0))

type generator struct {
	root reflect.Type
}

func (g *generator) errorf(path string, format string, args ...any) error {
	return &StructuralError{Type: g.root, Path: path, Reason: fmt.Sprintf(format, args...)}
}

func (g *generator) node(t reflect.Type, offset uintptr, path string) (Node, error) {
	if kind := kindOf(t); kind != Invalid {
		return &Scalar{Offset: offset, Kind: kind}, nil
	}

	switch t.Kind() {
	case reflect.Struct:
		wrapped, err := g.wrapper(t, offset, path)
		if wrapped != nil || err != nil {
			return wrapped, err
		}
		return g.record(t, offset, path)
	case reflect.Array:
		elems := make([]Node, t.Len())
		size := t.Elem().Size()
		for i := range elems {
			elem, err := g.node(t.Elem(), uintptr(i)*size, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return &Tuple{Offset: offset, Elems: elems}, nil
	}
	return nil, g.errorf(path, "unsupported %s", describe(t))
}

// record describes a plain struct. Fields named "_" and fields tagged
// `sqlbind:"-"` are skipped.
func (g *generator) record(t reflect.Type, offset uintptr, path string) (Node, error) {
	rec := &Record{Offset: offset, Type: t}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name == "_" || f.Tag.Get(tagKey) == tagSkip {
			continue
		}
		fieldPath := f.Name
		if path != "" {
			fieldPath = path + "." + f.Name
		}
		node, err := g.node(f.Type, f.Offset, fieldPath)
		if err != nil {
			return nil, err
		}
		rec.Fields = append(rec.Fields, Field{Name: f.Name, Node: node})
	}
	return rec, nil
}

// wrapper recognises the Nullable and Text layouts by their tagged members.
// It returns a nil node and nil error for any other struct.
func (g *generator) wrapper(t reflect.Type, offset uintptr, path string) (Node, error) {
	var indicator, value, text *reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		switch f.Tag.Get(tagKey) {
		case tagIndicator:
			indicator = &f
		case tagValue:
			value = &f
		case tagText:
			text = &f
		}
	}
	if indicator == nil {
		if value != nil || text != nil {
			return nil, g.errorf(path, "wrapper %s has no indicator", t)
		}
		return nil, nil
	}
	if indicator.Type != lenType {
		return nil, g.errorf(path, "indicator of %s must be %s, got %s", t, lenType, indicator.Type)
	}

	switch {
	case value != nil && text != nil:
		return nil, g.errorf(path, "wrapper %s has both a value and a text member", t)
	case value != nil:
		kind := kindOf(value.Type)
		if kind == Invalid {
			return nil, g.errorf(path, "nullable value must be a scalar, got %s", describe(value.Type))
		}
		return &Nullable{
			Offset:          offset,
			IndicatorOffset: indicator.Offset,
			Value:           &Scalar{Offset: value.Offset, Kind: kind},
		}, nil
	case text != nil:
		if text.Type.Kind() != reflect.Array || text.Type.Elem().Kind() != reflect.Uint8 {
			return nil, g.errorf(path, "text storage must be a byte array, got %s", describe(text.Type))
		}
		if text.Type.Len() == 0 {
			return nil, g.errorf(path, "text capacity must be positive")
		}
		return &Text{
			Offset:          offset,
			IndicatorOffset: indicator.Offset,
			BufferOffset:    text.Offset,
			Cap:             text.Type.Len(),
		}, nil
	}
	return nil, g.errorf(path, "wrapper %s has an indicator but nothing to indicate", t)
}

func describe(t reflect.Type) string {
	if t.PkgPath() != "" {
		return t.Kind().String() + " type " + t.String()
	}
	return t.String()
}
