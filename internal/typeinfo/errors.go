// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"fmt"
	"reflect"
)

// StructuralError reports a record shape that cannot be bound. It is a
// setup-time contract violation and is never retried.
type StructuralError struct {
	// Type is the record type being described.
	Type reflect.Type
	// Path locates the offending member within Type, empty for Type itself.
	Path string
	// Reason describes what is wrong with the member.
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("cannot bind type %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("cannot bind type %s: %s: %s", e.Type, e.Path, e.Reason)
}
