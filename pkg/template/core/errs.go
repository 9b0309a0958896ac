// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"runtime/debug"

	"github.com/k14s/starlark-go/starlark"

	"templar.dev/templar/pkg/marker"
)

type StarlarkFunc func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// ErrWrapper converts panics and errors escaping a builtin into
// ForeignError, keeping the builtin name and a backtrace for the
// trace chain.
func ErrWrapper(wrappedFunc StarlarkFunc) StarlarkFunc {
	return func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (val starlark.Value, resultErr error) {
		// Catch any panics to give better contextual information
		defer func() {
			if err := recover(); err != nil {
				cause, ok := err.(error)
				if !ok {
					cause = fmt.Errorf("(p) %s", err)
				}
				resultErr = marker.ForeignError{
					Msg:   fmt.Sprintf("calling '%s'", f.Name()),
					Cause: cause,
					Trace: string(debug.Stack()),
				}
			}
		}()

		val, err := wrappedFunc(thread, f, args, kwargs)
		if err != nil {
			return val, marker.NewForeignError(fmt.Sprintf("calling '%s'", f.Name()), err)
		}

		return val, nil
	}
}

// ErrDescWrapper prefixes errors with a fixed description.
func ErrDescWrapper(desc string, wrappedFunc StarlarkFunc) StarlarkFunc {
	return func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		val, err := wrappedFunc(thread, f, args, kwargs)
		if err != nil {
			return val, marker.NewForeignError(desc, err)
		}
		return val, nil
	}
}
