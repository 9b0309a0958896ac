// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package marker

import (
	"fmt"
	"strings"
)

// UndefinedError is the tripped form of an Undefined marker.
type UndefinedError struct {
	Undefined Undefined
}

func (e UndefinedError) Error() string { return e.Undefined.Message() }

// ForeignError wraps a failure raised by plugin or compiler code
// outside the engine. Messages chain outermost-first; collapsed
// duplicate messages are not repeated.
type ForeignError struct {
	Msg   string
	Cause error
	Trace string
}

func NewForeignError(msg string, cause error) ForeignError {
	return ForeignError{Msg: msg, Cause: cause}
}

func (e ForeignError) Error() string {
	if e.Cause == nil {
		return e.Msg
	}
	causeMsg := e.Cause.Error()
	if e.Msg == causeMsg || len(e.Msg) == 0 {
		return causeMsg
	}
	if strings.HasSuffix(e.Msg, causeMsg) {
		return e.Msg
	}
	return e.Msg + ": " + causeMsg
}

func (e ForeignError) Unwrap() error { return e.Cause }

// FullTrace concatenates this error's trace with its cause's,
// innermost trace last, separated by a divider line.
func (e ForeignError) FullTrace() string {
	traces := []string{}
	if len(e.Trace) > 0 {
		traces = append(traces, e.Trace)
	}
	if cause, ok := e.Cause.(ForeignError); ok {
		inner := cause.FullTrace()
		if len(inner) > 0 {
			traces = append(traces, inner)
		}
	}
	return strings.Join(traces, "\n"+traceSeparator+"\n")
}

const traceSeparator = "--- caused by ---"

// CombineTraces joins an outer and inner trace with the divider line
// used by FullTrace.
func CombineTraces(outer, inner string) string {
	switch {
	case len(outer) == 0:
		return inner
	case len(inner) == 0:
		return outer
	default:
		return fmt.Sprintf("%s\n%s\n%s", outer, traceSeparator, inner)
	}
}
