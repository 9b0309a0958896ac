// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

// Package marker implements the deferred-error protocol: instead of
// failing mid-evaluation, the engine produces marker values that flow
// through tolerant operations and only become errors when a
// non-tolerant operation trips them.
package marker

import "fmt"

// Marker is a poisoned value standing in for a result that could not
// be produced. Markers are produced, never raised; tripping one
// converts it into an error at the use site.
type Marker interface {
	// Message is the single-line display text for the marker.
	Message() string
	// AsError converts the marker into its error form.
	AsError() error
}

// Undefined stands in for a variable or attribute that does not
// exist. Name is the missing identifier; Hint adds use-site context.
type Undefined struct {
	Name string
	Hint string
}

var _ Marker = Undefined{}

func (u Undefined) Message() string {
	msg := fmt.Sprintf("'%s' is undefined", u.Name)
	if len(u.Name) == 0 {
		msg = "value is undefined"
	}
	if len(u.Hint) > 0 {
		msg += ". " + u.Hint
	}
	return msg
}

func (u Undefined) AsError() error { return UndefinedError{u} }

// CapturedError stands in for a value whose production failed. The
// original error is preserved for chaining.
type CapturedError struct {
	Err error
}

var _ Marker = CapturedError{}

func (c CapturedError) Message() string { return c.Err.Error() }
func (c CapturedError) AsError() error  { return c.Err }

// Truncation records that evaluation of a template was cut short and
// the result is incomplete.
type Truncation struct {
	Reason string
}

var _ Marker = Truncation{}

func (t Truncation) Message() string {
	if len(t.Reason) == 0 {
		return "result was truncated"
	}
	return "result was truncated: " + t.Reason
}

func (t Truncation) AsError() error { return fmt.Errorf("%s", t.Message()) }

// VaultFailure stands in for an encrypted value that could not be
// decrypted.
type VaultFailure struct {
	Ciphertext string
	Err        error
}

var _ Marker = VaultFailure{}

func (v VaultFailure) Message() string {
	return fmt.Sprintf("value could not be decrypted: %s", v.Err)
}

func (v VaultFailure) AsError() error { return fmt.Errorf("%s", v.Message()) }

// IsMarker reports whether a value is a marker.
func IsMarker(value interface{}) bool {
	_, ok := value.(Marker)
	return ok
}

// TrippedError carries a marker that reached a non-tolerant
// operation.
type TrippedError struct {
	Marker Marker
}

func (e TrippedError) Error() string { return e.Marker.Message() }

// Trip converts a marker into its trip error.
func Trip(m Marker) error { return TrippedError{m} }

// First returns the first marker among the given values.
func First(values ...interface{}) (Marker, bool) {
	for _, value := range values {
		if m, ok := value.(Marker); ok {
			return m, true
		}
	}
	return nil, false
}
