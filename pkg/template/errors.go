// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"

	"templar.dev/templar/pkg/filepos"
)

// TrustViolationError reports an attempt to compile a string that
// does not carry the TrustedAsTemplate tag.
type TrustViolationError struct {
	Value  string
	Origin *filepos.Position
}

func (e TrustViolationError) Error() string {
	msg := fmt.Sprintf("Refusing to compile untrusted string as a template: %s", summarize(e.Value))
	if e.Origin.IsKnown() || len(e.Origin.File()) > 0 {
		msg += fmt.Sprintf(" (%s)", e.Origin.AsCompactString())
	}
	return msg
}

// SyntaxError reports a malformed template or expression.
type SyntaxError struct {
	Msg    string
	Source string
	Pos    *filepos.Position
}

func (e SyntaxError) Error() string {
	msg := e.Msg
	if e.Pos.IsKnown() || (e.Pos != nil && len(e.Pos.File()) > 0) {
		msg += fmt.Sprintf(" (%s)", e.Pos.AsCompactString())
	}
	if len(e.Source) > 0 {
		msg += fmt.Sprintf("\n    %s", summarize(e.Source))
	}
	return msg
}

// BrokenConditionalError reports a conditional that did not evaluate
// to a boolean, or was empty altogether. The legacy coercion for
// these requires the broken-conditionals compat flag.
type BrokenConditionalError struct {
	Result interface{}
	Empty  bool
}

func (e BrokenConditionalError) Error() string {
	if e.Empty {
		return "Expected conditional to not be empty (enable the broken-conditionals compat flag to coerce empty conditionals to true)"
	}
	return fmt.Sprintf("Expected conditional to evaluate to a boolean, but was %T (enable the broken-conditionals compat flag to coerce)", e.Result)
}

// TransformLimitError reports a transform chain that did not settle
// within the chain limit, usually a cycle between transforms.
type TransformLimitError struct {
	Value interface{}
}

func (e TransformLimitError) Error() string {
	return fmt.Sprintf("Transform chain for %T exceeded limit of %d", e.Value, TransformChainLimit)
}

// TypeError reports a value of an unexpected shape.
type TypeError struct {
	Expected string
	Actual   interface{}
}

func (e TypeError) Error() string {
	return fmt.Sprintf("Expected %s, but was %T", e.Expected, e.Actual)
}

// OmittedError reports an omit sentinel that escaped to a position
// where nothing can be left out (e.g. a template's own result).
type OmittedError struct{}

func (OmittedError) Error() string {
	return "Expected omit to be used inside a mapping or sequence entry"
}

func summarize(s string) string {
	const limit = 60
	if len(s) > limit {
		return fmt.Sprintf("%q...", s[:limit])
	}
	return fmt.Sprintf("%q", s)
}
