// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"strings"

	"templar.dev/templar/pkg/compat"
	"templar.dev/templar/pkg/datatag"
	"templar.dev/templar/pkg/marker"
	"templar.dev/templar/pkg/orderedmap"
)

// EvaluateConditional evaluates a conditional to a boolean. A string
// conditional must be trusted under every policy (conditionals are
// code). A string containing template constructs is rendered first
// and the rendered string evaluated as an expression; a plain string
// is evaluated as an expression directly. Non-boolean results are a
// hard error unless the broken-conditionals compat flag coerces them
// with a warning.
func (e *Engine) EvaluateConditional(value interface{}) (bool, error) {
	if m, ok := value.(marker.Marker); ok {
		return false, marker.Trip(m)
	}

	switch native := datatag.NativeValue(value).(type) {
	case nil:
		return e.emptyConditional()

	case bool:
		return native, nil

	case string:
		if !datatag.IsTrusted(value) {
			return false, TrustViolationError{Value: native, Origin: originPosition(value)}
		}
		return e.evaluateStringConditional(value, native)

	default:
		return e.coerceConditional(value)
	}
}

func (e *Engine) evaluateStringConditional(value interface{}, src string) (bool, error) {
	if len(strings.TrimSpace(src)) == 0 {
		return e.emptyConditional()
	}

	exprSrc := value

	if e.containsTemplate(src) {
		rendered, err := e.render(value)
		if err != nil {
			return false, err
		}
		if m, ok := rendered.(marker.Marker); ok {
			return false, marker.Trip(m)
		}

		renderedStr, isStr := datatag.NativeValue(rendered).(string)
		if !isStr {
			// single-expression conditional produced a native value
			finalized, err := e.Finalize(rendered, FinalizeTopLevel, nil)
			if err != nil {
				return false, err
			}
			if b, ok := datatag.NativeValue(finalized).(bool); ok {
				return b, nil
			}
			return e.coerceConditional(finalized)
		}

		if len(strings.TrimSpace(renderedStr)) == 0 {
			return e.emptyConditional()
		}

		// render-then-evaluate indirection: the rendered string is
		// code now, trusted by construction
		trusted, err := datatag.WithTag(datatag.Untag(rendered), datatag.Trusted)
		if err != nil {
			return false, err
		}
		exprSrc = e.propagateOrigin(value, trusted)
		src = renderedStr
	}

	result, err := e.EvaluateExpression(exprSrc)
	if err != nil {
		// legacy templates rely on bare words evaluating truthy
		if compat.IsBrokenConditionalsEnabled() && isBrokenConditionalErr(err) {
			e.warnBrokenConditional(src)
			return len(src) > 0, nil
		}
		return false, err
	}

	if b, ok := datatag.NativeValue(result).(bool); ok {
		return b, nil
	}
	return e.coerceConditional(result)
}

func isBrokenConditionalErr(err error) bool {
	switch err.(type) {
	case SyntaxError, marker.TrippedError, marker.UndefinedError, marker.ForeignError:
		return true
	default:
		return false
	}
}

// emptyConditional handles nil and blank conditionals. Legacy
// templates treat an empty conditional as true; that coercion lives
// behind the compat flag, and without it an empty conditional is a
// dedicated error rather than a syntax error.
func (e *Engine) emptyConditional() (bool, error) {
	if !compat.IsBrokenConditionalsEnabled() {
		return false, BrokenConditionalError{Empty: true}
	}
	e.ui.Warnf("Deprecation: empty conditional evaluates to true under broken-conditionals compat\n")
	return true, nil
}

// coerceConditional applies legacy truthiness to a non-boolean
// conditional result, gated behind the compat flag.
func (e *Engine) coerceConditional(value interface{}) (bool, error) {
	if !compat.IsBrokenConditionalsEnabled() {
		return false, BrokenConditionalError{Result: datatag.NativeValue(value)}
	}
	e.warnBrokenConditional(concatString(value))
	return truthy(value), nil
}

func (e *Engine) warnBrokenConditional(src string) {
	e.ui.Warnf("Deprecation: conditional '%s' did not evaluate to a boolean; coercing under broken-conditionals compat\n", summarize(src))
}

func truthy(value interface{}) bool {
	switch typedVal := datatag.NativeValue(value).(type) {
	case nil:
		return false
	case bool:
		return typedVal
	case string:
		return len(typedVal) > 0
	case int64:
		return typedVal != 0
	case float64:
		return typedVal != 0
	case []interface{}:
		return len(typedVal) > 0
	case *orderedmap.Map:
		return typedVal.Len() > 0
	case datatag.Tuple:
		return typedVal.Len() > 0
	case *LazyMap:
		return typedVal.Len() > 0
	case *LazyList:
		return typedVal.Len() > 0
	case *EagerTuple:
		return typedVal.Len() > 0
	default:
		return true
	}
}
