// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"strings"

	"templar.dev/templar/pkg/access"
	"templar.dev/templar/pkg/datatag"
	"templar.dev/templar/pkg/marker"
	"templar.dev/templar/pkg/orderedmap"
	"templar.dev/templar/pkg/plugins"
	"templar.dev/templar/pkg/vars"
	"templar.dev/templar/pkg/version"
)

// Engine evaluates trusted templates against a layered variable
// source. An Engine is not safe for concurrent use; the compiled
// template cache it holds is, and may be shared between engines.
type Engine struct {
	options     TemplateOptions
	plugins     *plugins.Registry
	vars        *vars.Source
	varCache    map[string]interface{}
	access      *access.Context
	ui          WarningsUI
	trustPolicy TrustPolicy
	transforms  *TransformTable
	lazy        *lazyDispatch
	cache       *templateCache
	decrypter   Decrypter
	stack       *ContextStack
}

// WarningsUI is where engine warnings go. pkg/cmd/ui.UI satisfies it.
type WarningsUI interface {
	Warnf(pattern string, args ...interface{})
}

type noopUI struct{}

func (noopUI) Warnf(string, ...interface{}) {}

// EngineOpts configures a new Engine. Zero values get defaults:
// default options, the built-in plugin registry, an empty variable
// source, discarded warnings, TrustPolicyError.
type EngineOpts struct {
	Options     TemplateOptions
	Plugins     *plugins.Registry
	Vars        *vars.Source
	UI          WarningsUI
	TrustPolicy TrustPolicy
	Decrypter   Decrypter
	Cache       *TemplateCache
}

// TemplateCache is the shareable compiled-template cache.
type TemplateCache struct {
	inner *templateCache
}

func NewTemplateCache(limit int) *TemplateCache {
	if limit <= 0 {
		limit = 256
	}
	return &TemplateCache{newTemplateCache(limit)}
}

func NewEngine(opts EngineOpts) (*Engine, error) {
	e := &Engine{
		options:     opts.Options,
		plugins:     opts.Plugins,
		vars:        opts.Vars,
		varCache:    map[string]interface{}{},
		access:      access.NewContext(),
		ui:          opts.UI,
		trustPolicy: opts.TrustPolicy,
		decrypter:   opts.Decrypter,
		stack:       NewContextStack(),
	}

	if e.options == (TemplateOptions{}) {
		e.options = DefaultTemplateOptions()
	}
	if e.plugins == nil {
		e.plugins = plugins.NewDefaultRegistry()
	}
	if e.vars == nil {
		e.vars = vars.NewSource()
	}
	if e.ui == nil {
		e.ui = noopUI{}
	}
	if opts.Cache != nil {
		e.cache = opts.Cache.inner
	} else {
		e.cache = newTemplateCache(256)
	}

	lazy, err := defaultLazyDispatch()
	if err != nil {
		return nil, err
	}
	e.lazy = lazy

	e.transforms = NewTransformTable()
	err = registerBuiltinTransforms(e.transforms)
	if err != nil {
		return nil, err
	}

	deprecations, err := access.NewDeprecationObserver(e.ui, version.Version)
	if err != nil {
		return nil, err
	}
	e.access.Push(deprecations, false)

	return e, nil
}

// AccessContext exposes the engine's audit stack so callers can nest
// their own observers around an evaluation.
func (e *Engine) AccessContext() *access.Context { return e.access }

// Transforms exposes the per-type transform table for registration of
// caller transforms.
func (e *Engine) Transforms() *TransformTable { return e.transforms }

// Template fully evaluates a value: trusted template strings render,
// containers wrap lazily and finalize, markers trip into errors.
func (e *Engine) Template(value interface{}) (interface{}, error) {
	return e.TemplateWithBehavior(value, nil)
}

// TemplateWithBehavior is Template with an explicit marker policy.
func (e *Engine) TemplateWithBehavior(value interface{}, behavior marker.Behavior) (interface{}, error) {
	frame := e.stack.Push(value, e.options)
	defer frame.Pop()

	resolved, err := e.resolveTop(value)
	if err != nil {
		return nil, err
	}
	return e.Finalize(resolved, FinalizeTopLevel, behavior)
}

// ResolveToContainer evaluates like Template but stops finalizing at
// the first container, handing back the lazy wrapper itself.
func (e *Engine) ResolveToContainer(value interface{}) (interface{}, error) {
	frame := e.stack.Push(value, e.options)
	defer frame.Pop()

	resolved, err := e.resolveTop(value)
	if err != nil {
		return nil, err
	}
	return e.Finalize(resolved, FinalizeToContainer, nil)
}

// resolveTop is resolveValue with top-level trust handling: trust
// violations surface as errors here instead of captured markers.
func (e *Engine) resolveTop(value interface{}) (interface{}, error) {
	value, err := e.transformValue(value)
	if err != nil {
		return nil, err
	}

	switch datatag.NativeValue(value).(type) {
	case string:
		proceed, err := e.checkTrust(value)
		if err != nil {
			return nil, err
		}
		if !proceed {
			return value, nil
		}
		return e.render(value)
	default:
		return e.wrapLazy(value), nil
	}
}

// resolveValue resolves one slot's raw value: transforms, nested
// templating, lazy wrapping. Failures become markers so that
// untouched slots never poison an evaluation.
func (e *Engine) resolveValue(raw interface{}) interface{} {
	out, err := e.transformValue(raw)
	if err != nil {
		return marker.CapturedError{Err: err}
	}
	raw = out

	if m, ok := raw.(marker.Marker); ok {
		return m
	}

	switch datatag.NativeValue(raw).(type) {
	case string:
		proceed, err := e.checkTrust(raw)
		if err != nil {
			return marker.CapturedError{Err: err}
		}
		if !proceed {
			return raw
		}
		result, err := e.render(raw)
		if err != nil {
			return marker.CapturedError{Err: err}
		}
		return result
	default:
		return e.wrapLazy(raw)
	}
}

// render compiles and evaluates one trusted template string. The
// result is native for a single whole-string expression, a string
// otherwise. Markers flow out as values.
func (e *Engine) render(value interface{}) (interface{}, error) {
	src, ok := datatag.NativeValue(value).(string)
	if !ok {
		return nil, TypeError{Expected: "string template", Actual: datatag.NativeValue(value)}
	}

	headerOverrides, body, err := ParseOverridesHeader(src)
	if err != nil {
		return nil, err
	}
	overrides := e.options.Overrides.Merge(headerOverrides)

	options := e.options
	options.Overrides = overrides
	frame := e.stack.Push(value, options)
	defer frame.Pop()

	compiled, err := e.compile(body, overrides)
	if err != nil {
		return nil, e.withOrigin(err, value)
	}

	if expr, ok := compiled.singleExpr(); ok {
		result, err := e.evalCompiledExpr(expr)
		if err != nil {
			return nil, e.withOrigin(err, value)
		}
		return e.propagateOrigin(value, result), nil
	}

	var out strings.Builder
	for i, seg := range compiled.segments {
		switch seg.kind {
		case textSegment:
			out.WriteString(seg.text)
		case commentSegment:
			// dropped
		case exprSegment:
			result, err := e.evalCompiledExpr(compiled.exprs[i])
			if err != nil {
				return nil, e.withOrigin(err, value)
			}
			// first marker becomes the whole render's result
			if m, ok := result.(marker.Marker); ok {
				return m, nil
			}
			text, err := e.Finalize(result, FinalizeConcat, nil)
			if err != nil {
				return nil, e.withOrigin(err, value)
			}
			out.WriteString(text.(string))
		}
	}

	rendered := out.String()
	if e.options.PreserveTrailingNewlines {
		if strings.HasSuffix(body, "\n") && !strings.HasSuffix(rendered, "\n") {
			rendered += "\n"
		}
	} else {
		rendered = strings.TrimRight(rendered, "\n")
	}

	return e.propagateOrigin(value, rendered), nil
}

// propagateOrigin carries the template's origin tag onto its result,
// best effort. Trust never propagates: rendered output is data.
func (e *Engine) propagateOrigin(template interface{}, result interface{}) interface{} {
	origin, found := datatag.OriginOf(template)
	if !found {
		return result
	}
	tagged, err := datatag.WithTag(result, origin)
	if err != nil {
		return result
	}
	return tagged
}

func (e *Engine) withOrigin(err error, value interface{}) error {
	origin, found := datatag.OriginOf(value)
	if !found {
		return err
	}
	return fmt.Errorf("%s (template at %s)", err, origin.String())
}

// IsTemplate reports whether a value would be compiled by Template,
// trust aside: a string containing template constructs that scan
// cleanly.
func (e *Engine) IsTemplate(value interface{}) bool {
	src, ok := datatag.NativeValue(value).(string)
	if !ok {
		return false
	}
	if !e.containsTemplate(src) {
		return false
	}
	_, body, err := ParseOverridesHeader(src)
	if err != nil {
		return false
	}
	segments, err := scanTemplate(body, e.options.Overrides)
	if err != nil {
		// a scan error still means template constructs are present
		return true
	}
	for _, seg := range segments {
		if seg.kind != textSegment {
			return true
		}
	}
	return false
}

// EvaluateExpression evaluates a trusted expression string to its
// native result. Unlike Template, trust here is a hard requirement
// under every policy: expressions are code.
func (e *Engine) EvaluateExpression(value interface{}) (interface{}, error) {
	src, ok := datatag.NativeValue(value).(string)
	if !ok {
		return nil, TypeError{Expected: "expression string", Actual: datatag.NativeValue(value)}
	}
	if !datatag.IsTrusted(value) {
		return nil, TrustViolationError{Value: src, Origin: originPosition(value)}
	}

	frame := e.stack.Push(value, e.options)
	defer frame.Pop()

	expr, err := compileExpression(strings.TrimSpace(src), originPosition(value))
	if err != nil {
		return nil, err
	}
	result, err := e.evalCompiledExpr(expr)
	if err != nil {
		return nil, err
	}
	return e.Finalize(result, FinalizeTopLevel, nil)
}

// VariableNameAsTemplate builds the trusted template that renders one
// variable.
func (e *Engine) VariableNameAsTemplate(name string) (interface{}, error) {
	if !bareIdentRegexp.MatchString(name) {
		return nil, TypeError{Expected: "variable name", Actual: name}
	}
	overrides := e.options.Overrides
	src := overrides.VariableStart + " " + name + " " + overrides.VariableEnd
	return datatag.WithTag(src, datatag.Trusted)
}

// ResolveVariableExpression resolves an expression restricted to
// variable access syntax: an identifier optionally followed by
// attribute and index accesses. Anything else is rejected before
// evaluation.
func (e *Engine) ResolveVariableExpression(expr string) (interface{}, error) {
	expr = strings.TrimSpace(expr)
	if !variableExprRegexp.MatchString(expr) {
		return nil, SyntaxError{Msg: "Expected a variable expression (identifier with optional attribute or index accesses)", Source: expr}
	}

	trusted, err := datatag.WithTag(expr, datatag.Trusted)
	if err != nil {
		return nil, err
	}
	return e.EvaluateExpression(trusted)
}

// LookupVariable resolves one variable by name, resolution cached for
// the engine's lifetime.
func (e *Engine) LookupVariable(name string) (interface{}, bool) {
	return e.lookupVar(name)
}

// EnsureMap returns value's finalized mapping form.
func (e *Engine) EnsureMap(value interface{}) (*orderedmap.Map, error) {
	finalized, err := e.Template(value)
	if err != nil {
		return nil, err
	}
	m, ok := datatag.NativeValue(finalized).(*orderedmap.Map)
	if !ok {
		return nil, TypeError{Expected: "mapping", Actual: datatag.NativeValue(finalized)}
	}
	return m, nil
}
