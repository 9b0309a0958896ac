// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"

	"github.com/k14s/starlark-go/starlark"
	"github.com/k14s/starlark-go/syntax"

	"templar.dev/templar/pkg/marker"
	"templar.dev/templar/pkg/orderedmap"
	"templar.dev/templar/pkg/plugins"
	"templar.dev/templar/pkg/template/core"
	"templar.dev/templar/pkg/vars"
)

// markerTrip is the internal control-flow panic used when a marker is
// tripped inside the borrowed evaluator. The starlark value API
// cannot thread typed errors through every operation (Truth, for
// one, cannot error at all), so trips unwind via panic and are
// recovered at the evaluation boundary, where the expression's result
// becomes the marker. The panic never escapes this package.
type markerTrip struct {
	m marker.Marker
}

// markerValue carries a marker through starlark evaluation.
// Attribute and key access propagate the marker; everything else
// trips it.
type markerValue struct {
	m marker.Marker
}

var _ starlark.Value = markerValue{}
var _ starlark.HasAttrs = markerValue{}
var _ starlark.Mapping = markerValue{}
var _ starlark.Callable = markerValue{}
var _ starlark.HasBinary = markerValue{}
var _ starlark.Comparable = markerValue{}
var _ core.StarlarkValueToGoValueConversion = markerValue{}

func (v markerValue) String() string        { return fmt.Sprintf("<marker: %s>", v.m.Message()) }
func (v markerValue) Type() string          { return "marker" }
func (v markerValue) Freeze()               {}
func (v markerValue) Truth() starlark.Bool  { panic(markerTrip{v.m}) }
func (v markerValue) Hash() (uint32, error) { panic(markerTrip{v.m}) }

func (v markerValue) Attr(name string) (starlark.Value, error) {
	if u, ok := v.m.(marker.Undefined); ok {
		return markerValue{marker.Undefined{Name: u.Name + "." + name, Hint: u.Hint}}, nil
	}
	return v, nil
}

func (v markerValue) AttrNames() []string { return nil }

func (v markerValue) Get(key starlark.Value) (starlark.Value, bool, error) {
	if u, ok := v.m.(marker.Undefined); ok {
		return markerValue{marker.Undefined{Name: fmt.Sprintf("%s[%s]", u.Name, key.String()), Hint: u.Hint}}, true, nil
	}
	return v, true, nil
}

func (v markerValue) Name() string { return "marker" }

func (v markerValue) CallInternal(*starlark.Thread, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return v, nil
}

func (v markerValue) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	panic(markerTrip{v.m})
}

func (v markerValue) CompareSameType(op syntax.Token, y starlark.Value, depth int) (bool, error) {
	panic(markerTrip{v.m})
}

func (v markerValue) AsGoValue() interface{} { return v.m }

// omitValue is the starlark representation of the omit sentinel.
type omitValue struct{}

var _ starlark.Value = omitValue{}
var _ core.StarlarkValueToGoValueConversion = omitValue{}

func (omitValue) String() string         { return "omit" }
func (omitValue) Type() string           { return "omit" }
func (omitValue) Freeze()                {}
func (omitValue) Truth() starlark.Bool   { return starlark.False }
func (omitValue) Hash() (uint32, error)  { return 0, fmt.Errorf("unhashable type: omit") }
func (omitValue) AsGoValue() interface{} { return vars.Omit }

// lazyMapProxy exposes a LazyMap to starlark without resolving it.
type lazyMapProxy struct {
	m *LazyMap
}

var _ starlark.Value = lazyMapProxy{}
var _ starlark.Mapping = lazyMapProxy{}
var _ starlark.HasAttrs = lazyMapProxy{}
var _ starlark.Sequence = lazyMapProxy{}
var _ core.StarlarkValueToGoValueConversion = lazyMapProxy{}

func (p lazyMapProxy) String() string        { return fmt.Sprintf("<lazy dict of %d>", p.m.Len()) }
func (p lazyMapProxy) Type() string          { return "dict" }
func (p lazyMapProxy) Freeze()               {}
func (p lazyMapProxy) Truth() starlark.Bool  { return starlark.Bool(p.m.Len() > 0) }
func (p lazyMapProxy) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: dict") }
func (p lazyMapProxy) Len() int              { return p.m.Len() }

func (p lazyMapProxy) Get(key starlark.Value) (starlark.Value, bool, error) {
	goKey, err := core.NewStarlarkValue(key).AsGoValue()
	if err != nil {
		return nil, false, err
	}
	val, found := p.m.Get(goKey)
	if !found {
		return nil, false, nil
	}
	return p.m.engine.valueToStarlark(val), true, nil
}

func (p lazyMapProxy) Iterate() starlark.Iterator {
	var keys []starlark.Value
	for _, key := range p.m.Keys() {
		keys = append(keys, core.NewGoValue(key).AsStarlarkValue())
	}
	return &sliceIterator{values: keys}
}

func (p lazyMapProxy) AttrNames() []string { return []string{"get", "keys", "values", "items"} }

func (p lazyMapProxy) Attr(name string) (starlark.Value, error) {
	engine := p.m.engine
	switch name {
	case "get":
		return starlark.NewBuiltin("get", core.ErrWrapper(
			func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var key starlark.Value
				var def starlark.Value = starlark.None
				if err := starlark.UnpackPositionalArgs("get", args, kwargs, 1, &key, &def); err != nil {
					return nil, err
				}
				goKey, err := core.NewStarlarkValue(key).AsGoValue()
				if err != nil {
					return nil, err
				}
				// absent key returns the default untouched: it is
				// neither resolved nor tagged
				if !p.m.Has(goKey) {
					return def, nil
				}
				val, _ := p.m.Get(goKey)
				return engine.valueToStarlark(val), nil
			})), nil
	case "keys":
		return starlark.NewBuiltin("keys", core.ErrWrapper(
			func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var keys []starlark.Value
				for _, key := range p.m.Keys() {
					keys = append(keys, core.NewGoValue(key).AsStarlarkValue())
				}
				return starlark.NewList(keys), nil
			})), nil
	case "values":
		return starlark.NewBuiltin("values", core.ErrWrapper(
			func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var values []starlark.Value
				for _, key := range p.m.Keys() {
					val, _ := p.m.Get(key)
					values = append(values, engine.valueToStarlark(val))
				}
				return starlark.NewList(values), nil
			})), nil
	case "items":
		return starlark.NewBuiltin("items", core.ErrWrapper(
			func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var items []starlark.Value
				for _, key := range p.m.Keys() {
					val, _ := p.m.Get(key)
					items = append(items, starlark.Tuple{
						core.NewGoValue(key).AsStarlarkValue(),
						engine.valueToStarlark(val),
					})
				}
				return starlark.NewList(items), nil
			})), nil
	default:
		// attribute access falls back to key lookup so that
		// 'svc.host' reads like 'svc["host"]'
		if p.m.Has(name) {
			val, _ := p.m.Get(name)
			return engine.valueToStarlark(val), nil
		}
		return markerValue{marker.Undefined{Name: name}}, nil
	}
}

func (p lazyMapProxy) AsGoValue() interface{} { return p.m }

// lazyListProxy exposes a LazyList to starlark without resolving it.
// Concatenation with another lazy list stays lazy when both belong to
// the same engine.
type lazyListProxy struct {
	l *LazyList
}

var _ starlark.Value = lazyListProxy{}
var _ starlark.Indexable = lazyListProxy{}
var _ starlark.Iterable = lazyListProxy{}
var _ starlark.HasBinary = lazyListProxy{}
var _ core.StarlarkValueToGoValueConversion = lazyListProxy{}

func (p lazyListProxy) String() string        { return fmt.Sprintf("<lazy list of %d>", p.l.Len()) }
func (p lazyListProxy) Type() string          { return "list" }
func (p lazyListProxy) Freeze()               {}
func (p lazyListProxy) Truth() starlark.Bool  { return starlark.Bool(p.l.Len() > 0) }
func (p lazyListProxy) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: list") }
func (p lazyListProxy) Len() int              { return p.l.Len() }

// Index cannot fail by contract; resolution failures already surface
// as marker values.
func (p lazyListProxy) Index(i int) starlark.Value {
	return p.l.engine.valueToStarlark(p.l.Index(i))
}

func (p lazyListProxy) Iterate() starlark.Iterator {
	var values []starlark.Value
	for i := 0; i < p.l.Len(); i++ {
		values = append(values, p.Index(i))
	}
	return &sliceIterator{values: values}
}

func (p lazyListProxy) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	if op != syntax.PLUS {
		return nil, nil
	}

	other, ok := y.(lazyListProxy)
	if !ok {
		goVal, err := core.NewStarlarkValue(y).AsGoValue()
		if err != nil {
			return nil, err
		}
		items, ok := goVal.([]interface{})
		if !ok {
			return nil, fmt.Errorf("unsupported operand for list concatenation: %s", y.Type())
		}
		other = lazyListProxy{p.l.engine.NewLazyList(items, nil)}
	}

	if side == starlark.Left {
		return lazyListProxy{p.l.Combine(other.l)}, nil
	}
	return lazyListProxy{other.l.Combine(p.l)}, nil
}

func (p lazyListProxy) AsGoValue() interface{} { return p.l }

// eagerTupleProxy exposes an EagerTuple; reads notify the access
// stack but never resolve (items resolved at construction).
type eagerTupleProxy struct {
	t *EagerTuple
}

var _ starlark.Value = eagerTupleProxy{}
var _ starlark.Indexable = eagerTupleProxy{}
var _ starlark.Iterable = eagerTupleProxy{}
var _ core.StarlarkValueToGoValueConversion = eagerTupleProxy{}

func (p eagerTupleProxy) String() string        { return fmt.Sprintf("<tuple of %d>", p.t.Len()) }
func (p eagerTupleProxy) Type() string          { return "tuple" }
func (p eagerTupleProxy) Freeze()               {}
func (p eagerTupleProxy) Truth() starlark.Bool  { return starlark.Bool(p.t.Len() > 0) }
func (p eagerTupleProxy) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: tuple") }
func (p eagerTupleProxy) Len() int              { return p.t.Len() }

func (p eagerTupleProxy) Index(i int) starlark.Value {
	return p.t.engine.valueToStarlark(p.t.Index(i))
}

func (p eagerTupleProxy) Iterate() starlark.Iterator {
	var values []starlark.Value
	for i := 0; i < p.t.Len(); i++ {
		values = append(values, p.Index(i))
	}
	return &sliceIterator{values: values}
}

func (p eagerTupleProxy) AsGoValue() interface{} { return p.t }

type sliceIterator struct {
	values []starlark.Value
	i      int
}

func (it *sliceIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.values) {
		return false
	}
	*p = it.values[it.i]
	it.i++
	return true
}

func (it *sliceIterator) Done() {}

// valueToStarlark converts an engine value into its starlark
// representation, keeping markers and lazy containers as proxies.
func (e *Engine) valueToStarlark(value interface{}) starlark.Value {
	switch typedVal := value.(type) {
	case marker.Marker:
		return markerValue{typedVal}
	case *LazyMap:
		return lazyMapProxy{typedVal}
	case *LazyList:
		return lazyListProxy{typedVal}
	case *EagerTuple:
		return eagerTupleProxy{typedVal}
	default:
		if vars.IsOmit(value) {
			return omitValue{}
		}
		return core.NewGoValue(value).AsStarlarkValue()
	}
}

func (e *Engine) starlarkToValue(val starlark.Value) (interface{}, error) {
	return core.NewStarlarkValue(val).AsGoValue()
}

// evalCompiledExpr evaluates one expression against the engine's
// variables and plugins. Markers are produced as result values, never
// raised: trips inside the evaluator are recovered here.
func (e *Engine) evalCompiledExpr(ce *compiledExpr) (result interface{}, resultErr error) {
	// bare identifier fast path: the variable's value flows through
	// with tags and laziness intact
	if name, ok := ce.bareIdent(); ok {
		if val, found := e.lookupVar(name); found {
			return val, nil
		}
	}

	defer func() {
		if r := recover(); r != nil {
			trip, ok := r.(markerTrip)
			if !ok {
				panic(r)
			}
			result, resultErr = trip.m, nil
		}
	}()

	expr, err := parseExpr(ce.src, ce.pos)
	if err != nil {
		return nil, err
	}

	thread := &starlark.Thread{Name: "templar"}
	val, err := starlark.EvalExpr(thread, expr, e.buildEnv(ce.idents))
	if err != nil {
		return nil, marker.ForeignError{
			Msg:   fmt.Sprintf("evaluating expression '%s'", ce.src),
			Cause: unwrapEvalError(err),
			Trace: evalBacktrace(err),
		}
	}

	return e.starlarkToValue(val)
}

func unwrapEvalError(err error) error {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return fmt.Errorf("%s", evalErr.Msg)
	}
	return err
}

func evalBacktrace(err error) string {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return evalErr.Backtrace()
	}
	return ""
}

// buildEnv binds every free identifier of an expression: variables
// first, then engine globals and plugins, and an Undefined marker for
// anything unknown. Names already predeclared by the evaluator are
// left alone.
func (e *Engine) buildEnv(idents []string) starlark.StringDict {
	env := starlark.StringDict{}
	for _, name := range idents {
		if _, found := env[name]; found {
			continue
		}
		if _, found := starlark.Universe[name]; found {
			continue
		}
		env[name] = e.bindName(name)
	}
	return env
}

func (e *Engine) bindName(name string) starlark.Value {
	if val, found := e.lookupVar(name); found {
		return e.valueToStarlark(val)
	}

	switch name {
	case "omit":
		return omitValue{}
	case "undef":
		return starlark.NewBuiltin("undef", core.ErrWrapper(e.undefBuiltin))
	case "lookup", "query":
		return starlark.NewBuiltin(name, core.ErrWrapper(e.lookupBuiltin))
	}

	if filter, err := e.plugins.Filter(name); err == nil {
		return e.filterBuiltin(filter)
	}
	if test, err := e.plugins.Test(name); err == nil {
		return e.testBuiltin(test)
	}

	return markerValue{marker.Undefined{Name: name}}
}

// lookupVar reads a variable from the layered source, resolving it
// once and caching the resolution for the engine's lifetime.
func (e *Engine) lookupVar(name string) (interface{}, bool) {
	if val, found := e.varCache[name]; found {
		e.access.NotifyAccess(val)
		return val, true
	}

	raw, found := e.vars.Get(name)
	if !found {
		return nil, false
	}

	e.access.NotifyAccess(raw)
	resolved := e.resolveValue(raw)
	e.varCache[name] = resolved
	return resolved, true
}

func (e *Engine) undefBuiltin(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	hint := ""
	if err := starlark.UnpackArgs("undef", args, kwargs, "hint?", &hint); err != nil {
		return nil, err
	}
	return markerValue{marker.Undefined{Hint: hint}}, nil
}

func (e *Engine) lookupBuiltin(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("expected lookup name as first argument")
	}

	name, err := core.NewStarlarkValue(args[0]).AsString()
	if err != nil {
		return nil, err
	}

	lookup, err := e.plugins.Lookup(name)
	if err != nil {
		return nil, err
	}

	var terms []interface{}
	for _, arg := range args[1:] {
		term, err := e.starlarkToValue(arg)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}

	kwargsMap := orderedmap.NewMap()
	for _, kv := range kwargs {
		key, err := core.NewStarlarkValue(kv[0]).AsString()
		if err != nil {
			return nil, err
		}
		val, err := e.starlarkToValue(kv[1])
		if err != nil {
			return nil, err
		}
		kwargsMap.Set(key, val)
	}

	prepared, shortCircuit := e.preparePluginArgs(terms, lookup.AcceptsMarkers, lookup.AcceptsLazy)
	if shortCircuit != nil {
		return markerValue{shortCircuit}, nil
	}

	result, err := lookup.Func(prepared, kwargsMap)
	if err != nil {
		return nil, marker.NewForeignError(fmt.Sprintf("lookup '%s'", name), err)
	}
	return e.valueToStarlark(result), nil
}

func (e *Engine) filterBuiltin(filter plugins.Filter) starlark.Value {
	return starlark.NewBuiltin(filter.Name, core.ErrWrapper(
		func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			goArgs, err := e.pluginCallArgs(filter.Name, args)
			if err != nil {
				return nil, err
			}

			prepared, shortCircuit := e.preparePluginArgs(goArgs, filter.AcceptsMarkers, filter.AcceptsLazy)
			if shortCircuit != nil {
				return markerValue{shortCircuit}, nil
			}

			result, err := filter.Func(prepared[0], prepared[1:]...)
			if err != nil {
				return nil, err
			}
			return e.valueToStarlark(result), nil
		}))
}

func (e *Engine) testBuiltin(test plugins.Test) starlark.Value {
	return starlark.NewBuiltin(test.Name, core.ErrWrapper(
		func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			goArgs, err := e.pluginCallArgs(test.Name, args)
			if err != nil {
				return nil, err
			}

			prepared, shortCircuit := e.preparePluginArgs(goArgs, test.AcceptsMarkers, test.AcceptsLazy)
			if shortCircuit != nil {
				return markerValue{shortCircuit}, nil
			}

			result, err := test.Func(prepared[0], prepared[1:]...)
			if err != nil {
				return nil, err
			}
			return starlark.Bool(result), nil
		}))
}

func (e *Engine) pluginCallArgs(name string, args starlark.Tuple) ([]interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("expected at least 1 argument")
	}
	var goArgs []interface{}
	for _, arg := range args {
		goArg, err := e.starlarkToValue(arg)
		if err != nil {
			return nil, err
		}
		goArgs = append(goArgs, goArg)
	}
	return goArgs, nil
}

// preparePluginArgs enforces the plugin call boundary: markers
// short-circuit the call unless the plugin opted in, and lazy
// containers are resolved unless the plugin opted in.
func (e *Engine) preparePluginArgs(args []interface{}, acceptsMarkers, acceptsLazy bool) ([]interface{}, marker.Marker) {
	if !acceptsMarkers {
		if m, found := marker.First(args...); found {
			return nil, m
		}
	}
	if acceptsLazy {
		return args, nil
	}

	prepared := make([]interface{}, len(args))
	for i, arg := range args {
		switch arg.(type) {
		case *LazyMap, *LazyList, *EagerTuple:
			resolved, err := e.Finalize(arg, FinalizeTopLevel, nil)
			if err != nil {
				return nil, marker.CapturedError{Err: err}
			}
			prepared[i] = resolved
		default:
			prepared[i] = arg
		}
	}
	return prepared, nil
}
