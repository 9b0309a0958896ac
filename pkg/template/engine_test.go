// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"templar.dev/templar/pkg/compat"
	"templar.dev/templar/pkg/datatag"
	"templar.dev/templar/pkg/marker"
	"templar.dev/templar/pkg/orderedmap"
	"templar.dev/templar/pkg/plugins"
	"templar.dev/templar/pkg/template"
	"templar.dev/templar/pkg/vars"
)

func trust(t *testing.T, s string) interface{} {
	tagged, err := datatag.WithTag(s, datatag.Trusted)
	require.NoError(t, err)
	return tagged
}

type warnRecorder struct {
	warnings []string
}

func (r *warnRecorder) Warnf(pattern string, args ...interface{}) {
	r.warnings = append(r.warnings, fmt.Sprintf(pattern, args...))
}

func varsLayer(pairs ...interface{}) *orderedmap.Map {
	layer := orderedmap.NewMap()
	for i := 0; i < len(pairs); i += 2 {
		layer.Set(pairs[i], pairs[i+1])
	}
	return layer
}

func TestTrustGateErrorMode(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{TrustPolicy: template.TrustPolicyError})
	require.NoError(t, err)

	_, err = engine.Template("{{ 1 }}")
	require.Error(t, err)
	assert.IsType(t, template.TrustViolationError{}, err)
	assert.Contains(t, err.Error(), "untrusted string")

	result, err := engine.Template(trust(t, "{{ 1 }}"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), result)
}

func TestTrustGateWarnMode(t *testing.T) {
	recorder := &warnRecorder{}
	engine, err := template.NewEngine(template.EngineOpts{TrustPolicy: template.TrustPolicyWarn, UI: recorder})
	require.NoError(t, err)

	result, err := engine.Template("{{ 1 }}")
	require.NoError(t, err)
	assert.Equal(t, "{{ 1 }}", result)
	require.Len(t, recorder.warnings, 1)
	assert.Contains(t, recorder.warnings[0], "Not rendering untrusted template")
}

func TestTrustGateIgnoreMode(t *testing.T) {
	recorder := &warnRecorder{}
	engine, err := template.NewEngine(template.EngineOpts{TrustPolicy: template.TrustPolicyIgnore, UI: recorder})
	require.NoError(t, err)

	result, err := engine.Template("{{ 1 }}")
	require.NoError(t, err)
	assert.Equal(t, "{{ 1 }}", result)
	assert.Empty(t, recorder.warnings)
}

func TestTrustGatePlainStringsPass(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{TrustPolicy: template.TrustPolicyError})
	require.NoError(t, err)

	result, err := engine.Template("no delimiters here")
	require.NoError(t, err)
	assert.Equal(t, "no delimiters here", result)
}

func TestScenarioRows(t *testing.T) {
	// {a: trust("{{ 1 + 1 }}")}: template(a) returns 2
	engine, err := template.NewEngine(template.EngineOpts{
		Vars: vars.NewSource(varsLayer("a", trust(t, "{{ 1 + 1 }}"))),
	})
	require.NoError(t, err)

	val, found := engine.LookupVariable("a")
	require.True(t, found)
	result, err := engine.Template(val)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result)

	// {a: "{{ 1 + 1 }}"} untagged under warn mode: literal string
	engine, err = template.NewEngine(template.EngineOpts{
		TrustPolicy: template.TrustPolicyWarn,
		UI:          &warnRecorder{},
		Vars:        vars.NewSource(varsLayer("a", "{{ 1 + 1 }}")),
	})
	require.NoError(t, err)

	val, found = engine.LookupVariable("a")
	require.True(t, found)
	result, err = engine.Template(val)
	require.NoError(t, err)
	assert.Equal(t, "{{ 1 + 1 }}", result)
}

func TestRenderTextAndExpressions(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{
		Vars: vars.NewSource(varsLayer("name", "World", "count", int64(3))),
	})
	require.NoError(t, err)

	result, err := engine.Template(trust(t, "Hello {{ name }}, count is {{ count }}!"))
	require.NoError(t, err)
	assert.Equal(t, "Hello World, count is 3!", datatag.NativeValue(result))
}

func TestRenderDropsComments(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{})
	require.NoError(t, err)

	result, err := engine.Template(trust(t, "a{# ignored #}b"))
	require.NoError(t, err)
	assert.Equal(t, "ab", result)
}

func TestRenderOverridesHeader(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{
		Vars: vars.NewSource(varsLayer("x", "val")),
	})
	require.NoError(t, err)

	result, err := engine.Template(trust(t, "#tpl: variable_start_string='[[', variable_end_string=']]'\n[[ x ]] and {{ untouched }}"))
	require.NoError(t, err)
	assert.Equal(t, "val and {{ untouched }}", datatag.NativeValue(result))
}

func TestTrailingNewlinePreserved(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{
		Vars: vars.NewSource(varsLayer("name", "World")),
	})
	require.NoError(t, err)

	result, err := engine.Template(trust(t, "Hello {{ name }}\n"))
	require.NoError(t, err)
	assert.Equal(t, "Hello World\n", datatag.NativeValue(result))

	options := template.DefaultTemplateOptions()
	options.PreserveTrailingNewlines = false
	engine, err = template.NewEngine(template.EngineOpts{
		Options: options,
		Vars:    vars.NewSource(varsLayer("name", "World")),
	})
	require.NoError(t, err)

	result, err = engine.Template(trust(t, "Hello {{ name }}\n"))
	require.NoError(t, err)
	assert.Equal(t, "Hello World", datatag.NativeValue(result))
}

func TestOriginPropagatesToResult(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{
		Vars: vars.NewSource(varsLayer("name", "World")),
	})
	require.NoError(t, err)

	tagged, err := datatag.WithTag("Hi {{ name }}", datatag.Trusted, datatag.Origin{Path: "greet.tpl", Line: 4})
	require.NoError(t, err)

	result, err := engine.Template(tagged)
	require.NoError(t, err)
	assert.Equal(t, "Hi World", datatag.NativeValue(result))

	origin, found := datatag.OriginOf(result)
	require.True(t, found)
	assert.Equal(t, "greet.tpl:4", origin.String())
	// trust never propagates onto rendered output
	assert.False(t, datatag.IsTrusted(result))
}

func TestMarkerRoundTrip(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{})
	require.NoError(t, err)

	// top level: undefined trips into an error naming the variable
	_, err = engine.Template(trust(t, "{{ undefined_var }}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'undefined_var' is undefined")

	// nested in a marker-tolerant filter: the marker is consumed, not
	// raised
	result, err := engine.Template(trust(t, "{{ default(undefined_var, 'fallback') }}"))
	require.NoError(t, err)
	assert.Equal(t, "fallback", result)

	result, err = engine.Template(trust(t, "{{ defined(undefined_var) }}"))
	require.NoError(t, err)
	assert.Equal(t, false, result)
}

func TestMarkerToleratedByCustomFilter(t *testing.T) {
	registry := plugins.NewDefaultRegistry()

	var received interface{}
	err := registry.AddFilter(plugins.Filter{
		Name:           "peek",
		AcceptsMarkers: true,
		Func: func(in interface{}, args ...interface{}) (interface{}, error) {
			received = in
			return "peeked", nil
		},
	})
	require.NoError(t, err)

	engine, err := template.NewEngine(template.EngineOpts{Plugins: registry})
	require.NoError(t, err)

	result, err := engine.Template(trust(t, "{{ peek(missing_var) }}"))
	require.NoError(t, err)
	assert.Equal(t, "peeked", result)

	undef, ok := received.(marker.Undefined)
	require.True(t, ok, "expected the filter to receive the marker itself")
	assert.Equal(t, "missing_var", undef.Name)
}

func TestMarkerShortCircuitsIntolerantFilter(t *testing.T) {
	registry := plugins.NewDefaultRegistry()

	called := false
	err := registry.AddFilter(plugins.Filter{
		Name: "touchy",
		Func: func(in interface{}, args ...interface{}) (interface{}, error) {
			called = true
			return in, nil
		},
	})
	require.NoError(t, err)

	engine, err := template.NewEngine(template.EngineOpts{Plugins: registry})
	require.NoError(t, err)

	_, err = engine.Template(trust(t, "{{ touchy(missing_var) }}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'missing_var' is undefined")
	assert.False(t, called, "marker must short-circuit the call")
}

func TestMarkerInMultiNodeTemplate(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{})
	require.NoError(t, err)

	// the first marker becomes the whole render's result and trips
	// at finalize
	_, err = engine.Template(trust(t, "before {{ missing }} after"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'missing' is undefined")
}

func TestLazyEagerEquivalence(t *testing.T) {
	buildVars := func() *orderedmap.Map {
		inner := orderedmap.NewMap()
		inner.Set("greeting", trust(t, "{{ 'hi ' + who }}"))
		inner.Set("plain", int64(7))
		return varsLayer(
			"who", "there",
			"data", inner,
			"items", []interface{}{trust(t, "{{ 1 + 1 }}"), "x"},
		)
	}

	newEngineForVars := func() *template.Engine {
		engine, err := template.NewEngine(template.EngineOpts{Vars: vars.NewSource(buildVars())})
		require.NoError(t, err)
		return engine
	}

	// fully finalized result
	eager := newEngineForVars()
	eagerData, found := eager.LookupVariable("data")
	require.True(t, found)
	eagerResult, err := eager.Template(eagerData)
	require.NoError(t, err)

	// resolve-to-container first, finalize later
	lazy := newEngineForVars()
	lazyData, found := lazy.LookupVariable("data")
	require.True(t, found)
	container, err := lazy.ResolveToContainer(lazyData)
	require.NoError(t, err)
	_, isLazy := container.(*template.LazyMap)
	require.True(t, isLazy)
	lazyResult, err := lazy.Template(container)
	require.NoError(t, err)

	expected := orderedmap.NewMap()
	expected.Set("greeting", "hi there")
	expected.Set("plain", int64(7))

	assert.True(t, expected.EqualTo(eagerResult.(*orderedmap.Map)), "eager: %v", eagerResult)
	assert.True(t, expected.EqualTo(lazyResult.(*orderedmap.Map)), "lazy: %v", lazyResult)

	eagerItems, _ := eager.LookupVariable("items")
	finalItems, err := eager.Template(eagerItems)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(2), "x"}, finalItems)
}

func TestOmitDropsEntries(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{})
	require.NoError(t, err)

	src := orderedmap.NewMap()
	src.Set("keep", "v")
	src.Set("drop", trust(t, "{{ omit }}"))

	result, err := engine.Template(src)
	require.NoError(t, err)

	resultMap := result.(*orderedmap.Map)
	assert.True(t, resultMap.Has("keep"))
	assert.False(t, resultMap.Has("drop"))

	listResult, err := engine.Template([]interface{}{"a", trust(t, "{{ omit }}"), "b"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, listResult)
}

func TestOmitAtTopLevelIsError(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{})
	require.NoError(t, err)

	_, err = engine.Template(trust(t, "{{ omit }}"))
	require.Error(t, err)
	assert.IsType(t, template.OmittedError{}, err)
}

func TestUndefBuiltinProducesMarker(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{})
	require.NoError(t, err)

	_, err = engine.Template(trust(t, "{{ undef('set me in inventory') }}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set me in inventory")
}

func TestIsTemplate(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{})
	require.NoError(t, err)

	assert.True(t, engine.IsTemplate("{{ x }}"))
	assert.True(t, engine.IsTemplate("text {# c #}"))
	assert.True(t, engine.IsTemplate(trust(t, "{{ x }}")))
	assert.False(t, engine.IsTemplate("plain"))
	assert.False(t, engine.IsTemplate(int64(4)))
	assert.False(t, engine.IsTemplate(nil))
}

func TestEvaluateExpression(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{
		Vars: vars.NewSource(varsLayer("x", int64(5))),
	})
	require.NoError(t, err)

	result, err := engine.EvaluateExpression(trust(t, "x * 2"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), result)

	// expressions are code: trust is required under every policy
	_, err = engine.EvaluateExpression("x * 2")
	require.Error(t, err)
	assert.IsType(t, template.TrustViolationError{}, err)
}

func TestResolveVariableExpression(t *testing.T) {
	inner := orderedmap.NewMap()
	inner.Set("port", int64(8080))

	engine, err := template.NewEngine(template.EngineOpts{
		Vars: vars.NewSource(varsLayer("svc", inner)),
	})
	require.NoError(t, err)

	result, err := engine.ResolveVariableExpression("svc.port")
	require.NoError(t, err)
	assert.Equal(t, int64(8080), result)

	result, err = engine.ResolveVariableExpression("svc['port']")
	require.NoError(t, err)
	assert.Equal(t, int64(8080), result)

	_, err = engine.ResolveVariableExpression("1 + 1")
	require.Error(t, err)
	assert.IsType(t, template.SyntaxError{}, err)
}

func TestMappingAttributeAccess(t *testing.T) {
	svc := varsLayer("host", "example.com", "port", int64(8080))
	engine, err := template.NewEngine(template.EngineOpts{
		Vars: vars.NewSource(varsLayer("svc", svc)),
	})
	require.NoError(t, err)

	// attribute access reads mapping keys, same as indexing
	result, err := engine.Template(trust(t, "{{ svc.host }}:{{ svc['port'] }}"))
	require.NoError(t, err)
	assert.Equal(t, "example.com:8080", datatag.NativeValue(result))

	// a missing key is undefined, not an attribute error
	_, err = engine.Template(trust(t, "{{ svc.missing }}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	result, err = engine.Template(trust(t, "{{ defined(svc.missing) }}"))
	require.NoError(t, err)
	assert.Equal(t, false, result)
}

func TestMappingAttributeAccessOnPluginResult(t *testing.T) {
	registry := plugins.NewDefaultRegistry()
	err := registry.AddFilter(plugins.Filter{
		Name: "service",
		Func: func(in interface{}, _ ...interface{}) (interface{}, error) {
			m := orderedmap.NewMap()
			m.Set("host", datatag.NativeValue(in))
			return m, nil
		},
	})
	require.NoError(t, err)

	engine, err := template.NewEngine(template.EngineOpts{Plugins: registry})
	require.NoError(t, err)

	result, err := engine.Template(trust(t, "{{ service('example.com').host }}"))
	require.NoError(t, err)
	assert.Equal(t, "example.com", datatag.NativeValue(result))
}

func TestVariableNameAsTemplate(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{
		Vars: vars.NewSource(varsLayer("host", "db01")),
	})
	require.NoError(t, err)

	tpl, err := engine.VariableNameAsTemplate("host")
	require.NoError(t, err)
	assert.True(t, datatag.IsTrusted(tpl))

	result, err := engine.Template(tpl)
	require.NoError(t, err)
	assert.Equal(t, "db01", datatag.NativeValue(result))

	_, err = engine.VariableNameAsTemplate("not a name")
	require.Error(t, err)
}

func TestBareIdentifierPreservesTags(t *testing.T) {
	dep, err := datatag.NewDeprecated("legacy value", "", "", "")
	require.NoError(t, err)
	taggedVal := datatag.MustWithTag("v", dep)

	recorder := &warnRecorder{}
	engine, err := template.NewEngine(template.EngineOpts{
		UI:   recorder,
		Vars: vars.NewSource(varsLayer("legacy", taggedVal)),
	})
	require.NoError(t, err)

	result, err := engine.Template(trust(t, "{{ legacy }}"))
	require.NoError(t, err)
	assert.Equal(t, "v", datatag.NativeValue(result))
	assert.True(t, datatag.HasTag(result, datatag.DeprecatedType))

	// reading the deprecated variable warned through the access stack
	require.NotEmpty(t, recorder.warnings)
	assert.Contains(t, recorder.warnings[0], "legacy value")
}

func TestReplaceBehaviorCollectsMarkers(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{})
	require.NoError(t, err)

	src := orderedmap.NewMap()
	src.Set("a", trust(t, "{{ missing_one }}"))
	src.Set("b", "fine")

	behavior := marker.NewReplaceBehavior()
	result, err := engine.TemplateWithBehavior(src, behavior)
	require.NoError(t, err)

	resultMap := result.(*orderedmap.Map)
	aVal, _ := resultMap.Get("a")
	assert.Equal(t, "<< error 1 >>", aVal)

	records := behavior.Records()
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Message(), "missing_one")
}

func TestEvaluateConditional(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{
		Vars: vars.NewSource(varsLayer("x", int64(5), "flag", true)),
	})
	require.NoError(t, err)

	result, err := engine.EvaluateConditional(true)
	require.NoError(t, err)
	assert.True(t, result)

	result, err = engine.EvaluateConditional(trust(t, "x > 3"))
	require.NoError(t, err)
	assert.True(t, result)

	result, err = engine.EvaluateConditional(trust(t, "x > 9"))
	require.NoError(t, err)
	assert.False(t, result)

	// all-template indirection: render, then evaluate the result
	result, err = engine.EvaluateConditional(trust(t, "{{ flag }}"))
	require.NoError(t, err)
	assert.True(t, result)

	// conditionals are code: untrusted strings are always an error
	_, err = engine.EvaluateConditional("x > 3")
	require.Error(t, err)
	assert.IsType(t, template.TrustViolationError{}, err)
}

func TestEvaluateConditionalNonBoolean(t *testing.T) {
	compat.ResetForTesting()
	defer compat.ResetForTesting()

	engine, err := template.NewEngine(template.EngineOpts{})
	require.NoError(t, err)

	_, err = engine.EvaluateConditional(int64(1))
	require.Error(t, err)
	assert.IsType(t, template.BrokenConditionalError{}, err)
}

func TestEvaluateConditionalBrokenCompat(t *testing.T) {
	compat.ResetForTesting()
	defer compat.ResetForTesting()
	t.Setenv(compat.Env, "broken-conditionals")

	recorder := &warnRecorder{}
	engine, err := template.NewEngine(template.EngineOpts{UI: recorder})
	require.NoError(t, err)

	result, err := engine.EvaluateConditional(int64(1))
	require.NoError(t, err)
	assert.True(t, result)

	result, err = engine.EvaluateConditional(int64(0))
	require.NoError(t, err)
	assert.False(t, result)

	require.NotEmpty(t, recorder.warnings)
	assert.Contains(t, recorder.warnings[0], "broken-conditionals")
}

func TestEvaluateConditionalEmpty(t *testing.T) {
	compat.ResetForTesting()
	defer compat.ResetForTesting()

	engine, err := template.NewEngine(template.EngineOpts{})
	require.NoError(t, err)

	for _, cond := range []interface{}{nil, trust(t, ""), trust(t, "   ")} {
		_, err = engine.EvaluateConditional(cond)
		require.Error(t, err)
		require.IsType(t, template.BrokenConditionalError{}, err)
		assert.True(t, err.(template.BrokenConditionalError).Empty)
	}
}

func TestEvaluateConditionalEmptyBrokenCompat(t *testing.T) {
	compat.ResetForTesting()
	defer compat.ResetForTesting()
	t.Setenv(compat.Env, "broken-conditionals")

	recorder := &warnRecorder{}
	engine, err := template.NewEngine(template.EngineOpts{
		UI:   recorder,
		Vars: vars.NewSource(varsLayer("blank", "")),
	})
	require.NoError(t, err)

	// legacy templates treat an absent or blank conditional as true
	for _, cond := range []interface{}{nil, trust(t, ""), trust(t, "   "), trust(t, "{{ blank }}")} {
		result, err := engine.EvaluateConditional(cond)
		require.NoError(t, err)
		assert.True(t, result)
	}

	require.NotEmpty(t, recorder.warnings)
	assert.Contains(t, recorder.warnings[0], "empty conditional")
}

func TestForeignErrorFromPlugin(t *testing.T) {
	registry := plugins.NewDefaultRegistry()
	err := registry.AddFilter(plugins.Filter{
		Name: "boom",
		Func: func(in interface{}, args ...interface{}) (interface{}, error) {
			return nil, fmt.Errorf("kaboom")
		},
	})
	require.NoError(t, err)

	engine, err := template.NewEngine(template.EngineOpts{Plugins: registry})
	require.NoError(t, err)

	_, err = engine.Template(trust(t, "{{ boom('x') }}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "kaboom")
}

func TestLookupPlugin(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{})
	require.NoError(t, err)

	t.Setenv("TEMPLAR_ENGINE_TEST", "from-env")
	result, err := engine.Template(trust(t, "{{ lookup('env', 'TEMPLAR_ENGINE_TEST') }}"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", datatag.NativeValue(result))

	_, err = engine.Template(trust(t, "{{ lookup('no_such_lookup') }}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_lookup")
}

func TestSharedTemplateCache(t *testing.T) {
	cache := template.NewTemplateCache(16)

	for i := 0; i < 2; i++ {
		engine, err := template.NewEngine(template.EngineOpts{Cache: cache})
		require.NoError(t, err)
		result, err := engine.Template(trust(t, "{{ 40 + 2 }}"))
		require.NoError(t, err)
		assert.Equal(t, int64(42), result)
	}
}

func TestTaggedIntUnwrapsInExpressions(t *testing.T) {
	taggedInt := datatag.MustWithTag(int64(4), datatag.Origin{Path: "vars.yml", Line: 1})

	engine, err := template.NewEngine(template.EngineOpts{
		Vars: vars.NewSource(varsLayer("n", taggedInt)),
	})
	require.NoError(t, err)

	result, err := engine.Template(trust(t, "{{ n + 1 }}"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), result)
}

func TestStringsConcatInExpression(t *testing.T) {
	engine, err := template.NewEngine(template.EngineOpts{
		Vars: vars.NewSource(varsLayer("who", "world")),
	})
	require.NoError(t, err)

	result, err := engine.Template(trust(t, "{{ 'hello ' + who }}"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", result)

	result, err = engine.Template(trust(t, "{{ upper(who) }}"))
	require.NoError(t, err)
	assert.Equal(t, "WORLD", result)
}
