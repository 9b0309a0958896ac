// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"templar.dev/templar/pkg/datatag"
	"templar.dev/templar/pkg/orderedmap"
	"templar.dev/templar/pkg/template"
	"templar.dev/templar/pkg/vars"
)

func newTestEngine(t *testing.T, varLayers ...*orderedmap.Map) *template.Engine {
	engine, err := template.NewEngine(template.EngineOpts{
		Vars: vars.NewSource(varLayers...),
	})
	require.NoError(t, err)
	return engine
}

// countedValue resolves through a registered transform, counting how
// many times resolution actually ran.
type countedValue struct{}

func registerCounter(t *testing.T, engine *template.Engine, result interface{}) *int {
	count := new(int)
	err := engine.Transforms().Register(countedValue{}, func(e *template.Engine, value interface{}) (interface{}, error) {
		*count++
		return result, nil
	})
	require.NoError(t, err)
	return count
}

func TestLazyMapResolvesExactlyOnce(t *testing.T) {
	engine := newTestEngine(t)
	count := registerCounter(t, engine, "resolved")

	src := orderedmap.NewMap()
	src.Set("k", countedValue{})
	lazyMap := engine.NewLazyMap(src, nil)

	assert.Equal(t, 0, *count)

	val, found := lazyMap.Get("k")
	require.True(t, found)
	assert.Equal(t, "resolved", val)
	assert.Equal(t, 1, *count)

	// write-back: second read returns the stored result
	val, _ = lazyMap.Get("k")
	assert.Equal(t, "resolved", val)
	assert.Equal(t, 1, *count)
}

func TestLazyMapDefaultNonResolution(t *testing.T) {
	engine := newTestEngine(t)
	count := registerCounter(t, engine, "resolved")

	src := orderedmap.NewMap()
	src.Set("k", countedValue{})
	lazyMap := engine.NewLazyMap(src, nil)

	def := orderedmap.NewMap()
	def.Set("marker-free", true)

	result := lazyMap.GetWithDefault("missing", def)

	// same identity, untouched, and the unrelated pending key was
	// not resolved
	assert.Same(t, def, result)
	assert.Empty(t, datatag.TagsOf(result))
	assert.Equal(t, 0, *count)
}

func TestLazyMapHasDoesNotResolve(t *testing.T) {
	engine := newTestEngine(t)
	count := registerCounter(t, engine, "resolved")

	src := orderedmap.NewMap()
	src.Set("k", countedValue{})
	lazyMap := engine.NewLazyMap(src, nil)

	assert.True(t, lazyMap.Has("k"))
	assert.False(t, lazyMap.Has("missing"))
	assert.Equal(t, 0, *count)
}

func TestLazyMapMutationResolvesAllPending(t *testing.T) {
	engine := newTestEngine(t)
	count := registerCounter(t, engine, "resolved")

	src := orderedmap.NewMap()
	src.Set("a", countedValue{})
	src.Set("b", countedValue{})
	lazyMap := engine.NewLazyMap(src, nil)

	lazyMap.Set("c", "plain")
	assert.Equal(t, 2, *count)

	val, found := lazyMap.Get("c")
	require.True(t, found)
	assert.Equal(t, "plain", val)
}

func TestLazyMapCopyStaysLazy(t *testing.T) {
	engine := newTestEngine(t)
	count := registerCounter(t, engine, "resolved")

	src := orderedmap.NewMap()
	src.Set("k", countedValue{})
	lazyMap := engine.NewLazyMap(src, nil)

	copied := lazyMap.Copy()
	assert.Equal(t, 0, *count)

	val, found := copied.Get("k")
	require.True(t, found)
	assert.Equal(t, "resolved", val)
	assert.Equal(t, 1, *count)
}

func TestLazyMapCombineSameEngineStaysLazy(t *testing.T) {
	engine := newTestEngine(t)
	count := registerCounter(t, engine, "resolved")

	srcA := orderedmap.NewMap()
	srcA.Set("a", countedValue{})
	srcB := orderedmap.NewMap()
	srcB.Set("b", countedValue{})

	combined := engine.NewLazyMap(srcA, nil).Combine(engine.NewLazyMap(srcB, nil))
	assert.Equal(t, 0, *count)
	assert.Equal(t, 2, combined.Len())
}

func TestLazyMapCombineCrossEngineResolvesEagerly(t *testing.T) {
	engineA := newTestEngine(t)
	engineB := newTestEngine(t)
	countB := registerCounter(t, engineB, "resolved")

	srcA := orderedmap.NewMap()
	srcA.Set("a", "plain")
	srcB := orderedmap.NewMap()
	srcB.Set("b", countedValue{})

	engineA.NewLazyMap(srcA, nil).Combine(engineB.NewLazyMap(srcB, nil))
	assert.Equal(t, 1, *countB)
}

func TestLazyListResolvesAndAppends(t *testing.T) {
	engine := newTestEngine(t)
	count := registerCounter(t, engine, "resolved")

	lazyList := engine.NewLazyList([]interface{}{countedValue{}, "plain"}, nil)

	assert.Equal(t, "resolved", lazyList.Index(0))
	assert.Equal(t, 1, *count)
	assert.Equal(t, "resolved", lazyList.Index(0))
	assert.Equal(t, 1, *count)
	assert.Equal(t, "plain", lazyList.Index(1))

	lazyList.Append("more")
	assert.Equal(t, 3, lazyList.Len())
}

func TestEagerTupleResolvesAtConstruction(t *testing.T) {
	engine := newTestEngine(t)
	count := registerCounter(t, engine, "resolved")

	tuple := engine.NewEagerTuple(datatag.NewTuple(countedValue{}, "plain"), nil)
	assert.Equal(t, 1, *count)

	assert.Equal(t, "resolved", tuple.Index(0))
	assert.Equal(t, "plain", tuple.Index(1))
	assert.Equal(t, 1, *count)
}
