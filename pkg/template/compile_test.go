// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileTemplateSingleExpr(t *testing.T) {
	compiled, err := compileTemplate("{{ 1 + 1 }}", DefaultOverrides())
	require.NoError(t, err)

	expr, single := compiled.singleExpr()
	require.True(t, single)
	assert.Equal(t, "1 + 1", expr.src)

	// comments and empty text do not break single-expression detection
	compiled, err = compileTemplate("{# note #}{{ x }}", DefaultOverrides())
	require.NoError(t, err)
	_, single = compiled.singleExpr()
	assert.True(t, single)

	compiled, err = compileTemplate("a {{ x }}", DefaultOverrides())
	require.NoError(t, err)
	_, single = compiled.singleExpr()
	assert.False(t, single)

	compiled, err = compileTemplate("{{ x }}{{ y }}", DefaultOverrides())
	require.NoError(t, err)
	_, single = compiled.singleExpr()
	assert.False(t, single)
}

func TestCompileExpressionSyntaxError(t *testing.T) {
	_, err := compileTemplate("{{ 1 + }}", DefaultOverrides())
	require.Error(t, err)
	assert.IsType(t, SyntaxError{}, err)
}

func TestCompileExpressionParserPanicBecomesSyntaxError(t *testing.T) {
	// the starlark scanner panics on some truncated inputs instead of
	// returning an error
	for _, src := range []string{"1 +", "(", "a.", "[1,"} {
		_, err := compileExpression(src, nil)
		require.Error(t, err, src)
		assert.IsType(t, SyntaxError{}, err, src)
	}
}

func TestCollectIdents(t *testing.T) {
	expr, err := compileExpression("a + b.c + f(a, x=2)", nil)
	require.NoError(t, err)

	// attribute and keyword names may be overcollected; free
	// variables must all be present
	assert.Contains(t, expr.idents, "a")
	assert.Contains(t, expr.idents, "b")
	assert.Contains(t, expr.idents, "f")
}

func TestBareIdent(t *testing.T) {
	expr, err := compileExpression("name", nil)
	require.NoError(t, err)
	ident, ok := expr.bareIdent()
	assert.True(t, ok)
	assert.Equal(t, "name", ident)

	expr, err = compileExpression("name.attr", nil)
	require.NoError(t, err)
	_, ok = expr.bareIdent()
	assert.False(t, ok)
}

func TestVariableExprRegexp(t *testing.T) {
	for _, valid := range []string{"a", "a.b", "a.b.c", "a[0]", "a['k']", `a["k"]`, "a.b[3].c"} {
		assert.True(t, variableExprRegexp.MatchString(valid), valid)
	}
	for _, invalid := range []string{"1 + 1", "f(x)", "a b", "a.", "[0]", "a[b]"} {
		assert.False(t, variableExprRegexp.MatchString(invalid), invalid)
	}
}

func TestTemplateCacheBound(t *testing.T) {
	cache := newTemplateCache(2)

	first := &compiledTemplate{src: "a"}
	cache.put("a", first)
	cache.put("b", &compiledTemplate{src: "b"})

	got, found := cache.get("a")
	require.True(t, found)
	assert.Same(t, first, got)

	// exceeding the bound resets rather than evicting selectively
	cache.put("c", &compiledTemplate{src: "c"})
	_, found = cache.get("a")
	assert.False(t, found)
	_, found = cache.get("c")
	assert.True(t, found)
}
