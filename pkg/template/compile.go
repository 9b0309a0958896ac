// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/k14s/starlark-go/syntax"

	"templar.dev/templar/pkg/filepos"
)

// compiledExpr is one validated expression. The starlark resolver
// annotates the syntax tree it is given, so the cache keeps the
// source and the collected free identifiers rather than a resolved
// tree; evaluation parses its own copy.
type compiledExpr struct {
	src    string
	idents []string
	pos    *filepos.Position
}

// compiledTemplate is a scanned template with its expressions
// validated. exprs runs parallel to segments (nil for non-expression
// segments).
type compiledTemplate struct {
	src      string
	segments []segment
	exprs    []*compiledExpr
}

// singleExpr reports whether the template is exactly one expression
// with no surrounding text, in which case evaluation produces the
// expression's native result instead of a string.
func (t *compiledTemplate) singleExpr() (*compiledExpr, bool) {
	var only *compiledExpr
	for i, seg := range t.segments {
		switch seg.kind {
		case commentSegment:
			continue
		case textSegment:
			if len(seg.text) > 0 {
				return nil, false
			}
		case exprSegment:
			if only != nil {
				return nil, false
			}
			only = t.exprs[i]
		}
	}
	return only, only != nil
}

func compileTemplate(src string, overrides Overrides) (*compiledTemplate, error) {
	segments, err := scanTemplate(src, overrides)
	if err != nil {
		return nil, err
	}

	result := &compiledTemplate{src: src, segments: segments, exprs: make([]*compiledExpr, len(segments))}
	for i, seg := range segments {
		if seg.kind != exprSegment {
			continue
		}
		expr, err := compileExpression(seg.text, positionAt(seg.line, seg.col))
		if err != nil {
			return nil, err
		}
		result.exprs[i] = expr
	}
	return result, nil
}

func compileExpression(src string, pos *filepos.Position) (*compiledExpr, error) {
	expr, err := parseExpr(src, pos)
	if err != nil {
		return nil, err
	}
	return &compiledExpr{src: src, idents: collectIdents(expr), pos: pos}, nil
}

// parseExpr wraps the starlark parser. The scanner panics on some
// truncated inputs (e.g. "1 +") instead of returning an error, so the
// panic is converted into the same syntax error callers already
// handle.
func parseExpr(src string, pos *filepos.Position) (expr syntax.Expr, err error) {
	defer func() {
		if r := recover(); r != nil {
			expr = nil
			err = SyntaxError{Msg: fmt.Sprintf("%v", r), Source: src, Pos: pos}
		}
	}()

	parsed, parseErr := syntax.ParseExpr("template", src, 0)
	if parseErr != nil {
		return nil, SyntaxError{Msg: parseErr.Error(), Source: src, Pos: pos}
	}
	return parsed, nil
}

// collectIdents gathers every identifier in the expression.
// Overcollection (attribute names, keyword argument names) is
// harmless: unused environment entries are ignored by the resolver,
// while a missed free identifier would fail resolution outright.
func collectIdents(expr syntax.Expr) []string {
	seen := map[string]struct{}{}
	var idents []string
	syntax.Walk(expr, func(n syntax.Node) bool {
		if ident, ok := n.(*syntax.Ident); ok {
			if _, found := seen[ident.Name]; !found {
				seen[ident.Name] = struct{}{}
				idents = append(idents, ident.Name)
			}
		}
		return true
	})
	return idents
}

var bareIdentRegexp = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// variableExprRegexp limits ResolveVariableExpression to identifier,
// attribute and index syntax.
var variableExprRegexp = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*|\[(\d+|'[^']*'|"[^"]*")\])*$`)

func (e *compiledExpr) bareIdent() (string, bool) {
	if bareIdentRegexp.MatchString(e.src) {
		return e.src, true
	}
	return "", false
}

// templateCache holds compiled templates keyed by overrides and
// source. It is the only engine structure shared across goroutines,
// hence the read-mostly lock. When full, it resets rather than
// tracking recency.
type templateCache struct {
	mu      sync.RWMutex
	entries map[string]*compiledTemplate
	limit   int
}

func newTemplateCache(limit int) *templateCache {
	return &templateCache{entries: map[string]*compiledTemplate{}, limit: limit}
}

func (c *templateCache) get(key string) (*compiledTemplate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, found := c.entries[key]
	return entry, found
}

func (c *templateCache) put(key string, entry *compiledTemplate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.limit {
		c.entries = map[string]*compiledTemplate{}
	}
	c.entries[key] = entry
}

func (e *Engine) compile(src string, overrides Overrides) (*compiledTemplate, error) {
	key := overrides.cacheKey() + "\x00" + src
	if entry, found := e.cache.get(key); found {
		return entry, nil
	}

	entry, err := compileTemplate(src, overrides)
	if err != nil {
		return nil, err
	}
	e.cache.put(key, entry)
	return entry, nil
}
