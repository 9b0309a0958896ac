// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"reflect"

	"templar.dev/templar/pkg/datatag"
	"templar.dev/templar/pkg/orderedmap"
)

// Lazy containers defer per-slot resolution (templating, transforms,
// nested wrapping) until a slot is read. A pending slot resolves
// exactly once; the result is written back. The access stack is
// notified before resolution and again after, if resolution changed
// the value.

// pending marks an unresolved slot.
type pending struct {
	raw interface{}
}

// LazyMap is the lazy mapping wrapper.
type LazyMap struct {
	engine *Engine
	data   *orderedmap.Map
	tags   []datatag.Tag
}

func (e *Engine) NewLazyMap(src *orderedmap.Map, tags []datatag.Tag) *LazyMap {
	data := orderedmap.NewMap()
	src.Iterate(func(k, v interface{}) {
		data.Set(k, pending{v})
	})
	return &LazyMap{e, data, tags}
}

// Get resolves the slot for key, writing the result back.
func (m *LazyMap) Get(key interface{}) (interface{}, bool) {
	raw, found := m.data.Get(key)
	if !found {
		return nil, false
	}
	return m.resolveSlot(key, raw), true
}

// GetWithDefault returns def untouched when key is absent: the
// default is never resolved and never tagged, and no other pending
// slot is disturbed.
func (m *LazyMap) GetWithDefault(key, def interface{}) interface{} {
	raw, found := m.data.Get(key)
	if !found {
		return def
	}
	return m.resolveSlot(key, raw)
}

// Has reports presence without resolving anything.
func (m *LazyMap) Has(key interface{}) bool { return m.data.Has(key) }

// Set resolves all pending slots first, then stores the new value as
// a pending slot of its own.
func (m *LazyMap) Set(key, value interface{}) {
	m.ResolveAll()
	m.data.Set(key, pending{value})
}

// Delete resolves all pending slots first.
func (m *LazyMap) Delete(key interface{}) bool {
	m.ResolveAll()
	return m.data.Delete(key)
}

func (m *LazyMap) Keys() []interface{} { return m.data.Keys() }
func (m *LazyMap) Len() int            { return m.data.Len() }

// Copy stays lazy: pending slots remain pending in the copy, and
// each copy resolves its own slots independently.
func (m *LazyMap) Copy() *LazyMap {
	return &LazyMap{m.engine, m.data.Copy(), m.tags}
}

// Combine merges other on top of m into a new LazyMap. Slots stay
// lazy only when both sides belong to the same engine with the same
// options; combining across engines resolves eagerly.
func (m *LazyMap) Combine(other *LazyMap) *LazyMap {
	result := m.Copy()
	if m.sameEngine(other) {
		other.data.Iterate(func(k, v interface{}) {
			result.data.Set(k, v)
		})
		return result
	}

	other.ResolveAll()
	other.data.Iterate(func(k, v interface{}) {
		result.data.Set(k, v)
	})
	return result
}

func (m *LazyMap) sameEngine(other *LazyMap) bool {
	return m.engine == other.engine && m.engine.options.equal(other.engine.options)
}

// ResolveAll resolves every pending slot in place.
func (m *LazyMap) ResolveAll() {
	for _, key := range m.data.Keys() {
		raw, _ := m.data.Get(key)
		m.resolveSlot(key, raw)
	}
}

func (m *LazyMap) resolveSlot(key, raw interface{}) interface{} {
	p, isPending := raw.(pending)
	if !isPending {
		m.engine.access.NotifyAccess(raw)
		return raw
	}

	m.engine.access.NotifyAccess(p.raw)
	resolved := m.engine.resolveValue(p.raw)
	m.data.Set(key, resolved)
	if !reflect.DeepEqual(resolved, p.raw) {
		m.engine.access.NotifyAccess(resolved)
	}
	return resolved
}

func (m *LazyMap) Tags() []datatag.Tag { return m.tags }

// LazyList is the lazy sequence wrapper.
type LazyList struct {
	engine *Engine
	items  []interface{}
	tags   []datatag.Tag
}

func (e *Engine) NewLazyList(src []interface{}, tags []datatag.Tag) *LazyList {
	items := make([]interface{}, len(src))
	for i, v := range src {
		items[i] = pending{v}
	}
	return &LazyList{e, items, tags}
}

func (l *LazyList) Index(i int) interface{} {
	raw := l.items[i]
	p, isPending := raw.(pending)
	if !isPending {
		l.engine.access.NotifyAccess(raw)
		return raw
	}

	l.engine.access.NotifyAccess(p.raw)
	resolved := l.engine.resolveValue(p.raw)
	l.items[i] = resolved
	if !reflect.DeepEqual(resolved, p.raw) {
		l.engine.access.NotifyAccess(resolved)
	}
	return resolved
}

func (l *LazyList) Len() int { return len(l.items) }

// Append resolves all pending slots first, matching mapping
// mutation.
func (l *LazyList) Append(values ...interface{}) {
	l.ResolveAll()
	for _, v := range values {
		l.items = append(l.items, pending{v})
	}
}

func (l *LazyList) Copy() *LazyList {
	items := make([]interface{}, len(l.items))
	copy(items, l.items)
	return &LazyList{l.engine, items, l.tags}
}

// Combine concatenates two lists. Cross-engine combination resolves
// the other side eagerly, same as for mappings.
func (l *LazyList) Combine(other *LazyList) *LazyList {
	result := l.Copy()
	if l.engine != other.engine || !l.engine.options.equal(other.engine.options) {
		other.ResolveAll()
	}
	result.items = append(result.items, other.items...)
	return result
}

func (l *LazyList) ResolveAll() {
	for i := range l.items {
		l.Index(i)
	}
}

func (l *LazyList) Tags() []datatag.Tag { return l.tags }

// EagerTuple resolves all items at construction; reads only notify
// the access stack.
type EagerTuple struct {
	engine *Engine
	items  []interface{}
	tags   []datatag.Tag
}

func (e *Engine) NewEagerTuple(src datatag.Tuple, tags []datatag.Tag) *EagerTuple {
	items := make([]interface{}, src.Len())
	for i := 0; i < src.Len(); i++ {
		items[i] = e.resolveValue(src.Index(i))
	}
	return &EagerTuple{e, items, tags}
}

func (t *EagerTuple) Index(i int) interface{} {
	t.engine.access.NotifyAccess(t.items[i])
	return t.items[i]
}

func (t *EagerTuple) Len() int            { return len(t.items) }
func (t *EagerTuple) Tags() []datatag.Tag { return t.tags }

// lazyDispatch maps native container types to their lazy wrapper
// constructors. The table is closed at engine construction; a
// duplicate registration is a conflict.
type lazyCtor func(e *Engine, value interface{}, tags []datatag.Tag) interface{}

type lazyDispatch struct {
	ctors map[reflect.Type]lazyCtor
}

func newLazyDispatch() *lazyDispatch {
	return &lazyDispatch{ctors: map[reflect.Type]lazyCtor{}}
}

func (d *lazyDispatch) register(sample interface{}, ctor lazyCtor) error {
	typ := reflect.TypeOf(sample)
	if _, found := d.ctors[typ]; found {
		return fmt.Errorf("Expected lazy constructor for %s to not be registered more than once", typ)
	}
	d.ctors[typ] = ctor
	return nil
}

func defaultLazyDispatch() (*lazyDispatch, error) {
	d := newLazyDispatch()

	regs := []struct {
		sample interface{}
		ctor   lazyCtor
	}{
		{(*orderedmap.Map)(nil), func(e *Engine, v interface{}, tags []datatag.Tag) interface{} {
			return e.NewLazyMap(v.(*orderedmap.Map), tags)
		}},
		{[]interface{}(nil), func(e *Engine, v interface{}, tags []datatag.Tag) interface{} {
			return e.NewLazyList(v.([]interface{}), tags)
		}},
		{datatag.Tuple{}, func(e *Engine, v interface{}, tags []datatag.Tag) interface{} {
			return e.NewEagerTuple(v.(datatag.Tuple), tags)
		}},
	}
	for _, reg := range regs {
		if err := d.register(reg.sample, reg.ctor); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// wrapLazy wraps a container (tagged or not) into its lazy form.
// Non-container values pass through unchanged.
func (e *Engine) wrapLazy(value interface{}) interface{} {
	tags := datatag.TagsOf(value)
	native := datatag.NativeValue(value)

	if native == nil {
		return value
	}
	ctor, found := e.lazy.ctors[reflect.TypeOf(native)]
	if !found {
		return value
	}
	return ctor(e, native, tags)
}
