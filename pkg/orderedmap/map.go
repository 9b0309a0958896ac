// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package orderedmap

import (
	"encoding/json"
	"reflect"
)

// Map is an insertion-ordered mapping with interface{} keys.
// It is the canonical mapping shape for values flowing through the
// templating system; plain Go maps are only accepted at the edges.
type Map struct {
	items []MapItem
}

type MapItem struct {
	Key   interface{}
	Value interface{}
}

func NewMap() *Map {
	return &Map{}
}

func NewMapWithItems(items []MapItem) *Map {
	return &Map{items}
}

func (m *Map) Set(key, value interface{}) {
	for i, item := range m.items {
		if m.isKeyEq(item.Key, key) {
			item.Value = value
			m.items[i] = item
			return
		}
	}
	m.items = append(m.items, MapItem{key, value})
}

func (m *Map) Get(key interface{}) (interface{}, bool) {
	for _, item := range m.items {
		if m.isKeyEq(item.Key, key) {
			return item.Value, true
		}
	}
	return nil, false
}

func (m *Map) Has(key interface{}) bool {
	_, found := m.Get(key)
	return found
}

func (m *Map) Delete(key interface{}) bool {
	for i, item := range m.items {
		if m.isKeyEq(item.Key, key) {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Map) Keys() (keys []interface{}) {
	m.Iterate(func(k, _ interface{}) {
		keys = append(keys, k)
	})
	return
}

func (m *Map) Iterate(iterFunc func(k, v interface{})) {
	for _, item := range m.items {
		iterFunc(item.Key, item.Value)
	}
}

func (m *Map) IterateErr(iterFunc func(k, v interface{}) error) error {
	for _, item := range m.items {
		err := iterFunc(item.Key, item.Value)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Map) Len() int { return len(m.items) }

// Copy returns a shallow copy preserving insertion order.
func (m *Map) Copy() *Map {
	items := make([]MapItem, len(m.items))
	copy(items, m.items)
	return &Map{items}
}

func (m *Map) Clear() { m.items = nil }

// EqualTo compares two maps by key set and per-key values, ignoring
// insertion order (matching native mapping equality).
func (m *Map) EqualTo(other *Map) bool {
	if other == nil || m.Len() != other.Len() {
		return false
	}
	for _, item := range m.items {
		otherVal, found := other.Get(item.Key)
		if !found || !reflect.DeepEqual(item.Value, otherVal) {
			return false
		}
	}
	return true
}

func (m *Map) isKeyEq(key1, key2 interface{}) bool {
	return reflect.DeepEqual(key1, key2)
}

// Below methods disallow marshaling of Map directly
var _ []json.Marshaler = []json.Marshaler{&Map{}}

func (*Map) MarshalJSON() ([]byte, error) { panic("Unexpected marshaling of *orderedmap.Map") }
