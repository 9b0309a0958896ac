// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

// Package vars provides the layered variable source templates read
// from, and the omit sentinel.
package vars

import (
	"sort"

	"templar.dev/templar/pkg/orderedmap"
)

// Source is a stack of variable layers. Later layers override earlier
// ones key by key. Layers are not copied; callers own them.
type Source struct {
	layers []*orderedmap.Map
}

func NewSource(layers ...*orderedmap.Map) *Source {
	return &Source{layers}
}

// WithLayer returns a new Source with one more overriding layer on
// top. The receiver is not modified.
func (s *Source) WithLayer(layer *orderedmap.Map) *Source {
	layers := make([]*orderedmap.Map, 0, len(s.layers)+1)
	layers = append(layers, s.layers...)
	layers = append(layers, layer)
	return &Source{layers}
}

// Get looks a name up across layers, topmost layer first.
func (s *Source) Get(name string) (interface{}, bool) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if val, found := s.layers[i].Get(name); found {
			return val, true
		}
	}
	return nil, false
}

func (s *Source) Has(name string) bool {
	_, found := s.Get(name)
	return found
}

// Names returns all variable names visible through the source,
// sorted. Shadowed names appear once.
func (s *Source) Names() []string {
	seen := map[string]struct{}{}
	for _, layer := range s.layers {
		layer.Iterate(func(k, _ interface{}) {
			if name, ok := k.(string); ok {
				seen[name] = struct{}{}
			}
		})
	}
	var names []string
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flatten merges all layers into a single map, respecting override
// order. Key insertion order follows first appearance.
func (s *Source) Flatten() *orderedmap.Map {
	result := orderedmap.NewMap()
	for _, layer := range s.layers {
		layer.Iterate(func(k, v interface{}) {
			result.Set(k, v)
		})
	}
	return result
}
