// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

// Package plugins provides the registry of filters, tests and lookups
// callable from template expressions, with explicit opt-ins for
// receiving markers and unresolved lazy containers.
package plugins

import (
	"fmt"
	"sort"

	"templar.dev/templar/pkg/orderedmap"
)

// Filter transforms an input value. Extra positional arguments come
// from the call site.
type Filter struct {
	Name string
	Func func(in interface{}, args ...interface{}) (interface{}, error)

	// AcceptsMarkers lets markers flow into Func instead of
	// short-circuiting the call.
	AcceptsMarkers bool
	// AcceptsLazy passes lazy containers through unresolved.
	AcceptsLazy bool
}

// Test evaluates a predicate over an input value.
type Test struct {
	Name string
	Func func(in interface{}, args ...interface{}) (bool, error)

	AcceptsMarkers bool
	AcceptsLazy    bool
}

// Lookup fetches external data by terms. kwargs may be nil.
type Lookup struct {
	Name string
	Func func(terms []interface{}, kwargs *orderedmap.Map) (interface{}, error)

	AcceptsMarkers bool
	AcceptsLazy    bool
}

// Registry holds plugins by kind and name. Registration conflicts
// fail fast; lookups of unknown names return NotFoundError.
type Registry struct {
	filters map[string]Filter
	tests   map[string]Test
	lookups map[string]Lookup
}

func NewRegistry() *Registry {
	return &Registry{
		filters: map[string]Filter{},
		tests:   map[string]Test{},
		lookups: map[string]Lookup{},
	}
}

func (r *Registry) AddFilter(f Filter) error {
	if err := checkName("filter", f.Name, f.Func == nil); err != nil {
		return err
	}
	if _, found := r.filters[f.Name]; found {
		return fmt.Errorf("Expected filter '%s' to not be registered more than once", f.Name)
	}
	r.filters[f.Name] = f
	return nil
}

func (r *Registry) AddTest(t Test) error {
	if err := checkName("test", t.Name, t.Func == nil); err != nil {
		return err
	}
	if _, found := r.tests[t.Name]; found {
		return fmt.Errorf("Expected test '%s' to not be registered more than once", t.Name)
	}
	r.tests[t.Name] = t
	return nil
}

func (r *Registry) AddLookup(l Lookup) error {
	if err := checkName("lookup", l.Name, l.Func == nil); err != nil {
		return err
	}
	if _, found := r.lookups[l.Name]; found {
		return fmt.Errorf("Expected lookup '%s' to not be registered more than once", l.Name)
	}
	r.lookups[l.Name] = l
	return nil
}

func checkName(kind, name string, nilFunc bool) error {
	if len(name) == 0 {
		return fmt.Errorf("Expected %s name to not be empty", kind)
	}
	if nilFunc {
		return fmt.Errorf("Expected %s '%s' func to not be nil", kind, name)
	}
	return nil
}

func (r *Registry) Filter(name string) (Filter, error) {
	f, found := r.filters[name]
	if !found {
		return Filter{}, NotFoundError{"filter", name}
	}
	return f, nil
}

func (r *Registry) Test(name string) (Test, error) {
	t, found := r.tests[name]
	if !found {
		return Test{}, NotFoundError{"test", name}
	}
	return t, nil
}

func (r *Registry) Lookup(name string) (Lookup, error) {
	l, found := r.lookups[name]
	if !found {
		return Lookup{}, NotFoundError{"lookup", name}
	}
	return l, nil
}

func (r *Registry) FilterNames() []string { return sortedKeys(r.filters) }
func (r *Registry) TestNames() []string   { return sortedKeysTests(r.tests) }
func (r *Registry) LookupNames() []string { return sortedKeysLookups(r.lookups) }

func sortedKeys(m map[string]Filter) []string {
	var names []string
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeysTests(m map[string]Test) []string {
	var names []string
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeysLookups(m map[string]Lookup) []string {
	var names []string
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NotFoundError reports a plugin name with no registration.
type NotFoundError struct {
	Kind string
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("Expected to find %s '%s'", e.Kind, e.Name)
}

// LoadError reports a plugin that was found but failed to initialize.
type LoadError struct {
	Kind string
	Name string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("Loading %s '%s': %s", e.Kind, e.Name, e.Err)
}

func (e LoadError) Unwrap() error { return e.Err }
