// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package marker

import (
	"fmt"
	"reflect"
)

// Behavior decides what happens when a marker reaches a boundary that
// cannot let it flow further (e.g. a finalized scalar slot).
type Behavior interface {
	// HandleMarker returns the value to use in place of the marker,
	// or an error to abort.
	HandleMarker(m Marker) (interface{}, error)
}

// FailBehavior trips every marker it sees. This is the default.
type FailBehavior struct{}

var _ Behavior = FailBehavior{}

func (FailBehavior) HandleMarker(m Marker) (interface{}, error) {
	return nil, Trip(m)
}

// ReplaceBehavior substitutes a numbered placeholder string for each
// marker and keeps a record of what was replaced for batched
// reporting. Placeholder numbers start at 1 and match the order of
// Records.
type ReplaceBehavior struct {
	records []Marker
}

var _ Behavior = &ReplaceBehavior{}

func NewReplaceBehavior() *ReplaceBehavior {
	return &ReplaceBehavior{}
}

func (b *ReplaceBehavior) HandleMarker(m Marker) (interface{}, error) {
	b.records = append(b.records, m)
	return fmt.Sprintf("<< error %d >>", len(b.records)), nil
}

// Records returns the markers replaced so far, in encounter order.
func (b *ReplaceBehavior) Records() []Marker { return b.records }

// RouteBehavior dispatches each marker to the behavior registered for
// its concrete type. Unrouted marker types fail.
type RouteBehavior struct {
	routes map[reflect.Type]Behavior
}

var _ Behavior = &RouteBehavior{}

func NewRouteBehavior() *RouteBehavior {
	return &RouteBehavior{routes: map[reflect.Type]Behavior{}}
}

// Route registers a behavior for markers of the same concrete type as
// sample. Registering a type twice is a conflict.
func (b *RouteBehavior) Route(sample Marker, behavior Behavior) error {
	typ := reflect.TypeOf(sample)
	if _, found := b.routes[typ]; found {
		return fmt.Errorf("Expected route for %s to not be registered more than once", typ)
	}
	b.routes[typ] = behavior
	return nil
}

func (b *RouteBehavior) HandleMarker(m Marker) (interface{}, error) {
	if nested, found := b.routes[reflect.TypeOf(m)]; found {
		return nested.HandleMarker(m)
	}
	return FailBehavior{}.HandleMarker(m)
}
