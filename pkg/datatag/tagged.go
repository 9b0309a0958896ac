// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package datatag

import (
	"fmt"
	"strings"

	"templar.dev/templar/pkg/orderedmap"
)

// Per-shape tag carriers. Each wraps one native value shape and an
// immutable tag mapping keyed by tag type name. Wrappers never mutate
// the mapping after construction; WithTags takes ownership of the
// mapping it is given.

type TaggedString struct {
	val  string
	tags map[string]Tag
}

type TaggedInt struct {
	val  int64
	tags map[string]Tag
}

type TaggedFloat struct {
	val  float64
	tags map[string]Tag
}

type TaggedList struct {
	items []interface{}
	tags  map[string]Tag
}

type TaggedMap struct {
	val  *orderedmap.Map
	tags map[string]Tag
}

type TaggedTuple struct {
	val  Tuple
	tags map[string]Tag
}

var _ TaggedValue = TaggedString{}
var _ TaggedValue = TaggedInt{}
var _ TaggedValue = TaggedFloat{}
var _ TaggedValue = TaggedList{}
var _ TaggedValue = TaggedMap{}
var _ TaggedValue = TaggedTuple{}

func (t TaggedString) TagsMapping() map[string]Tag { return t.tags }
func (t TaggedInt) TagsMapping() map[string]Tag    { return t.tags }
func (t TaggedFloat) TagsMapping() map[string]Tag  { return t.tags }
func (t TaggedList) TagsMapping() map[string]Tag   { return t.tags }
func (t TaggedMap) TagsMapping() map[string]Tag    { return t.tags }
func (t TaggedTuple) TagsMapping() map[string]Tag  { return t.tags }

func (t TaggedString) NativeValue() interface{} { return t.val }
func (t TaggedInt) NativeValue() interface{}    { return t.val }
func (t TaggedFloat) NativeValue() interface{}  { return t.val }
func (t TaggedList) NativeValue() interface{}   { return t.items }
func (t TaggedMap) NativeValue() interface{}    { return t.val }
func (t TaggedTuple) NativeValue() interface{}  { return t.val }

func (t TaggedString) String() string     { return t.val }
func (t TaggedInt) Int64() int64          { return t.val }
func (t TaggedFloat) Float64() float64    { return t.val }
func (t TaggedList) Items() []interface{} { return t.items }
func (t TaggedMap) Map() *orderedmap.Map  { return t.val }
func (t TaggedTuple) Tuple() Tuple        { return t.val }

func (t TaggedString) WithTags(tags map[string]Tag) interface{} { return TaggedString{t.val, tags} }
func (t TaggedInt) WithTags(tags map[string]Tag) interface{}    { return TaggedInt{t.val, tags} }
func (t TaggedFloat) WithTags(tags map[string]Tag) interface{}  { return TaggedFloat{t.val, tags} }
func (t TaggedList) WithTags(tags map[string]Tag) interface{}   { return TaggedList{t.items, tags} }
func (t TaggedMap) WithTags(tags map[string]Tag) interface{}    { return TaggedMap{t.val, tags} }
func (t TaggedTuple) WithTags(tags map[string]Tag) interface{}  { return TaggedTuple{t.val, tags} }

// Tuple is an immutable fixed-length sequence. Unlike []interface{},
// a Tuple's contents cannot be changed after construction.
type Tuple struct {
	items []interface{}
}

func NewTuple(items ...interface{}) Tuple {
	copied := make([]interface{}, len(items))
	copy(copied, items)
	return Tuple{copied}
}

func (t Tuple) Len() int { return len(t.items) }

func (t Tuple) Index(i int) interface{} { return t.items[i] }

// Items returns a copy of the tuple's contents.
func (t Tuple) Items() []interface{} {
	copied := make([]interface{}, len(t.items))
	copy(copied, t.items)
	return copied
}

func (t Tuple) String() string {
	var parts []string
	for _, item := range t.items {
		parts = append(parts, fmt.Sprintf("%v", item))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
