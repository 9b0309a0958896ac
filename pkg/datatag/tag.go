// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package datatag

import (
	"fmt"
	"sort"

	"templar.dev/templar/pkg/orderedmap"
)

// Tag is an immutable provenance or capability record attached to a
// value. Implementations are small value types; two tags of the same
// type never coexist on one value.
type Tag interface {
	TypeName() string
}

// PropagationPolicy lets a tag veto or rewrite its own propagation
// when tags are copied from a source value onto a derived value.
type PropagationPolicy interface {
	TagToPropagate(src, dst interface{}) (Tag, bool)
}

// TaggedValue is implemented by the per-shape wrappers that carry a
// tag set alongside a native value.
type TaggedValue interface {
	TagsMapping() map[string]Tag
	WithTags(tags map[string]Tag) interface{}
	NativeValue() interface{}
}

// NotTaggableError reports an attempt to tag a value whose type is
// outside the native value model.
type NotTaggableError struct {
	Value interface{}
}

func (e NotTaggableError) Error() string {
	return fmt.Sprintf("Expected taggable value, but was %T", e.Value)
}

// WithTag attaches tags to a value, returning the tagged wrapper.
// Attaching zero tags returns the value unchanged. nil and bool never
// carry tags and pass through untouched. Re-tagging with a tag type
// already present replaces that tag.
func WithTag(value interface{}, tags ...Tag) (interface{}, error) {
	if len(tags) == 0 {
		return value, nil
	}

	switch value.(type) {
	case nil, bool:
		return value, nil
	}

	merged := map[string]Tag{}
	if carrier, ok := value.(TaggedValue); ok {
		for name, tag := range carrier.TagsMapping() {
			merged[name] = tag
		}
	}
	for _, tag := range tags {
		if tag == nil {
			return nil, fmt.Errorf("Expected tag to not be nil")
		}
		merged[tag.TypeName()] = tag
	}

	return wrapWithTags(value, merged)
}

// MustWithTag is WithTag for values known to be taggable.
func MustWithTag(value interface{}, tags ...Tag) interface{} {
	result, err := WithTag(value, tags...)
	if err != nil {
		panic(err.Error())
	}
	return result
}

func wrapWithTags(value interface{}, tags map[string]Tag) (interface{}, error) {
	if len(tags) == 0 {
		return NativeValue(value), nil
	}

	switch typedVal := value.(type) {
	case TaggedValue:
		return wrapWithTags(typedVal.NativeValue(), tags)
	case string:
		return TaggedString{typedVal, tags}, nil
	case int64:
		return TaggedInt{typedVal, tags}, nil
	case float64:
		return TaggedFloat{typedVal, tags}, nil
	case []interface{}:
		return TaggedList{typedVal, tags}, nil
	case *orderedmap.Map:
		return TaggedMap{typedVal, tags}, nil
	case Tuple:
		return TaggedTuple{typedVal, tags}, nil
	default:
		return nil, NotTaggableError{value}
	}
}

// Untag removes tags from a value. With no type names, all tags are
// removed; otherwise only the named tag types. Untagging a value that
// carries no tags returns it unchanged.
func Untag(value interface{}, typeNames ...string) interface{} {
	carrier, ok := value.(TaggedValue)
	if !ok {
		return value
	}
	if len(typeNames) == 0 {
		return carrier.NativeValue()
	}

	existing := carrier.TagsMapping()
	remaining := map[string]Tag{}
	for name, tag := range existing {
		remaining[name] = tag
	}
	for _, name := range typeNames {
		delete(remaining, name)
	}
	if len(remaining) == len(existing) {
		return value
	}

	result, err := wrapWithTags(carrier.NativeValue(), remaining)
	if err != nil {
		panic(err.Error())
	}
	return result
}

// TagsOf returns the tags carried by a value, sorted by type name.
func TagsOf(value interface{}) []Tag {
	carrier, ok := value.(TaggedValue)
	if !ok {
		return nil
	}
	mapping := carrier.TagsMapping()
	var result []Tag
	for _, tag := range mapping {
		result = append(result, tag)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TypeName() < result[j].TypeName()
	})
	return result
}

// FindTag returns the tag of the given type carried by a value.
func FindTag(value interface{}, typeName string) (Tag, bool) {
	carrier, ok := value.(TaggedValue)
	if !ok {
		return nil, false
	}
	tag, found := carrier.TagsMapping()[typeName]
	return tag, found
}

func HasTag(value interface{}, typeName string) bool {
	_, found := FindTag(value, typeName)
	return found
}

// NativeValue strips any tag wrapper, returning the underlying native
// value. Lossless for the value itself; only tags are discarded.
func NativeValue(value interface{}) interface{} {
	if carrier, ok := value.(TaggedValue); ok {
		return carrier.NativeValue()
	}
	return value
}

// CopyTags propagates src's tags onto dst. Tags implementing
// PropagationPolicy may veto or rewrite themselves; all other tags
// propagate unconditionally. dst's own same-type tags are replaced.
func CopyTags(src, dst interface{}) (interface{}, error) {
	srcTags := TagsOf(src)
	if len(srcTags) == 0 {
		return dst, nil
	}

	var toApply []Tag
	for _, tag := range srcTags {
		if policy, ok := tag.(PropagationPolicy); ok {
			propagated, keep := policy.TagToPropagate(src, dst)
			if !keep {
				continue
			}
			tag = propagated
		}
		toApply = append(toApply, tag)
	}

	return WithTag(dst, toApply...)
}
