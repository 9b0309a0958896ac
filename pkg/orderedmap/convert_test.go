// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package orderedmap_test

import (
	"reflect"
	"testing"

	"templar.dev/templar/pkg/orderedmap"
)

func TestFromUnorderedMaps(t *testing.T) {
	inputA := map[string]interface{}{
		"key": []interface{}{map[string]interface{}{"nestedKey": "nestedValue"}},
	}
	inputB := map[string]interface{}{
		"key": []interface{}{map[string]interface{}{"nestedKey": "nestedValue"}},
	}

	orderedmap.Conversion{Object: inputA}.FromUnorderedMaps()

	if !reflect.DeepEqual(inputA, inputB) {
		t.Errorf("Nested object was modified. Got: %v, Expected: %v", inputA, inputB)
	}
}

func TestFromUnorderedMapsSortsKeys(t *testing.T) {
	input := map[string]interface{}{"b": 2, "a": 1, "c": 3}

	result := orderedmap.Conversion{Object: input}.FromUnorderedMaps()

	typedResult, ok := result.(*orderedmap.Map)
	if !ok {
		t.Fatalf("Expected *orderedmap.Map, but was %T", result)
	}

	expectedKeys := []interface{}{"a", "b", "c"}
	if !reflect.DeepEqual(typedResult.Keys(), expectedKeys) {
		t.Errorf("Expected sorted keys %v, but was %v", expectedKeys, typedResult.Keys())
	}

	val, _ := typedResult.Get("b")
	if val != int64(2) {
		t.Errorf("Expected int values to convert to int64, but was %T", val)
	}
}

func TestRoundTripThroughUnorderedMaps(t *testing.T) {
	src := orderedmap.NewMap()
	src.Set("name", "value")
	nested := orderedmap.NewMap()
	nested.Set("inner", int64(1))
	src.Set("nested", nested)

	plain := orderedmap.Conversion{Object: src}.AsUnorderedStringMaps()
	back := orderedmap.Conversion{Object: plain}.FromUnorderedMaps()

	typedBack, ok := back.(*orderedmap.Map)
	if !ok {
		t.Fatalf("Expected *orderedmap.Map, but was %T", back)
	}
	if !src.EqualTo(typedBack) {
		t.Errorf("Expected round trip to preserve contents. Got: %v", typedBack)
	}
}
