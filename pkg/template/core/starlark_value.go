// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"

	"github.com/k14s/starlark-go/starlark"

	"templar.dev/templar/pkg/datatag"
	"templar.dev/templar/pkg/orderedmap"
)

// StarlarkValueToGoValueConversion lets a starlark value decide its
// own native representation. Proxies for lazy containers and markers
// use this to come back out of the evaluator unconverted.
type StarlarkValueToGoValueConversion interface {
	AsGoValue() interface{}
}

// StarlarkValue converts starlark values into native values:
// dicts become *orderedmap.Map, lists and sets become []interface{},
// tuples become datatag.Tuple, ints become int64.
type StarlarkValue struct {
	val starlark.Value
}

func NewStarlarkValue(val starlark.Value) StarlarkValue {
	return StarlarkValue{val}
}

func (e StarlarkValue) AsGoValue() (interface{}, error) {
	return e.asInterface(e.val)
}

func (e StarlarkValue) AsString() (string, error) {
	if typedVal, ok := e.val.(starlark.String); ok {
		return string(typedVal), nil
	}
	return "", fmt.Errorf("expected starlark.String, but was %T", e.val)
}

func (e StarlarkValue) AsBool() (bool, error) {
	if typedVal, ok := e.val.(starlark.Bool); ok {
		return bool(typedVal), nil
	}
	return false, fmt.Errorf("expected starlark.Bool, but was %T", e.val)
}

func (e StarlarkValue) AsInt64() (int64, error) {
	if typedVal, ok := e.val.(starlark.Int); ok {
		i1, ok := typedVal.Int64()
		if ok {
			return i1, nil
		}
		return 0, fmt.Errorf("expected int64 value")
	}
	return 0, fmt.Errorf("expected starlark.Int")
}

func (e StarlarkValue) asInterface(val starlark.Value) (interface{}, error) {
	if obj, ok := val.(StarlarkValueToGoValueConversion); ok {
		return obj.AsGoValue(), nil
	}

	switch typedVal := val.(type) {
	case nil, starlark.NoneType:
		return nil, nil

	case starlark.Bool:
		return bool(typedVal), nil

	case starlark.String:
		return string(typedVal), nil

	case starlark.Int:
		i1, ok := typedVal.Int64()
		if !ok {
			return nil, fmt.Errorf("expected int to fit in int64, but was %s", typedVal.String())
		}
		return i1, nil

	case starlark.Float:
		return float64(typedVal), nil

	case *Dict:
		return e.dictAsInterface(typedVal.Dict)

	case *starlark.Dict:
		return e.dictAsInterface(typedVal)

	case starlark.Tuple:
		return e.tupleAsInterface(typedVal)

	case *starlark.List:
		return e.iterableAsInterface(typedVal)

	case *starlark.Set:
		return e.iterableAsInterface(typedVal)

	default:
		return nil, fmt.Errorf("unknown type %T for conversion to go value", val)
	}
}

func (e StarlarkValue) dictAsInterface(val *starlark.Dict) (interface{}, error) {
	result := orderedmap.NewMap()
	for _, item := range val.Items() {
		if item.Len() != 2 {
			panic("dict item is not KV")
		}
		key, err := e.asInterface(item.Index(0))
		if err != nil {
			return nil, err
		}
		value, err := e.asInterface(item.Index(1))
		if err != nil {
			return nil, err
		}
		result.Set(key, value)
	}
	return result, nil
}

func (e StarlarkValue) tupleAsInterface(val starlark.Tuple) (interface{}, error) {
	var items []interface{}
	for _, item := range val {
		converted, err := e.asInterface(item)
		if err != nil {
			return nil, err
		}
		items = append(items, converted)
	}
	return datatag.NewTuple(items...), nil
}

func (e StarlarkValue) iterableAsInterface(iterable starlark.Iterable) (interface{}, error) {
	iter := iterable.Iterate()
	defer iter.Done()

	var result []interface{}
	var x starlark.Value
	for iter.Next(&x) {
		converted, err := e.asInterface(x)
		if err != nil {
			return nil, err
		}
		result = append(result, converted)
	}
	return result, nil
}
