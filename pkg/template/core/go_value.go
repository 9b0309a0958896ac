// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"

	"github.com/k14s/starlark-go/starlark"

	"templar.dev/templar/pkg/datatag"
	"templar.dev/templar/pkg/orderedmap"
)

// GoValueToStarlarkValueConversion lets a value provide its own
// starlark representation, bypassing the shape switch below. Lazy
// containers and markers use this to cross the boundary as proxies.
type GoValueToStarlarkValueConversion interface {
	AsStarlarkValue() starlark.Value
}

// GoValue converts native values into starlark values. Tag wrappers
// on scalars are unwrapped at this boundary; tag preservation across
// expressions is the engine's job, not the evaluator's.
type GoValue struct {
	val interface{}
}

func NewGoValue(val interface{}) GoValue {
	return GoValue{val}
}

func (e GoValue) AsStarlarkValue() starlark.Value {
	return e.asStarlarkValue(e.val)
}

func (e GoValue) asStarlarkValue(val interface{}) starlark.Value {
	if obj, ok := val.(GoValueToStarlarkValueConversion); ok {
		return obj.AsStarlarkValue()
	}

	switch typedVal := val.(type) {
	case nil:
		return starlark.None

	case bool:
		return starlark.Bool(typedVal)

	case string:
		return starlark.String(typedVal)

	case int64:
		return starlark.MakeInt64(typedVal)

	case float64:
		return starlark.Float(typedVal)

	case []interface{}:
		return e.listAsStarlarkValue(typedVal)

	case *orderedmap.Map:
		return e.dictAsStarlarkValue(typedVal)

	case datatag.Tuple:
		return e.tupleAsStarlarkValue(typedVal)

	case datatag.TaggedValue:
		return e.asStarlarkValue(typedVal.NativeValue())

	default:
		panic(fmt.Sprintf("unknown type %T for conversion to starlark value", val))
	}
}

func (e GoValue) dictAsStarlarkValue(val *orderedmap.Map) starlark.Value {
	result := &starlark.Dict{}
	val.Iterate(func(k, v interface{}) {
		result.SetKey(e.asStarlarkValue(k), e.asStarlarkValue(v))
	})
	return &Dict{result}
}

// Dict is a starlark dict whose attribute access falls back to string
// key lookup, so that converted data reads as 'svc.host' as well as
// 'svc["host"]'. Dict methods keep priority over keys.
type Dict struct {
	*starlark.Dict
}

func (d *Dict) Attr(name string) (starlark.Value, error) {
	val, err := d.Dict.Attr(name)
	if val != nil || err != nil {
		return val, err
	}
	entry, found, err := d.Dict.Get(starlark.String(name))
	if err != nil {
		return nil, err
	}
	if found {
		return entry, nil
	}
	return nil, nil
}

func (e GoValue) listAsStarlarkValue(val []interface{}) *starlark.List {
	result := []starlark.Value{}
	for _, v := range val {
		result = append(result, e.asStarlarkValue(v))
	}
	return starlark.NewList(result)
}

func (e GoValue) tupleAsStarlarkValue(val datatag.Tuple) starlark.Tuple {
	result := starlark.Tuple{}
	for _, v := range val.Items() {
		result = append(result, e.asStarlarkValue(v))
	}
	return result
}
