// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"strconv"

	"templar.dev/templar/pkg/datatag"
	"templar.dev/templar/pkg/marker"
	"templar.dev/templar/pkg/orderedmap"
	"templar.dev/templar/pkg/vars"
)

// FinalizeMode selects how far the finalize walk goes.
type FinalizeMode int

const (
	// FinalizeTopLevel fully resolves a value for handing back to the
	// caller. A top-level omit is an error.
	FinalizeTopLevel FinalizeMode = iota
	// FinalizeConcat resolves a single rendered node for joining into
	// surrounding text.
	FinalizeConcat
	// FinalizeToContainer stops at the first container, leaving it
	// lazy.
	FinalizeToContainer
)

// Finalize walks a value, resolving lazy containers, dropping omit
// entries, and routing markers through behavior (nil means fail on
// first marker).
func (e *Engine) Finalize(value interface{}, mode FinalizeMode, behavior marker.Behavior) (interface{}, error) {
	if behavior == nil {
		behavior = marker.FailBehavior{}
	}

	if mode == FinalizeToContainer {
		switch value.(type) {
		case *LazyMap, *LazyList, *EagerTuple:
			return value, nil
		}
	}

	result, err := e.finalizeWalk(value, behavior)
	if err != nil {
		return nil, err
	}
	if vars.IsOmit(result) {
		return nil, OmittedError{}
	}

	if mode == FinalizeConcat {
		return concatString(result), nil
	}
	return result, nil
}

func (e *Engine) finalizeWalk(value interface{}, behavior marker.Behavior) (interface{}, error) {
	if m, ok := value.(marker.Marker); ok {
		return behavior.HandleMarker(m)
	}

	switch typedVal := value.(type) {
	case *LazyMap:
		typedVal.ResolveAll()
		result := orderedmap.NewMap()
		err := typedVal.data.IterateErr(func(k, v interface{}) error {
			walked, err := e.finalizeWalk(v, behavior)
			if err != nil {
				return err
			}
			if !vars.IsOmit(walked) {
				result.Set(k, walked)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return datatag.WithTag(result, typedVal.tags...)

	case *LazyList:
		typedVal.ResolveAll()
		var result []interface{}
		for _, item := range typedVal.items {
			walked, err := e.finalizeWalk(item, behavior)
			if err != nil {
				return nil, err
			}
			if !vars.IsOmit(walked) {
				result = append(result, walked)
			}
		}
		if result == nil {
			result = []interface{}{}
		}
		return datatag.WithTag(result, typedVal.tags...)

	case *EagerTuple:
		var items []interface{}
		for i := 0; i < typedVal.Len(); i++ {
			walked, err := e.finalizeWalk(typedVal.Index(i), behavior)
			if err != nil {
				return nil, err
			}
			if !vars.IsOmit(walked) {
				items = append(items, walked)
			}
		}
		return datatag.WithTag(datatag.NewTuple(items...), typedVal.tags...)

	case *orderedmap.Map:
		// untemplated data still gets omit entries dropped
		result := orderedmap.NewMap()
		err := typedVal.IterateErr(func(k, v interface{}) error {
			walked, err := e.finalizeWalk(v, behavior)
			if err != nil {
				return err
			}
			if !vars.IsOmit(walked) {
				result.Set(k, walked)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return result, nil

	case []interface{}:
		var result []interface{}
		for _, item := range typedVal {
			walked, err := e.finalizeWalk(item, behavior)
			if err != nil {
				return nil, err
			}
			if !vars.IsOmit(walked) {
				result = append(result, walked)
			}
		}
		if result == nil {
			result = []interface{}{}
		}
		return result, nil

	case datatag.TaggedList, datatag.TaggedMap, datatag.TaggedTuple:
		carrier := value.(datatag.TaggedValue)
		walked, err := e.finalizeWalk(carrier.NativeValue(), behavior)
		if err != nil {
			return nil, err
		}
		return datatag.CopyTags(value, walked)

	case datatag.Tuple:
		var items []interface{}
		for i := 0; i < typedVal.Len(); i++ {
			walked, err := e.finalizeWalk(typedVal.Index(i), behavior)
			if err != nil {
				return nil, err
			}
			if !vars.IsOmit(walked) {
				items = append(items, walked)
			}
		}
		return datatag.NewTuple(items...), nil

	default:
		return value, nil
	}
}

// concatString renders a finalized value for joining into template
// text.
func concatString(value interface{}) string {
	switch typedVal := datatag.NativeValue(value).(type) {
	case nil:
		return ""
	case bool:
		if typedVal {
			return "True"
		}
		return "False"
	case string:
		return typedVal
	case int64:
		return strconv.FormatInt(typedVal, 10)
	case float64:
		return strconv.FormatFloat(typedVal, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", typedVal)
	}
}
