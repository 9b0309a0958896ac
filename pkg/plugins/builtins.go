// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"templar.dev/templar/pkg/datatag"
	"templar.dev/templar/pkg/marker"
	"templar.dev/templar/pkg/orderedmap"
)

// NewDefaultRegistry returns a registry preloaded with the built-in
// filters, tests and lookups.
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()

	builtins := []func(*Registry) error{
		addDefaultFilter,
		addStringFilters,
		addLengthFilter,
		addJoinFilter,
		addBase64Filters,
		addDefinedTests,
		addTypeTests,
		addEnvLookup,
		addFileLookup,
	}
	for _, add := range builtins {
		if err := add(registry); err != nil {
			panic(err.Error())
		}
	}
	return registry
}

// default replaces an undefined input with a fallback. It tolerates
// markers so that an Undefined marker selects the fallback instead of
// tripping.
func addDefaultFilter(r *Registry) error {
	return r.AddFilter(Filter{
		Name:           "default",
		AcceptsMarkers: true,
		Func: func(in interface{}, args ...interface{}) (interface{}, error) {
			if len(args) < 1 {
				return nil, fmt.Errorf("Expected default filter to have a fallback argument")
			}
			if _, ok := in.(marker.Undefined); ok {
				return args[0], nil
			}
			if m, ok := in.(marker.Marker); ok {
				// only undefinedness selects the fallback; other
				// markers keep flowing
				return m, nil
			}
			return in, nil
		},
	})
}

func addStringFilters(r *Registry) error {
	stringFilter := func(name string, f func(s string) string) Filter {
		return Filter{
			Name: name,
			Func: func(in interface{}, _ ...interface{}) (interface{}, error) {
				s, ok := datatag.NativeValue(in).(string)
				if !ok {
					return nil, fmt.Errorf("Expected string for filter '%s', but was %T", name, datatag.NativeValue(in))
				}
				return f(s), nil
			},
		}
	}

	for _, f := range []Filter{
		stringFilter("upper", strings.ToUpper),
		stringFilter("lower", strings.ToLower),
		stringFilter("trim", strings.TrimSpace),
		stringFilter("capitalize", func(s string) string {
			if len(s) == 0 {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		}),
	} {
		if err := r.AddFilter(f); err != nil {
			return err
		}
	}

	return r.AddFilter(Filter{
		Name: "replace",
		Func: func(in interface{}, args ...interface{}) (interface{}, error) {
			s, ok := datatag.NativeValue(in).(string)
			if !ok {
				return nil, fmt.Errorf("Expected string for filter 'replace', but was %T", datatag.NativeValue(in))
			}
			if len(args) != 2 {
				return nil, fmt.Errorf("Expected replace filter to have exactly 2 arguments")
			}
			from, okFrom := datatag.NativeValue(args[0]).(string)
			to, okTo := datatag.NativeValue(args[1]).(string)
			if !okFrom || !okTo {
				return nil, fmt.Errorf("Expected replace filter arguments to be strings")
			}
			return strings.ReplaceAll(s, from, to), nil
		},
	})
}

func addLengthFilter(r *Registry) error {
	return r.AddFilter(Filter{
		Name: "length",
		Func: func(in interface{}, _ ...interface{}) (interface{}, error) {
			switch typedIn := datatag.NativeValue(in).(type) {
			case string:
				return int64(len(typedIn)), nil
			case []interface{}:
				return int64(len(typedIn)), nil
			case *orderedmap.Map:
				return int64(typedIn.Len()), nil
			case datatag.Tuple:
				return int64(typedIn.Len()), nil
			default:
				return nil, fmt.Errorf("Expected value with a length, but was %T", typedIn)
			}
		},
	})
}

func addJoinFilter(r *Registry) error {
	return r.AddFilter(Filter{
		Name: "join",
		Func: func(in interface{}, args ...interface{}) (interface{}, error) {
			items, ok := datatag.NativeValue(in).([]interface{})
			if !ok {
				return nil, fmt.Errorf("Expected sequence for filter 'join', but was %T", datatag.NativeValue(in))
			}
			sep := ""
			if len(args) > 0 {
				sep, ok = datatag.NativeValue(args[0]).(string)
				if !ok {
					return nil, fmt.Errorf("Expected join separator to be string")
				}
			}
			var parts []string
			for _, item := range items {
				parts = append(parts, fmt.Sprintf("%v", datatag.NativeValue(item)))
			}
			return strings.Join(parts, sep), nil
		},
	})
}

func addBase64Filters(r *Registry) error {
	err := r.AddFilter(Filter{
		Name: "b64encode",
		Func: func(in interface{}, _ ...interface{}) (interface{}, error) {
			s, ok := datatag.NativeValue(in).(string)
			if !ok {
				return nil, fmt.Errorf("Expected string for filter 'b64encode', but was %T", datatag.NativeValue(in))
			}
			return base64.StdEncoding.EncodeToString([]byte(s)), nil
		},
	})
	if err != nil {
		return err
	}

	return r.AddFilter(Filter{
		Name: "b64decode",
		Func: func(in interface{}, _ ...interface{}) (interface{}, error) {
			s, ok := datatag.NativeValue(in).(string)
			if !ok {
				return nil, fmt.Errorf("Expected string for filter 'b64decode', but was %T", datatag.NativeValue(in))
			}
			decoded, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("Decoding base64: %s", err)
			}
			return string(decoded), nil
		},
	})
}

// defined/undefined tolerate markers: an Undefined marker is exactly
// what they exist to detect.
func addDefinedTests(r *Registry) error {
	err := r.AddTest(Test{
		Name:           "defined",
		AcceptsMarkers: true,
		Func: func(in interface{}, _ ...interface{}) (bool, error) {
			_, undefined := in.(marker.Undefined)
			return !undefined, nil
		},
	})
	if err != nil {
		return err
	}

	return r.AddTest(Test{
		Name:           "undefined",
		AcceptsMarkers: true,
		Func: func(in interface{}, _ ...interface{}) (bool, error) {
			_, undefined := in.(marker.Undefined)
			return undefined, nil
		},
	})
}

func addTypeTests(r *Registry) error {
	err := r.AddTest(Test{
		Name: "string",
		Func: func(in interface{}, _ ...interface{}) (bool, error) {
			_, ok := datatag.NativeValue(in).(string)
			return ok, nil
		},
	})
	if err != nil {
		return err
	}

	return r.AddTest(Test{
		Name: "number",
		Func: func(in interface{}, _ ...interface{}) (bool, error) {
			switch datatag.NativeValue(in).(type) {
			case int64, float64:
				return true, nil
			default:
				return false, nil
			}
		},
	})
}

func addEnvLookup(r *Registry) error {
	return r.AddLookup(Lookup{
		Name: "env",
		Func: func(terms []interface{}, _ *orderedmap.Map) (interface{}, error) {
			var results []interface{}
			for _, term := range terms {
				name, ok := datatag.NativeValue(term).(string)
				if !ok {
					return nil, fmt.Errorf("Expected env lookup term to be string, but was %T", datatag.NativeValue(term))
				}
				results = append(results, os.Getenv(name))
			}
			if len(results) == 1 {
				return results[0], nil
			}
			return results, nil
		},
	})
}

// file lookup reads file contents. Results carry an origin tag but
// never trust; file contents do not become templates implicitly.
func addFileLookup(r *Registry) error {
	return r.AddLookup(Lookup{
		Name: "file",
		Func: func(terms []interface{}, _ *orderedmap.Map) (interface{}, error) {
			var results []interface{}
			for _, term := range terms {
				path, ok := datatag.NativeValue(term).(string)
				if !ok {
					return nil, fmt.Errorf("Expected file lookup term to be string, but was %T", datatag.NativeValue(term))
				}
				contents, err := os.ReadFile(path)
				if err != nil {
					return nil, fmt.Errorf("Reading file for lookup: %s", err)
				}
				tagged, err := datatag.WithTag(string(contents), datatag.Origin{Path: path})
				if err != nil {
					return nil, err
				}
				results = append(results, tagged)
			}
			if len(results) == 1 {
				return results[0], nil
			}
			return results, nil
		},
	})
}
