// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"templar.dev/templar/pkg/orderedmap"
	"templar.dev/templar/pkg/vars"
)

// DataValuesFlags collects variable values from files, individual
// key-value flags and prefixed environment variables. Values gathered
// here are data, never templates: nothing in this path applies the
// trusted-template tag.
type DataValuesFlags struct {
	FromFiles []string

	EnvFromStrings []string

	KVsFromStrings []string
	KVsFromJSON    []string
	KVsFromFiles   []string
}

func (s *DataValuesFlags) Set(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&s.FromFiles, "data-values-file", nil, "Load data values from a JSON or TOML file (can be specified multiple times)")

	cmd.Flags().StringArrayVar(&s.EnvFromStrings, "data-values-env", nil, "Extract data values (as strings) from prefixed env vars (format: PREFIX for PREFIX_key1__subkey=str) (can be specified multiple times)")

	cmd.Flags().StringArrayVarP(&s.KVsFromStrings, "data-value", "v", nil, "Set specific data value to given value, as string (format: key1.subkey=123) (can be specified multiple times)")
	cmd.Flags().StringArrayVar(&s.KVsFromJSON, "data-value-json", nil, "Set specific data value to given value, parsed as JSON (format: key1.subkey=true) (can be specified multiple times)")
	cmd.Flags().StringArrayVar(&s.KVsFromFiles, "data-value-file", nil, "Set specific data value to given file contents, as string (format: key1.subkey=/file/path) (can be specified multiple times)")
}

type dataValuesFlagsSource struct {
	Values        []string
	TransformFunc func(string) (interface{}, error)
}

// Source builds a layered variable source. Later layers take
// precedence: files, then env vars, then individual KV flags.
func (s *DataValuesFlags) Source() (*vars.Source, error) {
	var layers []*orderedmap.Map

	for _, path := range s.FromFiles {
		layer, err := s.fileLayer(path)
		if err != nil {
			return nil, fmt.Errorf("Extracting data values from file '%s': %s", path, err)
		}
		layers = append(layers, layer)
	}

	plainValFunc := func(rawVal string) (interface{}, error) { return rawVal, nil }

	jsonValFunc := func(rawVal string) (interface{}, error) {
		var val interface{}
		err := json.Unmarshal([]byte(rawVal), &val)
		if err != nil {
			return nil, fmt.Errorf("Deserializing JSON value: %s", err)
		}
		return orderedmap.Conversion{Object: val}.FromUnorderedMaps(), nil
	}

	var flat []*orderedmap.Map

	for _, envPrefix := range s.EnvFromStrings {
		envVals, err := s.env(envPrefix)
		if err != nil {
			return nil, fmt.Errorf("Extracting data values from env under prefix '%s': %s", envPrefix, err)
		}
		flat = append(flat, envVals)
	}

	for _, src := range []dataValuesFlagsSource{{s.KVsFromStrings, plainValFunc}, {s.KVsFromJSON, jsonValFunc}} {
		for _, kv := range src.Values {
			kvVals, err := s.kv(kv, src.TransformFunc)
			if err != nil {
				return nil, fmt.Errorf("Extracting data value from KV: %s", err)
			}
			flat = append(flat, kvVals)
		}
	}

	for _, kv := range s.KVsFromFiles {
		kvVals, err := s.kvFile(kv)
		if err != nil {
			return nil, fmt.Errorf("Extracting data value from file: %s", err)
		}
		flat = append(flat, kvVals)
	}

	if len(flat) > 0 {
		nested, err := s.convertIntoNestedMap(flat)
		if err != nil {
			return nil, err
		}
		layers = append(layers, nested)
	}

	return vars.NewSource(layers...), nil
}

func (s *DataValuesFlags) fileLayer(path string) (*orderedmap.Map, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var decoded interface{}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(contents, &decoded)
	case ".json":
		err = json.Unmarshal(contents, &decoded)
	default:
		return nil, fmt.Errorf("Expected file extension to be .json or .toml, but was '%s'", ext)
	}
	if err != nil {
		return nil, err
	}

	converted := orderedmap.Conversion{Object: decoded}.FromUnorderedMaps()

	layer, ok := converted.(*orderedmap.Map)
	if !ok {
		return nil, fmt.Errorf("Expected file to contain a map at the top level, but was %T", decoded)
	}

	return layer, nil
}

func (s *DataValuesFlags) env(prefix string) (*orderedmap.Map, error) {
	result := orderedmap.NewMap()

	for _, envVar := range os.Environ() {
		pieces := strings.SplitN(envVar, "=", 2)
		if len(pieces) != 2 {
			return nil, fmt.Errorf("Expected env variable to be key-value pair (format: key=value)")
		}

		if !strings.HasPrefix(pieces[0], prefix+"_") {
			continue
		}

		// '__' gets translated into a '.' since periods may not be liked by shells
		result.Set(strings.Replace(strings.TrimPrefix(pieces[0], prefix+"_"), "__", ".", -1), pieces[1])
	}

	return result, nil
}

func (s *DataValuesFlags) kv(kv string, valueFunc func(string) (interface{}, error)) (*orderedmap.Map, error) {
	pieces := strings.SplitN(kv, "=", 2)
	if len(pieces) != 2 {
		return nil, fmt.Errorf("Expected format key=value")
	}

	val, err := valueFunc(pieces[1])
	if err != nil {
		return nil, fmt.Errorf("Deserializing value for key '%s': %s", pieces[0], err)
	}

	result := orderedmap.NewMap()
	result.Set(pieces[0], val)

	return result, nil
}

func (s *DataValuesFlags) kvFile(kv string) (*orderedmap.Map, error) {
	pieces := strings.SplitN(kv, "=", 2)
	if len(pieces) != 2 {
		return nil, fmt.Errorf("Expected format key=/file/path")
	}

	contents, err := os.ReadFile(pieces[1])
	if err != nil {
		return nil, fmt.Errorf("Reading file '%s'", pieces[1])
	}

	result := orderedmap.NewMap()
	result.Set(pieces[0], string(contents))

	return result, nil
}

func (s *DataValuesFlags) convertIntoNestedMap(multipleVals []*orderedmap.Map) (*orderedmap.Map, error) {
	result := orderedmap.NewMap()
	for _, vals := range multipleVals {
		err := vals.IterateErr(func(key, val interface{}) error {
			keyPieces := strings.Split(key.(string), ".")
			currMap := result
			for _, keyPiece := range keyPieces[:len(keyPieces)-1] {
				subMap, found := currMap.Get(keyPiece)
				if found {
					if typedSubMap, ok := subMap.(*orderedmap.Map); ok {
						currMap = typedSubMap
					} else {
						return fmt.Errorf("Expected key '%s' to not conflict with other data values at piece '%s'", key, keyPiece)
					}
				} else {
					newCurrMap := orderedmap.NewMap()
					currMap.Set(keyPiece, newCurrMap)
					currMap = newCurrMap
				}
			}
			currMap.Set(keyPieces[len(keyPieces)-1], val)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
