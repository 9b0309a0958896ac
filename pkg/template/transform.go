// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"reflect"

	"templar.dev/templar/pkg/datatag"
	"templar.dev/templar/pkg/marker"
)

// TransformChainLimit bounds how many times transforms may rewrite a
// single value before the chain is declared cyclic.
const TransformChainLimit = 10

// TransformFunc rewrites a value of its registered type into another
// value. The result is fed back through the table until no transform
// applies.
type TransformFunc func(e *Engine, value interface{}) (interface{}, error)

// TransformTable dispatches transforms by concrete value type.
// Registration conflicts fail fast.
type TransformTable struct {
	transforms map[reflect.Type]TransformFunc
}

func NewTransformTable() *TransformTable {
	return &TransformTable{transforms: map[reflect.Type]TransformFunc{}}
}

// Register binds a transform to sample's concrete type.
func (t *TransformTable) Register(sample interface{}, f TransformFunc) error {
	typ := reflect.TypeOf(sample)
	if typ == nil {
		return fmt.Errorf("Expected transform sample to not be nil")
	}
	if _, found := t.transforms[typ]; found {
		return fmt.Errorf("Expected transform for %s to not be registered more than once", typ)
	}
	t.transforms[typ] = f
	return nil
}

func (t *TransformTable) lookup(value interface{}) (TransformFunc, bool) {
	if value == nil {
		return nil, false
	}
	f, found := t.transforms[reflect.TypeOf(value)]
	return f, found
}

// transformValue applies registered transforms until the value's type
// has no transform, erroring out past TransformChainLimit.
func (e *Engine) transformValue(value interface{}) (interface{}, error) {
	for i := 0; ; i++ {
		f, found := e.transforms.lookup(value)
		if !found {
			return value, nil
		}
		if i >= TransformChainLimit {
			return nil, TransformLimitError{Value: value}
		}

		next, err := f(e, value)
		if err != nil {
			return nil, err
		}
		value = next
	}
}

// EncryptedString is ciphertext awaiting decryption. The built-in
// transform turns it into the tagged plaintext, or a VaultFailure
// marker when no decrypter is available or decryption fails.
type EncryptedString struct {
	Ciphertext string
}

// Decrypter provides plaintext for ciphertext. Decryption itself is
// out of scope for the engine; callers plug one in.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

func registerBuiltinTransforms(table *TransformTable) error {
	return table.Register(EncryptedString{}, func(e *Engine, value interface{}) (interface{}, error) {
		enc := value.(EncryptedString)
		if e.decrypter == nil {
			return marker.VaultFailure{Ciphertext: enc.Ciphertext, Err: fmt.Errorf("no decrypter configured")}, nil
		}

		plaintext, err := e.decrypter.Decrypt(enc.Ciphertext)
		if err != nil {
			return marker.VaultFailure{Ciphertext: enc.Ciphertext, Err: err}, nil
		}
		return datatag.WithTag(plaintext, datatag.VaultedValue{Ciphertext: enc.Ciphertext, Plaintext: plaintext})
	})
}
