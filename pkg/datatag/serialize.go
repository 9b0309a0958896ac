// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package datatag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Tag serialization: each tag marshals to a JSON object carrying a
// "__type" discriminator next to the tag's own fields. Decoding
// dispatches on the discriminator through a closed registry; unknown
// type names are an error, never silently dropped.

const typeDiscriminator = "__type"

type tagDecoder func(data []byte) (Tag, error)

var tagDecoders = map[string]tagDecoder{}

// RegisterTagType adds a decoder for a tag type name. Registering the
// same name twice is a conflict and fails.
func RegisterTagType(typeName string, decode func(data []byte) (Tag, error)) error {
	if _, found := tagDecoders[typeName]; found {
		return fmt.Errorf("Expected tag type '%s' to not be registered more than once", typeName)
	}
	tagDecoders[typeName] = decode
	return nil
}

func mustRegisterTagType(typeName string, decode func(data []byte) (Tag, error)) {
	err := RegisterTagType(typeName, decode)
	if err != nil {
		panic(err.Error())
	}
}

// RegisteredTagTypes returns the known tag type names, sorted.
func RegisteredTagTypes() []string {
	var names []string
	for name := range tagDecoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	mustRegisterTagType(OriginType, func(data []byte) (Tag, error) {
		var tag Origin
		err := json.Unmarshal(data, &tag)
		return tag, err
	})
	mustRegisterTagType(TrustedAsTemplateType, func(data []byte) (Tag, error) {
		return Trusted, nil
	})
	mustRegisterTagType(DeprecatedType, func(data []byte) (Tag, error) {
		var tag Deprecated
		err := json.Unmarshal(data, &tag)
		if err != nil {
			return nil, err
		}
		return NewDeprecated(tag.Msg, tag.Version, tag.Date, tag.Deprecator)
	})
	mustRegisterTagType(VaultedValueType, func(data []byte) (Tag, error) {
		var tag VaultedValue
		err := json.Unmarshal(data, &tag)
		return tag, err
	})
}

// MarshalTag encodes a tag as a JSON object with its type
// discriminator. Only registered tag types can be marshaled.
func MarshalTag(tag Tag) ([]byte, error) {
	if _, found := tagDecoders[tag.TypeName()]; !found {
		return nil, UnknownTagTypeError{tag.TypeName()}
	}

	fieldsBytes, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(fieldsBytes, []byte("{")) {
		return nil, fmt.Errorf("Expected tag '%s' to marshal to a JSON object", tag.TypeName())
	}

	discBytes, err := json.Marshal(map[string]string{typeDiscriminator: tag.TypeName()})
	if err != nil {
		return nil, err
	}

	// splice raw bytes instead of round-tripping through a map, which
	// would coerce large ints to float64
	if bytes.Equal(bytes.TrimSpace(fieldsBytes[1:]), []byte("}")) {
		return discBytes, nil
	}
	spliced := append(discBytes[:len(discBytes)-1], ',')
	return append(spliced, fieldsBytes[1:]...), nil
}

// UnmarshalTag decodes a tag previously encoded by MarshalTag.
func UnmarshalTag(data []byte) (Tag, error) {
	var discriminated struct {
		Type string `json:"__type"`
	}
	err := json.Unmarshal(data, &discriminated)
	if err != nil {
		return nil, err
	}
	if len(discriminated.Type) == 0 {
		return nil, fmt.Errorf("Expected tag object to carry a '%s' field", typeDiscriminator)
	}

	decode, found := tagDecoders[discriminated.Type]
	if !found {
		return nil, UnknownTagTypeError{discriminated.Type}
	}
	return decode(data)
}

// MarshalTags encodes a value's tags as a JSON array.
func MarshalTags(value interface{}) ([]byte, error) {
	tags := TagsOf(value)
	encoded := make([]json.RawMessage, 0, len(tags))
	for _, tag := range tags {
		tagBytes, err := MarshalTag(tag)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, tagBytes)
	}
	return json.Marshal(encoded)
}

// UnmarshalTags decodes a JSON array of tag objects.
func UnmarshalTags(data []byte) ([]Tag, error) {
	var encoded []json.RawMessage
	err := json.Unmarshal(data, &encoded)
	if err != nil {
		return nil, err
	}
	var tags []Tag
	for _, tagBytes := range encoded {
		tag, err := UnmarshalTag(tagBytes)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// UnknownTagTypeError reports a tag type name outside the registry.
type UnknownTagTypeError struct {
	TypeName string
}

func (e UnknownTagTypeError) Error() string {
	return fmt.Sprintf("Unknown tag type '%s'", e.TypeName)
}
