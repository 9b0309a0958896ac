// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package datatag

import (
	"fmt"
	"reflect"
	"time"

	goversion "github.com/hashicorp/go-version"

	"templar.dev/templar/pkg/filepos"
)

const (
	OriginType            = "Origin"
	TrustedAsTemplateType = "TrustedAsTemplate"
	DeprecatedType        = "Deprecated"
	VaultedValueType      = "VaultedValue"
)

// Origin records where a value came from.
type Origin struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
	Col  int    `json:"col,omitempty"`
}

var _ Tag = Origin{}

func (Origin) TypeName() string { return OriginType }

func (o Origin) Position() *filepos.Position {
	switch {
	case o.Line > 0 && o.Col > 0:
		pos := filepos.NewPositionWithCol(o.Line, o.Col)
		pos.SetFile(o.Path)
		return pos
	case o.Line > 0:
		return filepos.NewPositionInFile(o.Line, o.Path)
	default:
		return filepos.NewUnknownPositionInFile(o.Path)
	}
}

func (o Origin) String() string { return o.Position().AsCompactString() }

// OriginOf returns the origin tag carried by a value.
func OriginOf(value interface{}) (Origin, bool) {
	tag, found := FindTag(value, OriginType)
	if !found {
		return Origin{}, false
	}
	return tag.(Origin), true
}

// TrustedAsTemplate marks a string as eligible for template
// compilation. It carries no payload; use the Trusted singleton.
type TrustedAsTemplate struct{}

var _ Tag = TrustedAsTemplate{}

// Trusted is the only TrustedAsTemplate instance callers should use.
var Trusted = TrustedAsTemplate{}

func (TrustedAsTemplate) TypeName() string { return TrustedAsTemplateType }

// IsTrusted reports whether a value carries the trust tag.
func IsTrusted(value interface{}) bool { return HasTag(value, TrustedAsTemplateType) }

// Deprecated marks a value whose use should be reported. Version, if
// set, is the release in which the value will be removed and must
// parse as a semantic version.
type Deprecated struct {
	Msg        string `json:"msg"`
	Version    string `json:"version,omitempty"`
	Date       string `json:"date,omitempty"`
	Deprecator string `json:"deprecator,omitempty"`
}

var _ Tag = Deprecated{}

func NewDeprecated(msg, removalVersion, removalDate, deprecator string) (Deprecated, error) {
	if len(msg) == 0 {
		return Deprecated{}, fmt.Errorf("Expected deprecation message to not be empty")
	}
	if len(removalVersion) > 0 {
		_, err := goversion.NewVersion(removalVersion)
		if err != nil {
			return Deprecated{}, fmt.Errorf("Parsing deprecation removal version '%s': %s", removalVersion, err)
		}
	}
	if len(removalDate) > 0 {
		_, err := time.Parse("2006-01-02", removalDate)
		if err != nil {
			return Deprecated{}, fmt.Errorf("Parsing deprecation removal date '%s': %s", removalDate, err)
		}
	}
	return Deprecated{msg, removalVersion, removalDate, deprecator}, nil
}

func (Deprecated) TypeName() string { return DeprecatedType }

// RemovalVersion returns the parsed removal version, if one was set.
func (d Deprecated) RemovalVersion() (*goversion.Version, bool) {
	if len(d.Version) == 0 {
		return nil, false
	}
	ver, err := goversion.NewVersion(d.Version)
	if err != nil {
		return nil, false
	}
	return ver, true
}

// VaultedValue records the ciphertext a decrypted string came from.
type VaultedValue struct {
	Ciphertext string `json:"ciphertext"`
	Plaintext  string `json:"-"`
}

var _ Tag = VaultedValue{}
var _ PropagationPolicy = VaultedValue{}

func (VaultedValue) TypeName() string { return VaultedValueType }

// TagToPropagate keeps the ciphertext association only while the
// derived value still equals the decrypted plaintext. Any transformed
// value no longer corresponds to the ciphertext.
func (v VaultedValue) TagToPropagate(src, dst interface{}) (Tag, bool) {
	if reflect.DeepEqual(NativeValue(src), NativeValue(dst)) {
		return v, true
	}
	return nil, false
}
