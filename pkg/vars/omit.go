// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package vars

// omitType is the type of the Omit sentinel. A value that resolves to
// Omit is dropped from its containing mapping or sequence during
// finalization; a top-level omit is an error at the use site.
type omitType struct{}

// Omit is the sentinel value for "leave this entry out".
var Omit interface{} = omitType{}

func (omitType) String() string { return "omit" }

// IsOmit reports whether a value is the omit sentinel.
func IsOmit(value interface{}) bool {
	_, ok := value.(omitType)
	return ok
}
