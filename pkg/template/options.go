// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"strings"
)

// Overrides are the delimiter settings for one template. The zero
// value means "inherit"; Merge fills unset fields from defaults.
type Overrides struct {
	VariableStart string
	VariableEnd   string
	BlockStart    string
	BlockEnd      string
	CommentStart  string
	CommentEnd    string
}

func DefaultOverrides() Overrides {
	return Overrides{
		VariableStart: "{{",
		VariableEnd:   "}}",
		BlockStart:    "{%",
		BlockEnd:      "%}",
		CommentStart:  "{#",
		CommentEnd:    "#}",
	}
}

// Merge returns a copy of o with other's non-empty fields taking
// precedence. Neither receiver nor argument is modified.
func (o Overrides) Merge(other Overrides) Overrides {
	result := o
	if len(other.VariableStart) > 0 {
		result.VariableStart = other.VariableStart
	}
	if len(other.VariableEnd) > 0 {
		result.VariableEnd = other.VariableEnd
	}
	if len(other.BlockStart) > 0 {
		result.BlockStart = other.BlockStart
	}
	if len(other.BlockEnd) > 0 {
		result.BlockEnd = other.BlockEnd
	}
	if len(other.CommentStart) > 0 {
		result.CommentStart = other.CommentStart
	}
	if len(other.CommentEnd) > 0 {
		result.CommentEnd = other.CommentEnd
	}
	return result
}

func (o Overrides) cacheKey() string {
	return strings.Join([]string{
		o.VariableStart, o.VariableEnd,
		o.BlockStart, o.BlockEnd,
		o.CommentStart, o.CommentEnd,
	}, "\x1f")
}

// overridesHeaderPrefix starts an inline header line that adjusts
// delimiters for the template that follows, e.g.
//
//	#tpl: variable_start_string='[[', variable_end_string=']]'
const overridesHeaderPrefix = "#tpl:"

// ParseOverridesHeader splits an inline overrides header off the
// template source. Returns the parsed overrides (zero value when no
// header is present) and the remaining source.
func ParseOverridesHeader(src string) (Overrides, string, error) {
	if !strings.HasPrefix(src, overridesHeaderPrefix) {
		return Overrides{}, src, nil
	}

	headerLine := src
	rest := ""
	if idx := strings.Index(src, "\n"); idx >= 0 {
		headerLine = src[:idx]
		rest = src[idx+1:]
	}

	overrides := Overrides{}
	spec := strings.TrimSpace(strings.TrimPrefix(headerLine, overridesHeaderPrefix))
	if len(spec) == 0 {
		return overrides, rest, nil
	}

	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		eqIdx := strings.Index(pair, "=")
		if eqIdx < 0 {
			return Overrides{}, "", SyntaxError{Msg: fmt.Sprintf("Expected overrides header entry to be key=value, but was '%s'", pair)}
		}

		key := strings.TrimSpace(pair[:eqIdx])
		val := strings.TrimSpace(pair[eqIdx+1:])
		val = strings.Trim(val, `'"`)
		if len(val) == 0 {
			return Overrides{}, "", SyntaxError{Msg: fmt.Sprintf("Expected overrides header value for '%s' to not be empty", key)}
		}

		switch key {
		case "variable_start_string":
			overrides.VariableStart = val
		case "variable_end_string":
			overrides.VariableEnd = val
		case "block_start_string":
			overrides.BlockStart = val
		case "block_end_string":
			overrides.BlockEnd = val
		case "comment_start_string":
			overrides.CommentStart = val
		case "comment_end_string":
			overrides.CommentEnd = val
		default:
			return Overrides{}, "", SyntaxError{Msg: fmt.Sprintf("Unknown overrides header key '%s'", key)}
		}
	}

	return overrides, rest, nil
}

// TemplateOptions configure one engine's template handling.
type TemplateOptions struct {
	// PreserveTrailingNewlines keeps a template's trailing newline on
	// the rendered result.
	PreserveTrailingNewlines bool

	Overrides Overrides
}

func DefaultTemplateOptions() TemplateOptions {
	return TemplateOptions{
		PreserveTrailingNewlines: true,
		Overrides:                DefaultOverrides(),
	}
}

func (o TemplateOptions) equal(other TemplateOptions) bool {
	return o == other
}
