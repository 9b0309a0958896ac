// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"strings"

	"templar.dev/templar/pkg/filepos"
)

// The scanner splits template source into text, expression and
// comment segments using the delimiters in effect. Block statements
// are recognized only to be rejected; the expression language covers
// this engine's surface.

type segmentKind int

const (
	textSegment segmentKind = iota
	exprSegment
	commentSegment
)

type segment struct {
	kind segmentKind
	text string
	line int
	col  int
}

func scanTemplate(src string, overrides Overrides) ([]segment, error) {
	var segments []segment

	rest := src
	line, col := 1, 1

	advance := func(consumed string) {
		newlines := strings.Count(consumed, "\n")
		if newlines > 0 {
			line += newlines
			col = len(consumed) - strings.LastIndex(consumed, "\n")
		} else {
			col += len(consumed)
		}
	}

	for len(rest) > 0 {
		startIdx, startKind, startDelim := nextDelimiter(rest, overrides)
		if startIdx < 0 {
			segments = append(segments, segment{textSegment, rest, line, col})
			break
		}

		if startIdx > 0 {
			text := rest[:startIdx]
			segments = append(segments, segment{textSegment, text, line, col})
			advance(text)
			rest = rest[startIdx:]
		}

		segLine, segCol := line, col

		if startKind == blockDelim {
			return nil, SyntaxError{
				Msg: fmt.Sprintf("Block statements ('%s ... %s') are not supported", overrides.BlockStart, overrides.BlockEnd),
				Pos: positionAt(segLine, segCol),
			}
		}

		endDelim := overrides.VariableEnd
		kind := exprSegment
		if startKind == commentDelim {
			endDelim = overrides.CommentEnd
			kind = commentSegment
		}

		body := rest[len(startDelim):]
		endIdx := strings.Index(body, endDelim)
		if endIdx < 0 {
			return nil, SyntaxError{
				Msg: fmt.Sprintf("Expected closing '%s'", endDelim),
				Pos: positionAt(segLine, segCol),
			}
		}

		segments = append(segments, segment{kind, strings.TrimSpace(body[:endIdx]), segLine, segCol})

		consumed := rest[:len(startDelim)+endIdx+len(endDelim)]
		advance(consumed)
		rest = rest[len(consumed):]
	}

	return segments, nil
}

type delimKind int

const (
	variableDelim delimKind = iota
	blockDelim
	commentDelim
)

// nextDelimiter finds the earliest opening delimiter. Longer
// delimiters win ties so that "{{" is not shadowed by a "{"-based
// override.
func nextDelimiter(s string, overrides Overrides) (int, delimKind, string) {
	bestIdx := -1
	bestKind := variableDelim
	bestDelim := ""

	consider := func(delim string, kind delimKind) {
		idx := strings.Index(s, delim)
		if idx < 0 {
			return
		}
		if bestIdx < 0 || idx < bestIdx || (idx == bestIdx && len(delim) > len(bestDelim)) {
			bestIdx, bestKind, bestDelim = idx, kind, delim
		}
	}

	consider(overrides.VariableStart, variableDelim)
	consider(overrides.BlockStart, blockDelim)
	consider(overrides.CommentStart, commentDelim)

	return bestIdx, bestKind, bestDelim
}

func positionAt(line, col int) *filepos.Position {
	return filepos.NewPositionWithCol(line, col)
}

// containsTemplate reports whether a string holds any template
// delimiter under the engine's current overrides.
func (e *Engine) containsTemplate(s string) bool {
	overrides := e.options.Overrides
	if strings.HasPrefix(s, overridesHeaderPrefix) {
		return true
	}
	return strings.Contains(s, overrides.VariableStart) ||
		strings.Contains(s, overrides.BlockStart) ||
		strings.Contains(s, overrides.CommentStart)
}
