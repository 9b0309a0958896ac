// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package filepos

import (
	"fmt"
	"strings"
)

// Position identifies a location in a source artifact. A position may
// be unknown (no location information), file-only, or carry a line and
// optionally a column.
type Position struct {
	file    string
	line    *int
	col     *int
	known   bool
	snippet string
}

func NewPosition(lineNum int) *Position {
	if lineNum <= 0 {
		panic(fmt.Sprintf("Invalid line number: %d (must be > 0)", lineNum))
	}
	return &Position{line: &lineNum, known: true}
}

func NewPositionWithCol(lineNum, colNum int) *Position {
	pos := NewPosition(lineNum)
	if colNum <= 0 {
		panic(fmt.Sprintf("Invalid column number: %d (must be > 0)", colNum))
	}
	pos.col = &colNum
	return pos
}

func NewPositionInFile(lineNum int, file string) *Position {
	pos := NewPosition(lineNum)
	pos.file = file
	return pos
}

// NewUnknownPosition is equivalent to zero value, but it's more
// explicit in intent.
func NewUnknownPosition() *Position {
	return &Position{}
}

func NewUnknownPositionInFile(file string) *Position {
	return &Position{file: file}
}

func (p *Position) SetFile(file string)    { p.file = file }
func (p *Position) SetSnippet(line string) { p.snippet = line }

func (p *Position) File() string { return p.file }

func (p *Position) IsKnown() bool { return p != nil && p.known }

func (p *Position) LineNum() int {
	if !p.known || p.line == nil {
		panic("Position was not properly initialized")
	}
	return *p.line
}

func (p *Position) HasCol() bool { return p.known && p.col != nil }

func (p *Position) ColNum() int {
	if !p.HasCol() {
		panic("Position has no column")
	}
	return *p.col
}

func (p *Position) DeepCopy() *Position {
	if p == nil {
		return nil
	}
	newPos := &Position{file: p.file, known: p.known, snippet: p.snippet}
	if p.line != nil {
		lineVal := *p.line
		newPos.line = &lineVal
	}
	if p.col != nil {
		colVal := *p.col
		newPos.col = &colVal
	}
	return newPos
}

// AsCompactString formats as "file:line:col", dropping trailing parts
// that are not known.
func (p *Position) AsCompactString() string {
	if p == nil {
		return "?"
	}
	var result []string
	if len(p.file) > 0 {
		result = append(result, p.file)
	}
	if p.known {
		result = append(result, fmt.Sprintf("%d", *p.line))
		if p.col != nil {
			result = append(result, fmt.Sprintf("%d", *p.col))
		}
	}
	if len(result) == 0 {
		return "?"
	}
	return strings.Join(result, ":")
}

// AsIndentedString renders the position with its source snippet, if
// one was recorded, for multi-line error output.
func (p *Position) AsIndentedString() string {
	result := p.AsCompactString()
	if len(p.snippet) > 0 {
		result += "\n    " + strings.TrimRight(p.snippet, "\n")
	}
	return result
}

func (p *Position) IsEqual(other *Position) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.known != other.known || p.file != other.file {
		return false
	}
	if p.known && *p.line != *other.line {
		return false
	}
	if (p.col == nil) != (other.col == nil) {
		return false
	}
	if p.col != nil && *p.col != *other.col {
		return false
	}
	return true
}
