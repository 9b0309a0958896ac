// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package ui

import (
	"io"
)

// UI separates rendered results (Printf) from diagnostics (Warnf,
// Debugf) so callers can capture or redirect either independently.
type UI interface {
	Printf(str string, args ...interface{})
	Warnf(str string, args ...interface{})
	Debugf(str string, args ...interface{})
	DebugWriter() io.Writer
}
