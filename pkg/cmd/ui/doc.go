// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package ui provides a thin abstraction over user output (typically, a
tty device). Engine warnings such as untrusted-template notices and
deprecation messages are routed through it.
*/
package ui
