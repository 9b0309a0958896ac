// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package pkg is the collection of packages that make up the implementation of templar.
*/
package pkg
