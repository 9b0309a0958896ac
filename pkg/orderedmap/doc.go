// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

// Package orderedmap provides a map that maintains insertion order.
package orderedmap
