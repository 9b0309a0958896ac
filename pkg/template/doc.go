// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

// Package template implements the trusted-template engine: the trust
// boundary gating compilation, lazy containers, the per-type
// transform loop, finalization, and conditional evaluation.
package template
