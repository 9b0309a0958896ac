// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package version

// Version is the current release version.
const Version = "0.1.0"
