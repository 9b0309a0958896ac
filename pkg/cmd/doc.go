// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package cmd provides the templar command line interface.
*/
package cmd
