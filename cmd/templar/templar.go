// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	uierrs "github.com/cppforlife/go-cli-ui/errors"

	"templar.dev/templar/pkg/cmd"
)

func main() {
	command := cmd.NewDefaultTemplarCmd()

	err := command.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "templar: Error: %s\n", uierrs.NewMultiLineError(err))
		os.Exit(1)
	}
}
