// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/cppforlife/cobrautil"
	"github.com/spf13/cobra"

	cmdrender "templar.dev/templar/pkg/cmd/render"
	"templar.dev/templar/pkg/version"
)

type TemplarOptions struct{}

func NewDefaultTemplarOptions() *TemplarOptions {
	return &TemplarOptions{}
}

func NewDefaultTemplarCmd() *cobra.Command {
	return NewTemplarCmd(NewDefaultTemplarOptions())
}

func NewTemplarCmd(o *TemplarOptions) *cobra.Command {
	cmd := cmdrender.NewCmd(cmdrender.NewOptions())

	cmd.Use = "templar"
	cmd.Aliases = nil
	cmd.Version = version.Version
	cmd.Short = "templar renders trusted templates against data values"
	cmd.Long = `templar renders trusted templates against data values.

Template files given via -f are evaluated as trusted templates.
Data values are plain data; strings inside them that look like
templates are only rendered when tagged as trusted by the caller.`

	// Affects children as well
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	// Disable docs header
	cmd.DisableAutoGenTag = true

	cmd.AddCommand(NewVersionCmd(NewVersionOptions()))
	cmd.AddCommand(cmdrender.NewCmd(cmdrender.NewOptions()))

	// Reconfigure Commands
	cobrautil.VisitCommands(cmd, cobrautil.ReconfigureCmdWithSubcmd,
		cobrautil.DisallowExtraArgs, cobrautil.WrapRunEForCmd(cobrautil.ResolveFlagsForCmd))

	return cmd
}
