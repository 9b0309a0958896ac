// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	cmdui "templar.dev/templar/pkg/cmd/ui"
	"templar.dev/templar/pkg/datatag"
	"templar.dev/templar/pkg/orderedmap"
	"templar.dev/templar/pkg/template"
)

// Options configures the render command. The template file is the
// trust injection point: its contents are tagged as trusted templates
// before evaluation, while data values stay untrusted.
type Options struct {
	Debug bool

	FilesSourceOpts FilesSourceOpts
	DataValuesFlags DataValuesFlags

	UntrustedTemplates string
	Expression         string
}

type FilesSourceOpts struct {
	files  []string
	output string
}

func (s *FilesSourceOpts) Set(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&s.files, "file", "f", nil, "Template file (ie local path, -) (can be specified multiple times)")
	cmd.Flags().StringVarP(&s.output, "output", "o", "", "File for output (default: stdout)")
}

func NewOptions() *Options {
	return &Options{UntrustedTemplates: template.TrustPolicyError.String()}
}

func NewCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "render",
		Aliases: []string{"r"},
		Short:   "Render template files against data values",
		RunE:    func(_ *cobra.Command, _ []string) error { return o.Run() },
	}
	cmd.Flags().BoolVar(&o.Debug, "debug", false, "Enable debug output")
	cmd.Flags().StringVar(&o.UntrustedTemplates, "untrusted-templates", template.TrustPolicyError.String(),
		"Control handling of untrusted template strings inside data values (error, warn, ignore)")
	cmd.Flags().StringVar(&o.Expression, "expression", "",
		"Evaluate a single expression instead of rendering files (implies trust)")
	o.FilesSourceOpts.Set(cmd)
	o.DataValuesFlags.Set(cmd)
	return cmd
}

func (o *Options) Run() error {
	ui := cmdui.NewTTY(o.Debug)
	return o.RunWithUI(ui)
}

func (o *Options) RunWithUI(ui cmdui.UI) error {
	policy, err := template.ParseTrustPolicy(o.UntrustedTemplates)
	if err != nil {
		return err
	}

	source, err := o.DataValuesFlags.Source()
	if err != nil {
		return err
	}

	engine, err := template.NewEngine(template.EngineOpts{
		Vars:        source,
		UI:          ui,
		TrustPolicy: policy,
	})
	if err != nil {
		return err
	}

	out, err := o.outputWriter(ui)
	if err != nil {
		return err
	}
	defer out.Close()

	if len(o.Expression) > 0 {
		if len(o.FilesSourceOpts.files) > 0 {
			return fmt.Errorf("Expected either --expression or --file, but got both")
		}
		expr := datatag.MustWithTag(o.Expression, datatag.Trusted)
		result, err := engine.EvaluateExpression(expr)
		if err != nil {
			return err
		}
		return o.write(out, result)
	}

	if len(o.FilesSourceOpts.files) == 0 {
		return fmt.Errorf("Expected at least one template file (use -f)")
	}

	for _, path := range o.FilesSourceOpts.files {
		result, err := o.renderFile(engine, path)
		if err != nil {
			return err
		}
		err = o.write(out, result)
		if err != nil {
			return err
		}
	}

	return nil
}

func (o *Options) renderFile(engine *template.Engine, path string) (interface{}, error) {
	var contents []byte
	var err error
	var name string

	if path == "-" {
		name = "stdin"
		contents, err = io.ReadAll(os.Stdin)
	} else {
		name = path
		contents, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("Reading template '%s': %s", name, err)
	}

	tpl, err := datatag.WithTag(string(contents),
		datatag.Trusted, datatag.Origin{Path: name, Line: 1})
	if err != nil {
		return nil, err
	}

	return engine.Template(tpl)
}

// outputWriter writes through the given UI unless -o names a file, so
// that callers injecting a UI capture the rendered output as well.
func (o *Options) outputWriter(ui cmdui.UI) (io.WriteCloser, error) {
	if len(o.FilesSourceOpts.output) == 0 {
		return nopCloser{uiWriter{ui}}, nil
	}
	file, err := os.Create(o.FilesSourceOpts.output)
	if err != nil {
		return nil, fmt.Errorf("Creating output file: %s", err)
	}
	return file, nil
}

func (o *Options) write(out io.Writer, result interface{}) error {
	switch typedResult := datatag.NativeValue(result).(type) {
	case string:
		_, err := io.WriteString(out, typedResult)
		if err == nil && !strings.HasSuffix(typedResult, "\n") {
			_, err = io.WriteString(out, "\n")
		}
		return err

	default:
		plain := orderedmap.Conversion{Object: typedResult}.AsUnorderedStringMaps()
		encoded, err := json.MarshalIndent(plain, "", "  ")
		if err != nil {
			return fmt.Errorf("Marshaling render result: %s", err)
		}
		_, err = fmt.Fprintf(out, "%s\n", encoded)
		return err
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

type uiWriter struct {
	ui cmdui.UI
}

func (w uiWriter) Write(data []byte) (int, error) {
	w.ui.Printf("%s", data)
	return len(data), nil
}
