// Copyright 2026 The asmgrader Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux
// +build linux

package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/asmgrader/asmgrader/pkg/config"
	"github.com/asmgrader/asmgrader/pkg/grader"
	"github.com/asmgrader/asmgrader/pkg/output"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// Grade implements subcommands.Command for the "grade" command: student
// mode, one executable against one assignment.
type Grade struct {
	registry *grader.Registry
	file     string
}

// NewGrade returns a Grade command over registry.
func NewGrade(registry *grader.Registry) *Grade {
	return &Grade{registry: registry}
}

// Name implements subcommands.Command.Name.
func (*Grade) Name() string {
	return "grade"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Grade) Synopsis() string {
	return "run one assignment's tests against a student executable"
}

// Usage implements subcommands.Command.Usage.
func (g *Grade) Usage() string {
	return fmt.Sprintf(`grade [flags] <assignment> - grade a student executable.
Registered assignments: %v
`, g.registry.Names())
}

// SetFlags implements subcommands.Command.SetFlags.
func (g *Grade) SetFlags(f *flag.FlagSet) {
	f.StringVar(&g.file, "f", "", "executable to run tests on")
}

// Execute implements subcommands.Command.Execute.
func (g *Grade) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	assignment, ok := g.registry.Find(f.Arg(0))
	if !ok {
		logrus.Errorf("unknown assignment %q, registered: %v", f.Arg(0), g.registry.Names())
		return subcommands.ExitUsageError
	}

	if g.file == "" {
		logrus.Error("an executable must be provided with -f")
		return subcommands.ExitUsageError
	}
	if _, err := os.Stat(g.file); err != nil {
		logrus.Errorf("executable %q: %v", g.file, err)
		return subcommands.ExitFailure
	}

	verbosity, err := conf.ParseVerbosity()
	if err != nil {
		logrus.Errorf("%v", err)
		return subcommands.ExitUsageError
	}
	ser := output.NewPlaintext(os.Stdout, verbosity)

	runner := grader.NewRunner(assignment, g.file, func(res grader.RequirementResult) {
		ser.Requirement(output.RequirementView{
			Passed:  res.Passed,
			Message: res.Message,
			Debug:   res.Debug,
		})
	})

	result := runner.RunAll()
	reportAssignment(ser, result)

	// In silent mode the exit code carries the failing-test count.
	if verbosity == output.Silent {
		return subcommands.ExitStatus(result.NumTestsFailed())
	}
	return subcommands.ExitSuccess
}
