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
	"strings"

	"github.com/asmgrader/asmgrader/pkg/config"
	"github.com/asmgrader/asmgrader/pkg/filesearch"
	"github.com/asmgrader/asmgrader/pkg/grader"
	"github.com/asmgrader/asmgrader/pkg/output"
	"github.com/asmgrader/asmgrader/pkg/studentdb"
	"github.com/gofrs/flock"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// Class implements subcommands.Command for the "class" command:
// professor mode, grading every student in the database.
type Class struct {
	registry *grader.Registry
}

// NewClass returns a Class command over registry.
func NewClass(registry *grader.Registry) *Class {
	return &Class{registry: registry}
}

// Name implements subcommands.Command.Name.
func (*Class) Name() string {
	return "class"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Class) Synopsis() string {
	return "grade every student in the database against an assignment"
}

// Usage implements subcommands.Command.Usage.
func (c *Class) Usage() string {
	return fmt.Sprintf(`class <assignment> - grade all students.
Requires -database and -search-dir. Registered assignments: %v
`, c.registry.Names())
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Class) SetFlags(*flag.FlagSet) {}

// searchLocator pairs a student with their submission via the assignment
// filename pattern, substituting the student's names into it.
type searchLocator struct {
	pattern string
	baseDir string
}

// Locate implements grader.Locator.
func (l *searchLocator) Locate(info grader.StudentInfo) (string, error) {
	searcher := filesearch.New(l.pattern, map[string]string{
		"first": strings.ToLower(info.FirstName),
		"last":  strings.ToLower(info.LastName),
	})

	matches, err := searcher.Search(l.baseDir)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no submission matching %q for %s %s", l.pattern, info.FirstName, info.LastName)
	}
	if len(matches) > 1 {
		logrus.Warnf("multiple submissions for %s %s, using %q", info.FirstName, info.LastName, matches[0])
	}
	return matches[0], nil
}

// Execute implements subcommands.Command.Execute.
func (c *Class) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	assignment, ok := c.registry.Find(f.Arg(0))
	if !ok {
		logrus.Errorf("unknown assignment %q, registered: %v", f.Arg(0), c.registry.Names())
		return subcommands.ExitUsageError
	}

	if conf.Database == "" || conf.SearchDir == "" {
		logrus.Error("class mode requires -database and -search-dir")
		return subcommands.ExitUsageError
	}

	verbosity, err := conf.ParseVerbosity()
	if err != nil {
		logrus.Errorf("%v", err)
		return subcommands.ExitUsageError
	}
	ser := output.NewPlaintext(os.Stdout, verbosity)

	entries, err := studentdb.Read(conf.Database)
	if err != nil {
		logrus.Errorf("reading student database: %v", err)
		return subcommands.ExitFailure
	}

	students := make([]grader.StudentInfo, len(entries))
	for i, e := range entries {
		students[i] = grader.StudentInfo{
			FirstName:  e.FirstName,
			LastName:   e.LastName,
			NamesKnown: true,
		}
	}

	locator := &searchLocator{pattern: assignment.ExecPattern(), baseDir: conf.SearchDir}
	runner := grader.NewMultiStudentRunner(assignment, locator, func(res grader.RequirementResult) {
		ser.Requirement(output.RequirementView{
			Passed:  res.Passed,
			Message: res.Message,
			Debug:   res.Debug,
		})
	})

	class := runner.RunAllStudents(students)

	rows := make([]output.StudentRow, len(class.Results))
	for i, sr := range class.Results {
		ser.StudentDone(fmt.Sprintf("%s, %s", sr.Info.LastName, sr.Info.FirstName), assignmentView(sr.Result), sr.Err)
		rows[i] = output.StudentRow{
			FirstName:   sr.Info.FirstName,
			LastName:    sr.Info.LastName,
			Submission:  sr.Info.AssignmentPath,
			TestsPassed: sr.Result.NumTestsPassed(),
			TestsTotal:  len(sr.Result.TestResults),
			Score:       sr.Result.WeightedScore(),
			Err:         sr.Err,
		}
	}

	if verbosity >= output.Summary {
		output.RenderClassTable(os.Stdout, rows)
	}

	if conf.ResultsFile != "" {
		if err := writeResultsFile(conf.ResultsFile, rows); err != nil {
			logrus.Errorf("writing results file: %v", err)
			return subcommands.ExitFailure
		}
	}

	// In silent mode the exit code carries the failing-student count.
	if verbosity == output.Silent {
		return subcommands.ExitStatus(class.NumFailed())
	}
	return subcommands.ExitSuccess
}

// writeResultsFile appends the class table to path under an advisory file
// lock, so graders running in parallel over disjoint sections do not
// interleave their output.
func writeResultsFile(path string, rows []output.StudentRow) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	output.RenderClassTable(f, rows)
	return nil
}
