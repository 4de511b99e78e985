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

package grader

import (
	"fmt"

	"github.com/asmgrader/asmgrader/pkg/program"
	"github.com/sirupsen/logrus"
)

// Runner drives every test of one assignment against one executable.
// Each test gets a freshly constructed Program so that state from a
// previous test cannot leak into the next.
type Runner struct {
	assignment    *Assignment
	execPath      string
	onRequirement RequirementCallback
}

// NewRunner returns a runner for assignment against execPath.
// onRequirement may be nil.
func NewRunner(assignment *Assignment, execPath string, onRequirement RequirementCallback) *Runner {
	return &Runner{
		assignment:    assignment,
		execPath:      execPath,
		onRequirement: onRequirement,
	}
}

// RunAll runs every registered test and aggregates the results.
func (r *Runner) RunAll() AssignmentResult {
	result := AssignmentResult{Name: r.assignment.Name()}
	for _, test := range r.assignment.Tests() {
		result.TestResults = append(result.TestResults, r.runOne(test))
	}
	return result
}

// runOne runs a single test in a fresh program. A panic inside test code
// is captured as a test-level error rather than tearing down the whole
// grading session.
func (r *Runner) runOne(test *Test) (result TestResult) {
	prog, err := program.New(r.execPath, nil)
	if err != nil {
		return TestResult{
			Name:   test.Name,
			Weight: test.Weight,
			Err:    fmt.Errorf("constructing program: %w", err),
		}
	}
	defer prog.Close()

	ctx := NewContext(test, prog, r.onRequirement)

	defer func() {
		if rec := recover(); rec != nil {
			logrus.Errorf("test %q panicked: %v", test.Name, rec)
			ctx.setError(fmt.Errorf("test panicked: %v", rec))
		}
		result = ctx.Finalize()
	}()

	if err := test.Fn(ctx); err != nil {
		ctx.setError(err)
	}

	return ctx.Finalize()
}

// Locator finds the submission executable for one student, or reports
// that none matched.
type Locator interface {
	Locate(student StudentInfo) (string, error)
}

// MultiStudentRunner grades one assignment for every student of a class.
type MultiStudentRunner struct {
	assignment    *Assignment
	locator       Locator
	onRequirement RequirementCallback
}

// NewMultiStudentRunner returns a professor-mode runner.
func NewMultiStudentRunner(assignment *Assignment, locator Locator, onRequirement RequirementCallback) *MultiStudentRunner {
	return &MultiStudentRunner{
		assignment:    assignment,
		locator:       locator,
		onRequirement: onRequirement,
	}
}

// RunAllStudents locates and grades each student's submission in turn.
func (m *MultiStudentRunner) RunAllStudents(students []StudentInfo) ClassResult {
	var out ClassResult

	for _, info := range students {
		res := StudentResult{Info: info}

		path, err := m.locator.Locate(info)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"first": info.FirstName,
				"last":  info.LastName,
			}).Debugf("no submission located: %v", err)
			res.Err = err
			out.Results = append(out.Results, res)
			continue
		}
		res.Info.AssignmentPath = path

		runner := NewRunner(m.assignment, path, m.onRequirement)
		res.Result = runner.RunAll()
		out.Results = append(out.Results, res)
	}

	return out
}
