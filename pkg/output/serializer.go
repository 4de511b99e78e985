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

// Package output renders grading results as text at a configured
// verbosity.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Verbosity levels. Each lower level strictly hides output that a higher
// level emits; Silent emits nothing but the process exit code.
type Verbosity int

const (
	// Silent emits nothing.
	Silent Verbosity = iota
	// Quiet emits only failures and the final tally.
	Quiet
	// Summary adds per-test summary lines.
	Summary
	// All adds every requirement outcome.
	All
	// Extra adds debug context to each requirement.
	Extra
)

// String implements fmt.Stringer.
func (v Verbosity) String() string {
	switch v {
	case Silent:
		return "silent"
	case Quiet:
		return "quiet"
	case Summary:
		return "summary"
	case All:
		return "all"
	case Extra:
		return "extra"
	default:
		return fmt.Sprintf("Verbosity(%d)", int(v))
	}
}

// ParseVerbosity maps a config string to a Verbosity.
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(s) {
	case "silent":
		return Silent, nil
	case "quiet":
		return Quiet, nil
	case "summary":
		return Summary, nil
	case "all":
		return All, nil
	case "extra":
		return Extra, nil
	default:
		return Silent, fmt.Errorf("unknown verbosity %q", s)
	}
}

// Serializer renders grading results as they are produced.
type Serializer interface {
	BeginTest(name string)
	Requirement(res RequirementView)
	TestDone(res TestView)
	AssignmentDone(res AssignmentView)
	StudentDone(name string, res AssignmentView, err error)
}

// RequirementView is the output-facing slice of a requirement result.
type RequirementView struct {
	Passed  bool
	Message string
	Debug   string
}

// TestView is the output-facing slice of a test result.
type TestView struct {
	Name      string
	NumPassed int
	NumTotal  int
	Weight    int
	Err       error
}

// Passed mirrors the grading-side definition: an errored test failed.
func (t TestView) Passed() bool {
	return t.Err == nil && t.NumPassed == t.NumTotal
}

// AssignmentView is the output-facing slice of an assignment result.
type AssignmentView struct {
	Name        string
	TestsPassed int
	TestsTotal  int
	ReqsPassed  int
	ReqsTotal   int
	Score       float64
}

// Plaintext renders results as indented text.
type Plaintext struct {
	w         io.Writer
	verbosity Verbosity
}

// NewPlaintext returns a plaintext serializer writing to w.
func NewPlaintext(w io.Writer, verbosity Verbosity) *Plaintext {
	return &Plaintext{w: w, verbosity: verbosity}
}

// BeginTest implements Serializer.
func (p *Plaintext) BeginTest(name string) {
	if p.verbosity >= Summary {
		fmt.Fprintf(p.w, "=== %s\n", name)
	}
}

// Requirement implements Serializer.
func (p *Plaintext) Requirement(res RequirementView) {
	show := p.verbosity >= All || (!res.Passed && p.verbosity >= Quiet)
	if !show {
		return
	}

	status := "PASS"
	if !res.Passed {
		status = "FAIL"
	}
	fmt.Fprintf(p.w, "  [%s] %s\n", status, res.Message)

	if p.verbosity >= Extra && res.Debug != "" {
		fmt.Fprintf(p.w, "        %s\n", res.Debug)
	}
}

// TestDone implements Serializer.
func (p *Plaintext) TestDone(res TestView) {
	if res.Err != nil && p.verbosity >= Quiet {
		fmt.Fprintf(p.w, "  test %q errored: %v\n", res.Name, res.Err)
	}
	if p.verbosity >= Summary {
		fmt.Fprintf(p.w, "--- %s: %d/%d requirements (weight %d)\n",
			res.Name, res.NumPassed, res.NumTotal, res.Weight)
	}
}

// AssignmentDone implements Serializer.
func (p *Plaintext) AssignmentDone(res AssignmentView) {
	if p.verbosity < Quiet {
		return
	}
	fmt.Fprintf(p.w, "%s: %d/%d tests, %d/%d requirements, score %.1f%%\n",
		res.Name, res.TestsPassed, res.TestsTotal,
		res.ReqsPassed, res.ReqsTotal, res.Score*100)
}

// StudentDone implements Serializer.
func (p *Plaintext) StudentDone(name string, res AssignmentView, err error) {
	if p.verbosity < Quiet {
		return
	}
	if err != nil {
		fmt.Fprintf(p.w, "%s: not graded (%v)\n", name, err)
		return
	}
	fmt.Fprintf(p.w, "%s: %d/%d tests, score %.1f%%\n",
		name, res.TestsPassed, res.TestsTotal, res.Score*100)
}
