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

// RequirementResult is one assertion made by a test.
type RequirementResult struct {
	Passed  bool
	Message string

	// Debug carries optional context for Extra verbosity, such as the
	// call site or the observed value.
	Debug string
}

// TestResult aggregates the requirements of one test run. A test with a
// non-nil Err counts as failed regardless of its requirements.
type TestResult struct {
	Name         string
	Requirements []RequirementResult
	NumPassed    int
	NumTotal     int
	Weight       int
	Err          error
}

// Passed reports whether the test succeeded: no error and no failing
// requirement.
func (r TestResult) Passed() bool {
	return r.Err == nil && r.NumFailed() == 0
}

// NumFailed returns the count of failing requirements.
func (r TestResult) NumFailed() int {
	return r.NumTotal - r.NumPassed
}

// AssignmentResult aggregates the test results of one assignment run.
type AssignmentResult struct {
	Name        string
	TestResults []TestResult
}

// AllPassed reports whether every test passed.
func (r AssignmentResult) AllPassed() bool {
	for _, t := range r.TestResults {
		if !t.Passed() {
			return false
		}
	}
	return true
}

// NumTestsPassed returns the count of passing tests.
func (r AssignmentResult) NumTestsPassed() int {
	n := 0
	for _, t := range r.TestResults {
		if t.Passed() {
			n++
		}
	}
	return n
}

// NumTestsFailed returns the count of failing tests.
func (r AssignmentResult) NumTestsFailed() int {
	return len(r.TestResults) - r.NumTestsPassed()
}

// NumRequirementsPassed sums passing requirements over all tests.
func (r AssignmentResult) NumRequirementsPassed() int {
	n := 0
	for _, t := range r.TestResults {
		n += t.NumPassed
	}
	return n
}

// NumRequirementsFailed sums failing requirements over all tests.
func (r AssignmentResult) NumRequirementsFailed() int {
	n := 0
	for _, t := range r.TestResults {
		n += t.NumFailed()
	}
	return n
}

// WeightedScore returns the weight-adjusted pass ratio in [0, 1]. Tests
// carry an integer weight multiplier (default 1).
func (r AssignmentResult) WeightedScore() float64 {
	total, passed := 0, 0
	for _, t := range r.TestResults {
		total += t.Weight
		if t.Passed() {
			passed += t.Weight
		}
	}
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total)
}

// StudentInfo identifies one student being graded.
type StudentInfo struct {
	FirstName string
	LastName  string

	// NamesKnown is false when the names were inferred from a filename
	// rather than read from the database.
	NamesKnown bool

	// AssignmentPath is the located executable, empty if none matched.
	AssignmentPath string
}

// StudentResult pairs a student with their assignment outcome.
type StudentResult struct {
	Info   StudentInfo
	Result AssignmentResult

	// Err records a failure to grade at all, such as a missing
	// executable.
	Err error
}

// Passed reports whether this student's run succeeded entirely.
func (r StudentResult) Passed() bool {
	return r.Err == nil && r.Result.AllPassed()
}

// ClassResult aggregates every student of a professor-mode run.
type ClassResult struct {
	Results []StudentResult
}

// NumFailed returns the count of students whose run did not fully pass.
func (r ClassResult) NumFailed() int {
	n := 0
	for _, s := range r.Results {
		if !s.Passed() {
			n++
		}
	}
	return n
}
