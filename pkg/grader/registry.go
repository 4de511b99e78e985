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

// TestFunc is the body of one test case. A returned error is recorded as
// a test-level failure; requirement failures are recorded through the
// context instead.
type TestFunc func(*Context) error

// Test describes one registered test case.
type Test struct {
	Name string

	// Weight is the integer multiplier applied by the aggregation layer.
	Weight int

	Fn TestFunc
}

// Assignment is a named set of tests graded against one executable.
type Assignment struct {
	name string

	// execPattern is the filename pattern used to locate student
	// submissions for this assignment.
	execPattern string

	tests []*Test
}

// NewAssignment returns an empty assignment.
func NewAssignment(name, execPattern string) *Assignment {
	return &Assignment{name: name, execPattern: execPattern}
}

// Name returns the assignment name.
func (a *Assignment) Name() string {
	return a.name
}

// ExecPattern returns the submission filename pattern.
func (a *Assignment) ExecPattern() string {
	return a.execPattern
}

// Tests returns the registered tests in registration order.
func (a *Assignment) Tests() []*Test {
	return a.tests
}

// AddTest registers a test with the default weight of 1.
func (a *Assignment) AddTest(name string, fn TestFunc) *Test {
	return a.AddWeightedTest(name, 1, fn)
}

// AddWeightedTest registers a test with an explicit weight.
func (a *Assignment) AddWeightedTest(name string, weight int, fn TestFunc) *Test {
	t := &Test{Name: name, Weight: weight, Fn: fn}
	a.tests = append(a.tests, t)
	return t
}

// Registry is an explicit builder for the assignments a grader binary can
// run. It is owned by main and passed into the runner; there is no global
// auto-registration.
type Registry struct {
	assignments []*Assignment
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers an assignment and returns it for chaining.
func (r *Registry) Add(a *Assignment) *Assignment {
	r.assignments = append(r.assignments, a)
	return a
}

// Assignments returns all registered assignments.
func (r *Registry) Assignments() []*Assignment {
	return r.assignments
}

// Find returns the assignment with the given name.
func (r *Registry) Find(name string) (*Assignment, bool) {
	for _, a := range r.assignments {
		if a.name == name {
			return a, true
		}
	}
	return nil, false
}

// Names lists the registered assignment names.
func (r *Registry) Names() []string {
	out := make([]string, len(r.assignments))
	for i, a := range r.assignments {
		out[i] = a.name
	}
	return out
}
