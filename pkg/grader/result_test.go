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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestResultCounting(t *testing.T) {
	res := TestResult{
		Name:      "t",
		NumPassed: 2,
		NumTotal:  3,
	}
	assert.Equal(t, 1, res.NumFailed())
	assert.False(t, res.Passed())

	res.NumPassed = 3
	assert.True(t, res.Passed())
}

func TestErroredTestFailsRegardlessOfRequirements(t *testing.T) {
	res := TestResult{
		Name:      "t",
		NumPassed: 3,
		NumTotal:  3,
		Err:       errors.New("program construction failed"),
	}
	assert.False(t, res.Passed())
}

func TestAssignmentAggregation(t *testing.T) {
	res := AssignmentResult{
		Name: "hw1",
		TestResults: []TestResult{
			{Name: "a", NumPassed: 2, NumTotal: 2, Weight: 1},
			{Name: "b", NumPassed: 1, NumTotal: 3, Weight: 1},
			{Name: "c", NumPassed: 1, NumTotal: 1, Weight: 2},
		},
	}

	assert.False(t, res.AllPassed())
	assert.Equal(t, 2, res.NumTestsPassed())
	assert.Equal(t, 1, res.NumTestsFailed())
	assert.Equal(t, 4, res.NumRequirementsPassed())
	assert.Equal(t, 2, res.NumRequirementsFailed())
	// Weighted: passing weight 1+2 of total 4.
	assert.InDelta(t, 0.75, res.WeightedScore(), 1e-9)
}

func TestWeightedScoreEmptyAssignment(t *testing.T) {
	assert.Zero(t, AssignmentResult{}.WeightedScore())
}

func TestClassResultNumFailed(t *testing.T) {
	class := ClassResult{
		Results: []StudentResult{
			{Result: AssignmentResult{TestResults: []TestResult{{NumPassed: 1, NumTotal: 1}}}},
			{Err: errors.New("no submission")},
			{Result: AssignmentResult{TestResults: []TestResult{{NumPassed: 0, NumTotal: 1}}}},
		},
	}
	assert.Equal(t, 2, class.NumFailed())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := r.Add(NewAssignment("hw1", "*hw1*"))
	a.AddTest("first", func(*Context) error { return nil })
	a.AddWeightedTest("second", 3, func(*Context) error { return nil })

	found, ok := r.Find("hw1")
	assert.True(t, ok)
	assert.Equal(t, a, found)
	assert.Equal(t, []string{"hw1"}, r.Names())

	_, ok = r.Find("hw2")
	assert.False(t, ok)

	tests := a.Tests()
	assert.Len(t, tests, 2)
	assert.Equal(t, 1, tests[0].Weight)
	assert.Equal(t, 3, tests[1].Weight)
}

func TestContextRequireAccumulates(t *testing.T) {
	var seen []RequirementResult
	test := &Test{Name: "demo", Weight: 1}
	ctx := NewContext(test, nil, func(r RequirementResult) {
		seen = append(seen, r)
	})

	assert.True(t, ctx.Require(true, "first"))
	assert.False(t, ctx.Require(false, "second"))
	ctx.RequireDebug(true, "third", "observed 42")

	res := ctx.Finalize()
	assert.Equal(t, "demo", res.Name)
	assert.Equal(t, 2, res.NumPassed)
	assert.Equal(t, 3, res.NumTotal)
	assert.Len(t, seen, 3)
	assert.Equal(t, "observed 42", res.Requirements[2].Debug)

	// Finalize is idempotent.
	again := ctx.Finalize()
	assert.Equal(t, res.NumPassed, again.NumPassed)
	assert.Equal(t, res.NumTotal, again.NumTotal)
}
