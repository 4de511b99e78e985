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

// Package cmd implements the asmgrader subcommands.
package cmd

import (
	"github.com/asmgrader/asmgrader/pkg/grader"
	"github.com/asmgrader/asmgrader/pkg/output"
)

// assignmentView converts a grading result into its output-facing form.
func assignmentView(res grader.AssignmentResult) output.AssignmentView {
	return output.AssignmentView{
		Name:        res.Name,
		TestsPassed: res.NumTestsPassed(),
		TestsTotal:  len(res.TestResults),
		ReqsPassed:  res.NumRequirementsPassed(),
		ReqsTotal:   res.NumRequirementsPassed() + res.NumRequirementsFailed(),
		Score:       res.WeightedScore(),
	}
}

// reportAssignment streams an assignment result through the serializer.
func reportAssignment(ser output.Serializer, res grader.AssignmentResult) {
	for _, t := range res.TestResults {
		ser.TestDone(output.TestView{
			Name:      t.Name,
			NumPassed: t.NumPassed,
			NumTotal:  t.NumTotal,
			Weight:    t.Weight,
			Err:       t.Err,
		})
	}
	ser.AssignmentDone(assignmentView(res))
}
