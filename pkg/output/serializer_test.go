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

package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerbosity(t *testing.T) {
	for name, want := range map[string]Verbosity{
		"silent":  Silent,
		"quiet":   Quiet,
		"summary": Summary,
		"all":     All,
		"Extra":   Extra,
	} {
		got, err := ParseVerbosity(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseVerbosity("chatty")
	assert.Error(t, err)
}

func TestVerbosityOrdering(t *testing.T) {
	assert.True(t, Silent < Quiet)
	assert.True(t, Quiet < Summary)
	assert.True(t, Summary < All)
	assert.True(t, All < Extra)
}

// emit runs a fixed result stream through a serializer at the given
// verbosity and returns everything written.
func emit(v Verbosity) string {
	var buf bytes.Buffer
	p := NewPlaintext(&buf, v)

	p.BeginTest("demo")
	p.Requirement(RequirementView{Passed: true, Message: "works", Debug: "observed 3"})
	p.Requirement(RequirementView{Passed: false, Message: "broken", Debug: "observed 4"})
	p.TestDone(TestView{Name: "demo", NumPassed: 1, NumTotal: 2, Weight: 1})
	p.TestDone(TestView{Name: "errored", Err: errors.New("boom"), Weight: 1})
	p.AssignmentDone(AssignmentView{Name: "hw1", TestsPassed: 0, TestsTotal: 2, ReqsPassed: 1, ReqsTotal: 2, Score: 0})
	p.StudentDone("Doe, Jane", AssignmentView{Name: "hw1"}, nil)
	return buf.String()
}

func TestSilentEmitsNothing(t *testing.T) {
	assert.Empty(t, emit(Silent))
}

func TestQuietShowsOnlyFailures(t *testing.T) {
	out := emit(Quiet)
	assert.Contains(t, out, "broken")
	assert.NotContains(t, out, "works")
	assert.Contains(t, out, "errored")
}

func TestAllShowsEveryRequirement(t *testing.T) {
	out := emit(All)
	assert.Contains(t, out, "works")
	assert.Contains(t, out, "broken")
	assert.NotContains(t, out, "observed 3", "debug context is Extra-only")
}

func TestExtraShowsDebugContext(t *testing.T) {
	out := emit(Extra)
	assert.Contains(t, out, "observed 3")
	assert.Contains(t, out, "observed 4")
}

func TestLowerLevelsAreStrictSubsets(t *testing.T) {
	// Every line emitted at a lower level must also appear at the next
	// higher level.
	levels := []Verbosity{Silent, Quiet, Summary, All, Extra}
	for i := 0; i < len(levels)-1; i++ {
		lower, higher := emit(levels[i]), emit(levels[i+1])
		for _, line := range bytes.Split([]byte(lower), []byte("\n")) {
			if len(line) == 0 {
				continue
			}
			assert.Contains(t, higher, string(line),
				"level %v emits a line hidden at %v", levels[i], levels[i+1])
		}
	}
}

func TestRenderClassTable(t *testing.T) {
	var buf bytes.Buffer
	RenderClassTable(&buf, []StudentRow{
		{FirstName: "Jane", LastName: "Doe", Submission: "/tmp/doe_hw1", TestsPassed: 2, TestsTotal: 3, Score: 2.0 / 3.0},
		{FirstName: "John", LastName: "Smith", Err: errors.New("no submission")},
	})

	out := buf.String()
	assert.Contains(t, out, "Doe, Jane")
	assert.Contains(t, out, "doe_hw1")
	assert.Contains(t, out, "2/3")
	assert.Contains(t, out, "66.7%")
	assert.Contains(t, out, "Smith, John")
	assert.Contains(t, out, "<none>")
}
