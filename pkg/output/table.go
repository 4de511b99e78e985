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
	"fmt"
	"io"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
)

// StudentRow is one line of the class summary table.
type StudentRow struct {
	FirstName   string
	LastName    string
	Submission  string
	TestsPassed int
	TestsTotal  int
	Score       float64
	Err         error
}

// RenderClassTable writes the professor-mode summary table.
func RenderClassTable(w io.Writer, rows []StudentRow) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Student", "Submission", "Tests", "Score"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, r := range rows {
		name := fmt.Sprintf("%s, %s", r.LastName, r.FirstName)

		submission := "<none>"
		if r.Submission != "" {
			submission = filepath.Base(r.Submission)
		}

		tests, score := "-", "-"
		if r.Err == nil {
			tests = fmt.Sprintf("%d/%d", r.TestsPassed, r.TestsTotal)
			score = fmt.Sprintf("%.1f%%", r.Score*100)
		}

		table.Append([]string{name, submission, tests, score})
	}

	table.Render()
}
