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

// Package studentdb reads the class database: newline-separated
// "last,first" rows, UTF-8, CRLF tolerated.
package studentdb

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Entry is one student row.
type Entry struct {
	FirstName string
	LastName  string
}

// Read parses the database at path. Empty lines are skipped with a
// warning; a row with anything other than exactly two fields is rejected.
func Read(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening database file: %w", err)
	}
	return Parse(string(data))
}

// Parse parses database content.
func Parse(content string) ([]Entry, error) {
	var out []Entry

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			// A trailing newline is not an empty row.
			if i != len(lines)-1 {
				logrus.Warn("skipping empty line in database file")
			}
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			return nil, fmt.Errorf("too few values in name entry %q", line)
		}
		if len(fields) > 2 {
			return nil, fmt.Errorf("too many values in name entry %q", line)
		}

		out = append(out, Entry{LastName: fields[0], FirstName: fields[1]})
	}

	return out, nil
}
