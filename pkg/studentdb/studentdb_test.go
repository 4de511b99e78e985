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

package studentdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	entries, err := Parse("Doe,Jane\nSmith,John\n")
	require.NoError(t, err)

	want := []Entry{
		{LastName: "Doe", FirstName: "Jane"},
		{LastName: "Smith", FirstName: "John"},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseToleratesCRLF(t *testing.T) {
	entries, err := Parse("Doe,Jane\r\nSmith,John\r\n")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Jane", entries[0].FirstName)
	assert.Equal(t, "Smith", entries[1].LastName)
}

func TestParseSkipsEmptyLines(t *testing.T) {
	entries, err := Parse("Doe,Jane\n\nSmith,John\n")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestParseRejectsTooFewFields(t *testing.T) {
	_, err := Parse("JustOneName\n")
	assert.ErrorContains(t, err, "too few")
}

func TestParseRejectsTooManyFields(t *testing.T) {
	_, err := Parse("Doe,Jane,Extra\n")
	assert.ErrorContains(t, err, "too many")
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.csv")
	require.NoError(t, os.WriteFile(path, []byte("Doe,Jane\n"), 0o644))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{LastName: "Doe", FirstName: "Jane"}, entries[0])
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
