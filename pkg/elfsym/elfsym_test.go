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

package elfsym

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureTable() *Table {
	return FromSymbols([]Symbol{
		{Name: "_start", Address: 0x401000, Kind: Static, Binding: Global},
		{Name: "sum", Address: 0x401020, Kind: Static, Binding: Global},
		{Name: "strHello", Address: 0x402000, Kind: Static, Binding: Local},
		{Name: "", Address: 0x400000, Kind: Static, Binding: Local},
		{Name: "printf", Address: 0x500000, Kind: Dynamic, Binding: Global},
	})
}

func TestTableRetainsOnlyNamedStatic(t *testing.T) {
	table := fixtureTable()
	assert.Equal(t, 3, table.Len())

	_, ok := table.Find("printf")
	assert.False(t, ok, "dynamic symbols are not resolvable")
	_, ok = table.Find("")
	assert.False(t, ok, "unnamed symbols are dropped")
}

func TestFind(t *testing.T) {
	table := fixtureTable()

	sym, ok := table.Find("sum")
	require.True(t, ok)
	assert.Equal(t, uint64(0x401020), sym.Address)
	assert.Equal(t, Global, sym.Binding)

	_, ok = table.Find("abc123_nonexistent")
	assert.False(t, ok)
}

func TestFindClosestBelow(t *testing.T) {
	table := fixtureTable()

	hello, ok := table.Find("strHello")
	require.True(t, ok)

	// The nearest symbol strictly below the data symbol is the last
	// function before it.
	below, ok := table.FindClosestBelow(hello.Address)
	require.True(t, ok)
	assert.Equal(t, "sum", below.Name)

	below, ok = table.FindClosestBelow(0x401010)
	require.True(t, ok)
	assert.Equal(t, "_start", below.Name)

	_, ok = table.FindClosestBelow(0x1000)
	assert.False(t, ok)
}

func TestLoadRejectsNonELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("just some text, definitely not ELF"), 0o644))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrNotELF)
}

func TestLoadRejectsTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny")
	require.NoError(t, os.WriteFile(path, []byte{0x7F}, 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestLoadSelf(t *testing.T) {
	// The test binary itself is a valid ELF on the platforms the harness
	// supports.
	exe, err := os.Executable()
	require.NoError(t, err)

	table, err := Load(exe)
	require.NoError(t, err)
	assert.NotNil(t, table)
}
