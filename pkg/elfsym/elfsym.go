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

// Package elfsym parses a student ELF executable and produces a
// name-indexed symbol table with address and binding information.
package elfsym

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Kind tags which section a symbol came from.
type Kind int

const (
	// Static symbols come from SHT_SYMTAB.
	Static Kind = iota
	// Dynamic symbols come from SHT_DYNSYM.
	Dynamic
)

// Binding mirrors the ELF symbol binding of a table entry.
type Binding int

const (
	// Local binding (STB_LOCAL).
	Local Binding = iota
	// Global binding (STB_GLOBAL).
	Global
	// Weak binding (STB_WEAK).
	Weak
	// Other covers any remaining binding value.
	Other
)

// Symbol is one entry of a parsed symbol table. Immutable after parse.
type Symbol struct {
	Name    string
	Address uint64
	Kind    Kind
	Binding Binding
}

// Table is a symbol table loaded from one ELF executable. Lookups are a
// linear scan; student ELFs carry hundreds of symbols at most.
type Table struct {
	symbols []Symbol
}

var elfMagic = []byte{0x7F, 'E', 'L', 'F'}

// ErrNotELF is reported when the target file does not begin with the ELF
// magic bytes.
var ErrNotELF = errors.New("file is not an ELF executable")

// checkMagic refuses files whose first four bytes do not match \x7F E L F,
// before handing the file to the parser proper.
func checkMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var head [4]byte
	if _, err := f.Read(head[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrNotELF, err)
	}
	if !bytes.Equal(head[:], elfMagic) {
		return fmt.Errorf("%w: first bytes are % X", ErrNotELF, head)
	}
	return nil
}

// Load parses path and returns its symbol table. Only x86-64 and aarch64
// Linux ELFs are supported. The table retains only named static symbols;
// dynamic entries are parsed but dropped, matching the resolution scope of
// the harness.
func Load(path string) (*Table, error) {
	if err := checkMagic(path); err != nil {
		return nil, err
	}

	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parsing ELF %q: %w", path, err)
	}
	defer f.Close()

	if f.Machine != elf.EM_X86_64 && f.Machine != elf.EM_AARCH64 {
		return nil, fmt.Errorf("unsupported ELF machine %v", f.Machine)
	}

	all, err := readSymbols(f)
	if err != nil {
		return nil, err
	}

	t := &Table{}
	for _, sym := range all {
		if sym.Kind == Static && sym.Name != "" {
			t.symbols = append(t.symbols, sym)
		}
	}

	logrus.WithField("path", path).Debugf("loaded %d static symbols (%d total)", len(t.symbols), len(all))
	return t, nil
}

// readSymbols walks both symbol sections, tagging entries by origin.
// A missing section is not an error; a stripped student binary simply
// yields an empty table.
func readSymbols(f *elf.File) ([]Symbol, error) {
	var out []Symbol

	static, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("reading symtab: %w", err)
	}
	for _, s := range static {
		out = append(out, fromELF(s, Static))
	}

	dynamic, err := f.DynamicSymbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("reading dynsym: %w", err)
	}
	for _, s := range dynamic {
		out = append(out, fromELF(s, Dynamic))
	}

	if len(out) == 0 {
		logrus.Debug("no symtab or dynsym entries in ELF file")
	}

	return out, nil
}

func fromELF(s elf.Symbol, kind Kind) Symbol {
	sym := Symbol{
		Name:    s.Name,
		Address: s.Value,
		Kind:    kind,
	}
	switch elf.ST_BIND(s.Info) {
	case elf.STB_LOCAL:
		sym.Binding = Local
	case elf.STB_GLOBAL:
		sym.Binding = Global
	case elf.STB_WEAK:
		sym.Binding = Weak
	default:
		sym.Binding = Other
	}
	return sym
}

// FromSymbols builds a table directly from parsed symbols. Used by tests
// and by callers that synthesize tables.
func FromSymbols(symbols []Symbol) *Table {
	t := &Table{}
	for _, sym := range symbols {
		if sym.Kind == Static && sym.Name != "" {
			t.symbols = append(t.symbols, sym)
		}
	}
	return t
}

// Len returns the number of retained symbols.
func (t *Table) Len() int {
	return len(t.symbols)
}

// Symbols returns the retained symbols in parse order.
func (t *Table) Symbols() []Symbol {
	return t.symbols
}

// Find returns the symbol with the given name, if present.
func (t *Table) Find(name string) (Symbol, bool) {
	for _, sym := range t.symbols {
		if sym.Name == name {
			return sym, true
		}
	}
	return Symbol{}, false
}

// FindClosestBelow returns the symbol with the greatest address strictly
// below addr. Useful for diagnostics such as "segfault at putstring+0x42".
func (t *Table) FindClosestBelow(addr uint64) (Symbol, bool) {
	var best Symbol
	found := false
	for _, sym := range t.symbols {
		if sym.Address >= addr {
			continue
		}
		if !found || sym.Address > best.Address {
			best = sym
			found = true
		}
	}
	return best, found
}
