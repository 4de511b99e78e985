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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/asmgrader/asmgrader/pkg/elfsym"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// Symbols implements subcommands.Command for the "symbols" command: dump
// the static symbol table the harness would resolve against.
type Symbols struct{}

// NewSymbols returns a Symbols command.
func NewSymbols() *Symbols {
	return &Symbols{}
}

// Name implements subcommands.Command.Name.
func (*Symbols) Name() string {
	return "symbols"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Symbols) Synopsis() string {
	return "list the static symbols of a student executable"
}

// Usage implements subcommands.Command.Usage.
func (*Symbols) Usage() string {
	return `symbols <executable> - list resolvable symbols.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Symbols) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Symbols) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	table, err := elfsym.Load(f.Arg(0))
	if err != nil {
		logrus.Errorf("%v", err)
		return subcommands.ExitFailure
	}

	for _, sym := range table.Symbols() {
		binding := "local"
		switch sym.Binding {
		case elfsym.Global:
			binding = "global"
		case elfsym.Weak:
			binding = "weak"
		case elfsym.Other:
			binding = "other"
		}
		fmt.Fprintf(os.Stdout, "%#016x %-6s %s\n", sym.Address, binding, sym.Name)
	}

	return subcommands.ExitSuccess
}
