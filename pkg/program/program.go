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

// Package program composes the parsed symbol table with a traced
// subprocess and exposes the typed function-call and scratch-allocation
// interface used by tests.
package program

import (
	"fmt"
	"os"

	"github.com/asmgrader/asmgrader/pkg/elfsym"
	"github.com/asmgrader/asmgrader/pkg/errdefs"
	"github.com/asmgrader/asmgrader/pkg/subprocess"
	"github.com/asmgrader/asmgrader/pkg/tracer"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Program is one student executable under instrumentation. It exclusively
// owns its subprocess and symbol table.
type Program struct {
	path string
	args []string

	sub    *subprocess.Traced
	symtab *elfsym.Table

	// allocedMem is a bump counter into the upper portion of the scratch
	// page, used for buffers that outlive a single call. It grows down
	// from the top while per-call staging grows up from the bottom.
	allocedMem uint64
}

// New parses the ELF at path, starts it as a traced child, and returns the
// composed program.
func New(path string, args []string) (*Program, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("program file does not exist: %w", err)
	}

	symtab, err := elfsym.Load(path)
	if err != nil {
		return nil, err
	}

	p := &Program{
		path:   path,
		args:   args,
		sub:    subprocess.NewTraced(path, args),
		symtab: symtab,
	}

	if err := p.sub.Start(); err != nil {
		return nil, err
	}

	return p, nil
}

// Path returns the executable path.
func (p *Program) Path() string {
	return p.path
}

// Subprocess returns the traced subprocess.
func (p *Program) Subprocess() *subprocess.Traced {
	return p.sub
}

// SymbolTable returns the symbol table parsed at construction.
func (p *Program) SymbolTable() *elfsym.Table {
	return p.symtab
}

// Run free-runs the program, collecting syscall records until it exits,
// is killed, stops on a signal, or times out.
func (p *Program) Run() (tracer.RunResult, error) {
	return p.sub.Run()
}

// Restart kills and relaunches the subprocess. All addresses into the
// previous child, including every scratch allocation, are invalidated.
func (p *Program) Restart() error {
	p.allocedMem = 0
	return p.sub.Restart()
}

// Close tears the subprocess down.
func (p *Program) Close() {
	p.sub.Close()
}

// scratchLimit bounds the persistent region: the two scratch cursors must
// not meet beyond 3/4 of the page.
const scratchLimit = tracer.ScratchLen * 3 / 4

// AllocMem allocates n bytes of persistent scratch in the child, growing
// down from the top of the scratch page so per-call staging (growing up
// from the bottom) cannot collide with it.
func (p *Program) AllocMem(n uint64) (uint64, error) {
	if p.allocedMem+n >= scratchLimit {
		return 0, fmt.Errorf("%w: scratch page exhausted (%d of %d bytes allocated)",
			errdefs.ErrUnknown, p.allocedMem, scratchLimit)
	}
	p.allocedMem += n
	return p.sub.Tracer().ScratchBase() + tracer.ScratchLen - p.allocedMem, nil
}

// CallFunction invokes the named function inside the child with the given
// arguments and reads back its return value per ret.
//
// When the child exits or is killed during the call the subprocess is
// restarted so subsequent tests can still run, and ErrUnexpectedReturn is
// surfaced. A stop on any signal other than the landing's SIGTRAP also
// surfaces ErrUnexpectedReturn, without a restart. A timeout leaves the
// child stopped but usable and does not restart.
func (p *Program) CallFunction(name string, ret tracer.RetKind, args ...tracer.Value) (uint64, error) {
	sym, ok := p.symtab.Find(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", errdefs.ErrUnresolvedSymbol, name)
	}

	tr := p.sub.Tracer()

	if err := tr.SetupFunctionCall(args...); err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{"symbol": name, "addr": fmt.Sprintf("%#x", sym.Address)}).
		Trace("jumping to function")
	if err := tr.JumpTo(sym.Address); err != nil {
		return 0, err
	}

	res, err := p.sub.Run()
	if err != nil {
		return 0, err
	}

	// The subprocess dying under the call leaves nothing to read back;
	// restart it so the harness stays usable.
	if res.Kind == tracer.RunExited || res.Kind == tracer.RunKilled {
		if rerr := p.Restart(); rerr != nil {
			return 0, rerr
		}
		return 0, fmt.Errorf("%w: %q %v", errdefs.ErrUnexpectedReturn, name, res)
	}

	// The landing raises SIGTRAP; anything else is not a return.
	if res.Kind != tracer.RunSignalCaught || res.Code != int(unix.SIGTRAP) {
		return 0, fmt.Errorf("%w: %q %v", errdefs.ErrUnexpectedReturn, name, res)
	}

	return tr.FunctionReturn(ret)
}
