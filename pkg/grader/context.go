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

// Package grader hosts the per-test facade over one instrumented program,
// the test registry, and the runners that drive assignments for one
// student or a whole class.
package grader

import (
	"encoding/binary"
	"fmt"

	"github.com/asmgrader/asmgrader/pkg/arch"
	"github.com/asmgrader/asmgrader/pkg/errdefs"
	"github.com/asmgrader/asmgrader/pkg/program"
	"github.com/asmgrader/asmgrader/pkg/tracer"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// RequirementCallback observes each requirement as it is recorded, for
// streaming output.
type RequirementCallback func(RequirementResult)

// Context is the per-test facade bound to one Program. It accumulates
// requirement results and exposes the instrumentation surface test code
// uses.
type Context struct {
	test *Test
	prog *program.Program

	result        TestResult
	onRequirement RequirementCallback
}

// NewContext binds a test to a program. onRequirement may be nil.
func NewContext(test *Test, prog *program.Program, onRequirement RequirementCallback) *Context {
	return &Context{
		test: test,
		prog: prog,
		result: TestResult{
			Name:   test.Name,
			Weight: test.Weight,
		},
		onRequirement: onRequirement,
	}
}

// Name returns the test name.
func (c *Context) Name() string {
	return c.test.Name
}

// Program returns the bound program.
func (c *Context) Program() *program.Program {
	return c.prog
}

// Require appends a requirement result with the given message and invokes
// the per-requirement callback. It returns condition so checks can chain.
func (c *Context) Require(condition bool, msg string) bool {
	return c.RequireDebug(condition, msg, "")
}

// RequireDebug is Require with extra diagnostic context attached.
func (c *Context) RequireDebug(condition bool, msg, debug string) bool {
	res := RequirementResult{Passed: condition, Message: msg, Debug: debug}
	c.result.Requirements = append(c.result.Requirements, res)
	if c.onRequirement != nil {
		c.onRequirement(res)
	}
	return condition
}

// Finalize computes the pass counts and returns the accumulated result.
// Running it before the test completes has no ill effect.
func (c *Context) Finalize() TestResult {
	c.result.NumPassed = 0
	c.result.NumTotal = len(c.result.Requirements)
	for _, r := range c.result.Requirements {
		if r.Passed {
			c.result.NumPassed++
		}
	}
	return c.result
}

// setError records a test-level failure; the test counts as failed
// regardless of its requirements.
func (c *Context) setError(err error) {
	c.result.Err = err
}

// Run free-runs the program from its entry point.
func (c *Context) Run() (tracer.RunResult, error) {
	return c.prog.Run()
}

// RestartProgram kills and restarts the program. All prior handles are
// invalidated: buffer addresses point into the old address space, and the
// new tracer starts with empty syscall records.
func (c *Context) RestartProgram() error {
	return c.prog.Restart()
}

// ReadStdout returns new stdout bytes since the last call.
func (c *Context) ReadStdout() (string, error) {
	return c.prog.Subprocess().ReadStdout()
}

// FullStdout returns all stdout since the program launched.
func (c *Context) FullStdout() (string, error) {
	return c.prog.Subprocess().FullStdout()
}

// SendStdin writes input to the program's stdin.
func (c *Context) SendStdin(input string) error {
	return c.prog.Subprocess().SendStdin(input)
}

// ExecSyscall invokes an arbitrary syscall inside the child.
func (c *Context) ExecSyscall(nr uint64, args [6]uint64) (tracer.SyscallRecord, error) {
	return c.prog.Subprocess().Tracer().ExecuteSyscall(nr, args)
}

// SyscallRecords returns all records observed so far.
func (c *Context) SyscallRecords() []tracer.SyscallRecord {
	return c.prog.Subprocess().Tracer().Records()
}

// Registers snapshots the integer and floating-point register files.
func (c *Context) Registers() (arch.Registers, arch.FPRegisters, error) {
	tr := c.prog.Subprocess().Tracer()
	regs, err := tr.GetRegisters()
	if err != nil {
		return regs, arch.FPRegisters{}, err
	}
	fpRegs, err := tr.GetFPRegisters()
	return regs, fpRegs, err
}

// FindSymbol resolves a named data symbol. A lookup failure is carried in
// the handle and surfaced on first use.
func (c *Context) FindSymbol(name string) *Symbol {
	sym, ok := c.prog.SymbolTable().Find(name)
	if !ok {
		logrus.Debugf("could not resolve symbol %q", name)
		return &Symbol{prog: c.prog, name: name, err: fmt.Errorf("%w: %q", errdefs.ErrUnresolvedSymbol, name)}
	}
	return &Symbol{prog: c.prog, name: name, addr: sym.Address}
}

// FindFunction resolves a named function. Resolution errors are deferred
// to call time.
func (c *Context) FindFunction(name string) *Function {
	if _, ok := c.prog.SymbolTable().Find(name); !ok {
		return &Function{prog: c.prog, name: name, err: fmt.Errorf("%w: %q", errdefs.ErrUnresolvedSymbol, name)}
	}
	return &Function{prog: c.prog, name: name}
}

// CreateBuffer allocates n bytes of persistent scratch in the child.
func (c *Context) CreateBuffer(n int) (*Buffer, error) {
	addr, err := c.prog.AllocMem(uint64(n))
	if err != nil {
		return nil, err
	}
	return &Buffer{prog: c.prog, addr: addr, size: n}, nil
}

// flushReadChunk is the per-read granularity of FlushStdin.
const flushReadChunk = 32

// FlushStdin drains any unread data from the child's stdin by injecting
// syscalls into the child itself: a zero-timeout ppoll on stdin, then a
// read while the poll reports data. Returns the number of bytes flushed.
func (c *Context) FlushStdin() (int, error) {
	readBuf, err := c.CreateBuffer(flushReadChunk)
	if err != nil {
		return 0, err
	}
	tsBuf, err := c.CreateBuffer(16)
	if err != nil {
		return 0, err
	}
	pollfdBuf, err := c.CreateBuffer(8)
	if err != nil {
		return 0, err
	}

	if err := tsBuf.Zero(); err != nil {
		return 0, err
	}

	// struct pollfd{fd=STDIN, events=POLLIN, revents=0}.
	var pollfd [8]byte
	binary.LittleEndian.PutUint32(pollfd[0:], 0)
	binary.LittleEndian.PutUint16(pollfd[4:], unix.POLLIN)

	total := 0
	for {
		if err := pollfdBuf.Write(pollfd[:]); err != nil {
			return total, err
		}

		pollRec, err := c.ExecSyscall(uint64(unix.SYS_PPOLL), [6]uint64{
			pollfdBuf.Addr(), 1, tsBuf.Addr(), 0, 0, 0,
		})
		if err != nil {
			return total, err
		}
		if pollRec.Ret == nil || pollRec.Ret.Errno != 0 {
			return total, fmt.Errorf("%w: ppoll failed in child", errdefs.ErrSyscallFailure)
		}

		// No readable fds: stdin is drained.
		if pollRec.Ret.Value == 0 {
			logrus.Debugf("flushed %d bytes from stdin", total)
			return total, nil
		}

		readRec, err := c.ExecSyscall(uint64(unix.SYS_READ), [6]uint64{
			0, readBuf.Addr(), flushReadChunk, 0, 0, 0,
		})
		if err != nil {
			return total, err
		}
		if readRec.Ret == nil || readRec.Ret.Errno != 0 {
			return total, fmt.Errorf("%w: read failed in child", errdefs.ErrSyscallFailure)
		}

		total += int(readRec.Ret.Value)
	}
}
