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

// Package tracer owns the ptrace state machine for one traced child: it
// attaches, installs options, resumes until events, decodes syscall
// entry/exit traps into records, patches code in the child, invokes
// syscalls on the child's behalf, and executes function calls inside it.
//
// All operations are synchronous; the invariant that the tracee is stopped
// at each API boundary relies on that. One tracer serves one tracee.
// Multi-threaded or forking tracees are not supported.
package tracer

import (
	"fmt"
	"time"

	"github.com/asmgrader/asmgrader/pkg/arch"
	"github.com/asmgrader/asmgrader/pkg/errdefs"
	"github.com/asmgrader/asmgrader/pkg/linux"
	"github.com/asmgrader/asmgrader/pkg/memio"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ScratchLen is the size of the anonymous executable page mmapped into the
// tracee immediately after exec. It holds injected instructions and
// argument/return-value staging buffers.
const ScratchLen = 4096

// attachTimeout bounds the wait for a fresh child's initial stop, which
// includes its fork-to-exec runway.
const attachTimeout = time.Second

// Tracer drives one traced child process.
type Tracer struct {
	pid int
	mem *memio.MemoryIO

	records  []SyscallRecord
	exitCode *int

	// scratchBase is set once, immediately after exec, by executing an
	// anonymous PROT_READ|PROT_EXEC mmap in the child. scratchUsed is
	// reset at the start of each function invocation and grows
	// monotonically within one invocation.
	scratchBase uint64
	scratchUsed uint64

	timeout    time.Duration
	pollPeriod time.Duration
}

// defaultStepTimeout is the resume-step budget used by new tracers. It is
// process-wide configuration, set once at startup.
var defaultStepTimeout = linux.DefaultTimeout

// SetDefaultStepTimeout overrides the step budget for tracers created
// afterwards. Non-positive values are ignored.
func SetDefaultStepTimeout(d time.Duration) {
	if d > 0 {
		defaultStepTimeout = d
	}
}

// New returns an unattached tracer with the default step timeout.
func New() *Tracer {
	return &Tracer{
		timeout:    defaultStepTimeout,
		pollPeriod: linux.DefaultPollPeriod,
	}
}

// SetTimeout overrides the per-step resume timeout.
func (t *Tracer) SetTimeout(d time.Duration) {
	t.timeout = d
}

// Pid returns the traced child pid, or zero before Begin.
func (t *Tracer) Pid() int {
	return t.pid
}

// Memory returns the tracee memory pipeline.
func (t *Tracer) Memory() *memio.MemoryIO {
	return t.mem
}

// Records returns the syscalls observed so far, in entry-trap order.
func (t *Tracer) Records() []SyscallRecord {
	return t.records
}

// ExitCode returns the child's exit code once it has exited.
func (t *Tracer) ExitCode() (int, bool) {
	if t.exitCode == nil {
		return 0, false
	}
	return *t.exitCode, true
}

// ScratchBase returns the address of the scratch page in the tracee.
func (t *Tracer) ScratchBase() uint64 {
	return t.scratchBase
}

// Begin attaches to a child started with the ptrace flag and prepares it
// for instrumentation. The child is expected to be in its initial
// post-execve trap stop. Options TRACEEXEC, TRACESYSGOOD and EXITKILL are
// installed, then the scratch page is established by executing an mmap
// inside the tracee.
func (t *Tracer) Begin(pid int) error {
	t.pid = pid
	t.mem = memio.New(pid)
	t.records = nil
	t.exitCode = nil
	t.scratchBase = 0
	t.scratchUsed = 0

	t.assertInvariants()

	// The child may still be on its way into execve; allow the attach
	// stop far more than one step budget.
	ev, err := linux.WaitTimeout(pid, attachTimeout, t.pollPeriod)
	if err != nil {
		return fmt.Errorf("waiting for initial stop: %w", err)
	}
	if ev.Kind != linux.Trapped && ev.Kind != linux.Stopped {
		return fmt.Errorf("%w: unexpected initial event %v", errdefs.ErrUnknown, ev)
	}
	logrus.WithField("pid", pid).Debugf("initial stop: %v", ev)

	opts := unix.PTRACE_O_TRACEEXEC | unix.PTRACE_O_TRACESYSGOOD | unix.PTRACE_O_EXITKILL
	if err := linux.PtraceSetOptions(pid, opts); err != nil {
		return err
	}

	// Establish the scratch page: one anonymous readable+executable page
	// that injected instructions and staged arguments live in, so that we
	// never have to overwrite program code for longer than one syscall.
	rec, err := t.ExecuteSyscall(uint64(unix.SYS_MMAP), [6]uint64{
		0, ScratchLen, unix.PROT_READ | unix.PROT_EXEC,
		unix.MAP_PRIVATE | unix.MAP_ANONYMOUS, ^uint64(0), 0,
	})
	if err != nil {
		return fmt.Errorf("establishing scratch page: %w", err)
	}
	if rec.Ret == nil || rec.Ret.Errno != 0 {
		logrus.Error("mmap syscall failed in child process")
		return errdefs.ErrSyscallFailure
	}

	t.scratchBase = uint64(rec.Ret.Value)
	logrus.Debugf("scratch page at %#x", t.scratchBase)

	return nil
}

// assertInvariants verifies the tracee contract: the child exists in
// procfs, this process is its parent, and it is neither zombie nor dead.
// A violation means nothing about the tracee can be trusted, so the
// harness aborts.
func (t *Tracer) assertInvariants() {
	if err := linux.CheckTraceeContract(t.pid); err != nil {
		logrus.Fatalf("tracee contract violation: %v", err)
	}
}

// GetRegisters snapshots the general-purpose register file. The tracee
// must be stopped.
func (t *Tracer) GetRegisters() (arch.Registers, error) {
	var regs arch.Registers
	if err := linux.PtraceGetRegSet(t.pid, unix.NT_PRSTATUS, arch.RegsBytes(&regs)); err != nil {
		return regs, err
	}
	return regs, nil
}

// SetRegisters writes back a general-purpose register file.
func (t *Tracer) SetRegisters(regs arch.Registers) error {
	return linux.PtraceSetRegSet(t.pid, unix.NT_PRSTATUS, arch.RegsBytes(&regs))
}

// GetFPRegisters snapshots the floating-point register file.
func (t *Tracer) GetFPRegisters() (arch.FPRegisters, error) {
	var regs arch.FPRegisters
	if err := linux.PtraceGetRegSet(t.pid, unix.NT_PRFPREG, arch.FPRegsBytes(&regs)); err != nil {
		return regs, err
	}
	return regs, nil
}

// SetFPRegisters writes back a floating-point register file.
func (t *Tracer) SetFPRegisters(regs arch.FPRegisters) error {
	return linux.PtraceSetRegSet(t.pid, unix.NT_PRFPREG, arch.FPRegsBytes(&regs))
}

// JumpTo sets the tracee's instruction pointer.
func (t *Tracer) JumpTo(addr uint64) error {
	regs, err := t.GetRegisters()
	if err != nil {
		return err
	}
	arch.SetIP(&regs, addr)
	return t.SetRegisters(regs)
}

// Run resumes the tracee and drives it until it exits, is killed, or stops
// on plain signal delivery, collecting a record for every syscall it
// enters. Each resume step is bounded by the tracer timeout; on timeout
// the tracee is forced into SIGSTOP to stay traceable and ErrTimedOut is
// returned, leaving the tracer usable.
func (t *Tracer) Run() (RunResult, error) {
	return t.run(t.timeout)
}

// RunUntilExit is Run with a budget suitable for waiting out a natural
// exit rather than a single instrumentation step.
func (t *Tracer) RunUntilExit(budget time.Duration) (RunResult, error) {
	return t.run(budget)
}

func (t *Tracer) run(stepTimeout time.Duration) (RunResult, error) {
	t.assertInvariants()

	for {
		if err := linux.PtraceSyscall(t.pid, 0); err != nil {
			return RunResult{}, err
		}

		ev, err := linux.WaitTimeout(t.pid, stepTimeout, t.pollPeriod)
		if err == errdefs.ErrTimedOut {
			logrus.WithField("pid", t.pid).Debug("child timed out, forcing stop")
			if kerr := linux.Kill(t.pid, unix.SIGSTOP); kerr != nil {
				return RunResult{}, kerr
			}
			// Consume the stop so the tracee is known-stopped.
			if _, werr := linux.WaitTimeout(t.pid, stepTimeout, t.pollPeriod); werr != nil {
				logrus.Debugf("draining forced stop: %v", werr)
			}
			return RunResult{}, errdefs.ErrTimedOut
		}
		if err != nil {
			return RunResult{}, err
		}

		switch {
		case ev.IsSyscallTrap:
			if err := t.recordSyscallTrap(); err != nil {
				return RunResult{}, err
			}

		case ev.Kind == linux.Exited:
			code := ev.ExitCode
			t.exitCode = &code
			logrus.Debugf("child exited with code %d", code)
			return RunResult{Kind: RunExited, Code: code}, nil

		case ev.Kind == linux.Killed || ev.Kind == linux.Dumped:
			return RunResult{Kind: RunKilled, Code: int(ev.Signal)}, nil

		case ev.Kind == linux.Trapped || ev.Kind == linux.Stopped:
			return RunResult{Kind: RunSignalCaught, Code: int(ev.Signal)}, nil

		default:
			return RunResult{}, fmt.Errorf("%w: unexpected wait event %v", errdefs.ErrUnknown, ev)
		}
	}
}

// recordSyscallTrap handles one syscall-trap stop: entries append a new
// record, exits complete the trailing one. A misaligned exit (no pending
// record) is skipped gracefully.
func (t *Tracer) recordSyscallTrap() error {
	info, err := linux.PtraceGetSyscallInfo(t.pid)
	if err != nil {
		return err
	}

	switch info.Op {
	case linux.SyscallInfoEntry:
		t.records = append(t.records, t.entryRecord(info))

	case linux.SyscallInfoExit:
		if len(t.records) == 0 || t.records[len(t.records)-1].Ret != nil {
			logrus.Debug("syscall exit without pending entry, skipping")
			return nil
		}
		t.records[len(t.records)-1].Ret = exitRet(info)

	default:
		logrus.Warnf("unhandled syscall trap op %d, skipping", info.Op)
	}

	return nil
}

// entryRecord builds a record from a syscall-entry stop, decoding each
// argument register per the syscall table.
func (t *Tracer) entryRecord(info linux.SyscallInfo) SyscallRecord {
	entry := lookupSyscall(info.Nr)

	rec := SyscallRecord{
		Nr:                 info.Nr,
		Name:               entry.Name,
		InstructionPointer: info.InstructionPointer,
		StackPointer:       info.StackPointer,
	}
	for i, kind := range entry.Params {
		rec.Args = append(rec.Args, t.decodeArg(info.Args[i], kind))
	}
	return rec
}

func exitRet(info linux.SyscallInfo) *Ret {
	r := &Ret{Value: info.Rval}
	if info.IsError {
		r.Errno = unix.Errno(-info.Rval)
	}
	return r
}

// decodeArg converts one raw argument register into a typed Arg. String
// and timespec kinds dereference the child's memory at entry; a failed or
// NULL dereference degrades to an opaque pointer rather than failing the
// whole record.
func (t *Tracer) decodeArg(value uint64, kind ParamKind) Arg {
	switch kind {
	case ParamInt32:
		return Arg{Kind: ArgInt32, Int: int64(int32(value))}
	case ParamInt64:
		return Arg{Kind: ArgInt64, Int: int64(value)}
	case ParamUint32:
		return Arg{Kind: ArgUint32, Uint: uint64(uint32(value))}
	case ParamUint64:
		return Arg{Kind: ArgUint64, Uint: value}
	case ParamPtr:
		return Arg{Kind: ArgPointer, Ptr: value}

	case ParamCString:
		if value == 0 {
			return Arg{Kind: ArgPointer, Ptr: 0}
		}
		s, err := t.mem.ReadString(value)
		if err != nil {
			logrus.Debugf("reading string arg at %#x: %v", value, err)
			return Arg{Kind: ArgPointer, Ptr: value}
		}
		return Arg{Kind: ArgString, Str: s}

	case ParamCStringArray:
		if value == 0 {
			return Arg{Kind: ArgPointer, Ptr: 0}
		}
		strs, err := t.mem.ReadStringArray(value)
		if err != nil {
			logrus.Debugf("reading string array arg at %#x: %v", value, err)
			return Arg{Kind: ArgPointer, Ptr: value}
		}
		return Arg{Kind: ArgStringArray, StrArray: strs}

	case ParamTimespecPtr:
		if value == 0 {
			return Arg{Kind: ArgPointer, Ptr: 0}
		}
		ts, err := t.mem.ReadTimespec(value)
		if err != nil {
			logrus.Debugf("reading timespec arg at %#x: %v", value, err)
			return Arg{Kind: ArgPointer, Ptr: value}
		}
		return Arg{Kind: ArgTimespec, Timespec: ts}

	default:
		return Arg{Kind: ArgUint64, Uint: value}
	}
}
