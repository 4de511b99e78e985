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

package tracer

import (
	"fmt"
	"time"

	"github.com/asmgrader/asmgrader/pkg/arch"
	"github.com/asmgrader/asmgrader/pkg/errdefs"
	"github.com/asmgrader/asmgrader/pkg/linux"
	"github.com/sirupsen/logrus"
)

// ExecuteSyscall invokes a syscall on behalf of the stopped tracee.
//
// The current registers are snapshotted and a register set with nr and
// args in the ABI's syscall convention is installed. The eight code bytes
// at the instruction pointer are saved and replaced with a syscall stub,
// the stub is driven through its entry and exit traps, and then the
// original instructions and registers are restored.
//
// Precondition: the tracee is stopped at a place where eight bytes of code
// may be overwritten.
func (t *Tracer) ExecuteSyscall(nr uint64, args [6]uint64) (SyscallRecord, error) {
	t.assertInvariants()

	origRegs, err := t.GetRegisters()
	if err != nil {
		return SyscallRecord{}, err
	}

	newRegs := origRegs
	arch.SetSyscall(&newRegs, nr, args)

	ip := arch.IP(&origRegs)
	origInstrs, err := t.mem.ReadBytes(ip, arch.InjectLen)
	if err != nil {
		return SyscallRecord{}, err
	}

	stub := arch.SyscallInstructions()
	if _, err := t.mem.WriteBytes(ip, stub[:]); err != nil {
		return SyscallRecord{}, err
	}

	if err := t.SetRegisters(newRegs); err != nil {
		return SyscallRecord{}, err
	}

	rec, runErr := t.runNextSyscall(t.timeout)

	// Restore original program state regardless of the stub outcome.
	if err := t.SetRegisters(origRegs); err != nil {
		return SyscallRecord{}, err
	}
	if _, err := t.mem.WriteBytes(ip, origInstrs); err != nil {
		return SyscallRecord{}, err
	}

	if runErr != nil {
		// A timeout here means the injected stub never trapped, which
		// should not be possible when a syscall is the next instruction.
		logrus.Errorf("injected syscall %d did not complete: %v", nr, runErr)
		return SyscallRecord{}, fmt.Errorf("%w: injected syscall did not complete", errdefs.ErrSyscallFailure)
	}

	return rec, nil
}

// runNextSyscall resumes the tracee through exactly one syscall, reading
// the entry and exit trap info, and returns the completed record. The
// timeout budget is split across the two halves.
func (t *Tracer) runNextSyscall(timeout time.Duration) (SyscallRecord, error) {
	t.assertInvariants()

	start := time.Now()

	entry, err := t.resumeToSyscallTrap(timeout)
	if err != nil {
		return SyscallRecord{}, err
	}
	if entry.Op != linux.SyscallInfoEntry {
		return SyscallRecord{}, fmt.Errorf("%w: expected syscall entry, got op %d", errdefs.ErrUnknown, entry.Op)
	}

	remaining := timeout - time.Since(start)
	if remaining <= 0 {
		return SyscallRecord{}, errdefs.ErrTimedOut
	}

	exit, err := t.resumeToSyscallTrap(remaining)
	if err != nil {
		return SyscallRecord{}, err
	}
	if exit.Op != linux.SyscallInfoExit {
		return SyscallRecord{}, fmt.Errorf("%w: expected syscall exit, got op %d", errdefs.ErrUnknown, exit.Op)
	}

	rec := t.entryRecord(entry)
	rec.Ret = exitRet(exit)
	return rec, nil
}

// resumeToSyscallTrap resumes with PTRACE_SYSCALL until a syscall trap is
// delivered, then reads its info. Non-syscall stops within the budget are
// resumed past.
func (t *Tracer) resumeToSyscallTrap(timeout time.Duration) (linux.SyscallInfo, error) {
	deadline := time.Now().Add(timeout)

	for {
		if time.Now().After(deadline) {
			logrus.Debugf("resume to syscall trap timed out after %v", timeout)
			return linux.SyscallInfo{}, errdefs.ErrTimedOut
		}

		if err := linux.PtraceSyscall(t.pid, 0); err != nil {
			return linux.SyscallInfo{}, err
		}

		ev, err := linux.WaitTimeout(t.pid, timeout, t.pollPeriod)
		if err != nil {
			return linux.SyscallInfo{}, err
		}

		logrus.Tracef("resume event: %v", ev)

		if ev.IsSyscallTrap {
			return linux.PtraceGetSyscallInfo(t.pid)
		}
		if ev.Kind == linux.Exited {
			code := ev.ExitCode
			t.exitCode = &code
			return linux.SyscallInfo{}, fmt.Errorf("%w: child exited during injected syscall", errdefs.ErrSyscallFailure)
		}
		if ev.Kind == linux.Killed || ev.Kind == linux.Dumped {
			return linux.SyscallInfo{}, fmt.Errorf("%w: child killed during injected syscall", errdefs.ErrSyscallFailure)
		}
	}
}
