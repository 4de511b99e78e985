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

package linux

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/asmgrader/asmgrader/pkg/errdefs"
	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Both supported architectures are little-endian.
var byteOrder = binary.LittleEndian

// SiginfoChld is the CLD_* slice of siginfo_t filled in by waitid(2).
// The pid/uid/status union members sit at fixed offsets on both 64-bit
// architectures we support.
type SiginfoChld struct {
	Signo  int32
	Errno  int32
	Code   int32
	_      int32
	Pid    int32
	UID    uint32
	Status int32
	_      [100]byte
}

// Waitid wraps waitid(P_PID, ...) with the given options. A WNOHANG return
// with no event leaves Pid at zero, per waitid(2).
func Waitid(pid int, options int) (SiginfoChld, error) {
	var si SiginfoChld
	_, _, errno := unix.Syscall6(unix.SYS_WAITID, unix.P_PID, uintptr(pid),
		uintptr(unsafe.Pointer(&si)), uintptr(options), 0, 0)
	if errno != 0 {
		return SiginfoChld{}, errdefs.NewSyscallError("waitid", errno)
	}
	return si, nil
}

// EventKind classifies a decoded wait event, following the CLD_* si_code
// values of waitid(2).
type EventKind int

const (
	// Exited means the child terminated normally.
	Exited EventKind = iota
	// Killed means the child was terminated by a signal.
	Killed
	// Dumped means the child was terminated by a signal and dumped core.
	Dumped
	// Stopped means the child was stopped by delivery of a signal.
	Stopped
	// Trapped means a traced child has trapped.
	Trapped
	// Continued means a stopped child was resumed by SIGCONT.
	Continued
)

// String implements fmt.Stringer.
func (k EventKind) String() string {
	switch k {
	case Exited:
		return "exited"
	case Killed:
		return "killed"
	case Dumped:
		return "dumped"
	case Stopped:
		return "stopped"
	case Trapped:
		return "trapped"
	case Continued:
		return "continued"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// WaitEvent is a decoded stopped-child notification.
type WaitEvent struct {
	Kind EventKind

	// ExitCode is valid only when Kind == Exited.
	ExitCode int

	// Signal is the delivered signal when Kind != Exited.
	Signal unix.Signal

	// PtraceEvent is a PTRACE_EVENT_* value when a trap carried one,
	// else zero.
	PtraceEvent int

	// IsSyscallTrap marks a syscall entry/exit stop delivered under
	// PTRACE_O_TRACESYSGOOD.
	IsSyscallTrap bool
}

// String implements fmt.Stringer.
func (e WaitEvent) String() string {
	return fmt.Sprintf("WaitEvent{kind=%v exit=%d sig=%v event=%d syscall=%t}",
		e.Kind, e.ExitCode, e.Signal, e.PtraceEvent, e.IsSyscallTrap)
}

const (
	sigMask         = 0x7f
	syscallTrapMask = 0x80
)

// Decode interprets the waitid result per the ptrace(2) conventions.
// The low seven bits of the status carry the stopping signal; for a
// trapped stop a set 0x80 bit marks a syscall trap, and bits above 8 carry
// a PTRACE_EVENT_* value. Unknown
// combinations are surfaced as a plain signaled stop, never as an error.
func Decode(si SiginfoChld) WaitEvent {
	ev := WaitEvent{}

	switch si.Code {
	case unix.CLD_EXITED:
		ev.Kind = Exited
		ev.ExitCode = int(si.Status)
		return ev
	case unix.CLD_KILLED:
		ev.Kind = Killed
	case unix.CLD_DUMPED:
		ev.Kind = Dumped
	case unix.CLD_STOPPED:
		ev.Kind = Stopped
	case unix.CLD_TRAPPED:
		ev.Kind = Trapped
	case unix.CLD_CONTINUED:
		ev.Kind = Continued
	default:
		ev.Kind = Stopped
	}

	status := uint32(si.Status)
	ev.Signal = unix.Signal(status & sigMask)

	if ev.Kind != Trapped {
		return ev
	}

	if status&syscallTrapMask != 0 {
		ev.IsSyscallTrap = true
	} else if status>>8 != 0 {
		ev.PtraceEvent = int(status >> 8)
	}

	return ev
}

// Default polling parameters for WaitTimeout.
const (
	DefaultTimeout    = 10 * time.Millisecond
	DefaultPollPeriod = time.Microsecond
)

// WaitTimeout polls waitid(WEXITED|WSTOPPED|WNOHANG) at pollPeriod until an
// event is delivered or timeout elapses, in which case errdefs.ErrTimedOut
// is returned.
func WaitTimeout(pid int, timeout, pollPeriod time.Duration) (WaitEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var si SiginfoChld
	poll := func() error {
		res, err := Waitid(pid, unix.WEXITED|unix.WSTOPPED|unix.WNOHANG)
		if err != nil {
			return backoff.Permanent(err)
		}
		// si_pid stays zero when WNOHANG returned early; see waitid(2).
		if res.Pid == 0 {
			return errdefs.ErrTimedOut
		}
		si = res
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(pollPeriod), ctx)
	if err := backoff.Retry(poll, b); err != nil {
		// Retry unwraps Permanent errors, so a waitid failure surfaces
		// here as the wrapper's error; anything else is the poll
		// running out its budget.
		if errors.Is(err, errdefs.ErrSyscallFailure) {
			return WaitEvent{}, err
		}
		logrus.WithField("pid", pid).Debugf("waitid timed out after %v", timeout)
		return WaitEvent{}, errdefs.ErrTimedOut
	}

	return Decode(si), nil
}
