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
	"strings"

	"golang.org/x/sys/unix"
)

// RunKind classifies how a run step of the tracee concluded.
type RunKind int

const (
	// RunExited means the child terminated normally.
	RunExited RunKind = iota
	// RunKilled means the child was terminated by a signal.
	RunKilled
	// RunSignalCaught means the child stopped on signal delivery.
	RunSignalCaught
)

// RunResult reports the outcome of one run step.
type RunResult struct {
	Kind RunKind

	// Code is the exit code for RunExited, else the signal number.
	Code int
}

// String implements fmt.Stringer.
func (r RunResult) String() string {
	switch r.Kind {
	case RunExited:
		return fmt.Sprintf("exited(%d)", r.Code)
	case RunKilled:
		return fmt.Sprintf("killed(%v)", unix.Signal(r.Code))
	case RunSignalCaught:
		return fmt.Sprintf("signal(%v)", unix.Signal(r.Code))
	default:
		return fmt.Sprintf("RunResult(%d,%d)", int(r.Kind), r.Code)
	}
}

// ArgKind tags one decoded syscall argument.
type ArgKind int

const (
	// ArgInt32 is a 32-bit signed integer argument.
	ArgInt32 ArgKind = iota
	// ArgInt64 is a 64-bit signed integer argument.
	ArgInt64
	// ArgUint32 is a 32-bit unsigned integer argument.
	ArgUint32
	// ArgUint64 is a 64-bit unsigned integer argument.
	ArgUint64
	// ArgPointer is an opaque pointer argument.
	ArgPointer
	// ArgString is a NUL-terminated string read from the child at entry.
	ArgString
	// ArgStringArray is a NULL-terminated array of C strings read from
	// the child at entry.
	ArgStringArray
	// ArgTimespec is a struct timespec dereferenced from the child at
	// entry.
	ArgTimespec
)

// Arg is one decoded syscall argument. Kind selects which field is valid.
type Arg struct {
	Kind ArgKind

	Int      int64
	Uint     uint64
	Ptr      uint64
	Str      string
	StrArray []string
	Timespec unix.Timespec
}

// String implements fmt.Stringer.
func (a Arg) String() string {
	switch a.Kind {
	case ArgInt32, ArgInt64:
		return fmt.Sprintf("%d", a.Int)
	case ArgUint32, ArgUint64:
		return fmt.Sprintf("%d", a.Uint)
	case ArgPointer:
		return fmt.Sprintf("%#x", a.Ptr)
	case ArgString:
		return fmt.Sprintf("%q", a.Str)
	case ArgStringArray:
		return fmt.Sprintf("%q", a.StrArray)
	case ArgTimespec:
		return fmt.Sprintf("{%d,%d}", a.Timespec.Sec, a.Timespec.Nsec)
	default:
		return "<?>"
	}
}

// Ret is the completed result of a syscall. A nonzero Errno marks failure,
// in which case Value is meaningless.
type Ret struct {
	Value int64
	Errno unix.Errno
}

// Err returns the errno as an error, or nil on success.
func (r Ret) Err() error {
	if r.Errno != 0 {
		return r.Errno
	}
	return nil
}

// SyscallRecord is one observed or injected syscall. Entry information is
// recorded at syscall-entry; Ret is filled in at syscall-exit. A nil Ret
// means the record is the most recent and the tracee sits between entry
// and exit.
type SyscallRecord struct {
	Nr   uint64
	Name string
	Args []Arg
	Ret  *Ret

	InstructionPointer uint64
	StackPointer       uint64
}

// String implements fmt.Stringer.
func (r SyscallRecord) String() string {
	args := make([]string, len(r.Args))
	for i, a := range r.Args {
		args[i] = a.String()
	}
	ret := "<pending>"
	if r.Ret != nil {
		if r.Ret.Errno != 0 {
			ret = fmt.Sprintf("-%v", r.Ret.Errno)
		} else {
			ret = fmt.Sprintf("%d", r.Ret.Value)
		}
	}
	return fmt.Sprintf("%s(%s) = %s", r.Name, strings.Join(args, ", "), ret)
}
