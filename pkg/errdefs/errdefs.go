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

// Package errdefs defines the error kinds surfaced by the grading harness.
//
// Operations on a traced student binary report failure through one of the
// sentinel errors below so that callers can branch with errors.Is. Locally
// recoverable conditions (a timed-out resume, a missing symbol, a failed
// injected syscall) flow up as values; contract violations do not pass
// through here at all, they abort the harness.
package errdefs

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	// ErrTimedOut indicates a resume step did not observe its expected
	// event within its budget. The tracee is left force-stopped and
	// remains usable.
	ErrTimedOut = errors.New("timed out")

	// ErrUnresolvedSymbol indicates a function or data symbol requested
	// by name is not present in the static symbol table.
	ErrUnresolvedSymbol = errors.New("unresolved symbol")

	// ErrUnexpectedReturn indicates a function invocation returned via
	// some path other than the injected breakpoint: the child exited,
	// segfaulted, or caught a non-TRAP signal. When the child exited or
	// was killed, the subprocess is restarted before this is surfaced.
	ErrUnexpectedReturn = errors.New("unexpected return")

	// ErrSyscallFailure indicates a Linux syscall failed, either host-side
	// in a wrapper or inside the child when invoked via injection.
	ErrSyscallFailure = errors.New("syscall failure")

	// ErrUnknown is a catch-all for programming errors that should not
	// normally occur.
	ErrUnknown = errors.New("unknown error")
)

// SyscallError wraps an errno from a failed syscall. It matches both
// ErrSyscallFailure and the underlying unix.Errno under errors.Is.
type SyscallError struct {
	Op    string
	Errno unix.Errno
}

// Error implements error.
func (e *SyscallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Errno)
}

// Unwrap makes errors.Is(err, unix.E...) work.
func (e *SyscallError) Unwrap() error {
	return e.Errno
}

// Is reports true for ErrSyscallFailure so callers need not know which
// wrapper produced the failure.
func (e *SyscallError) Is(target error) bool {
	return target == ErrSyscallFailure
}

// NewSyscallError returns a SyscallError for op and errno.
func NewSyscallError(op string, errno unix.Errno) *SyscallError {
	return &SyscallError{Op: op, Errno: errno}
}
