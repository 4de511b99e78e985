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

	"golang.org/x/sys/unix"
)

// ParamKind describes how one syscall parameter register is decoded into
// an Arg.
type ParamKind int

const (
	// ParamInt32 decodes the low 32 bits as signed.
	ParamInt32 ParamKind = iota
	// ParamInt64 decodes all 64 bits as signed.
	ParamInt64
	// ParamUint32 decodes the low 32 bits as unsigned.
	ParamUint32
	// ParamUint64 decodes all 64 bits as unsigned.
	ParamUint64
	// ParamPtr records the register value as an opaque pointer.
	ParamPtr
	// ParamCString dereferences a NUL-terminated string at entry.
	ParamCString
	// ParamCStringArray dereferences a NULL-terminated array of C
	// strings at entry.
	ParamCStringArray
	// ParamTimespecPtr dereferences a struct timespec at entry.
	// Exit-side contents are not re-read.
	ParamTimespecPtr
)

// SyscallEntry associates a syscall number with its name and the parameter
// kinds used to decode its arguments at entry.
type SyscallEntry struct {
	Name   string
	Params []ParamKind
}

// Entries shared by both supported architectures. Architecture-specific
// numbers (legacy open/stat/poll on x86-64) are added by the per-arch
// table files.
var syscallTable = map[uint64]SyscallEntry{
	unix.SYS_READ:            {"read", []ParamKind{ParamInt32, ParamPtr, ParamUint64}},
	unix.SYS_WRITE:           {"write", []ParamKind{ParamInt32, ParamPtr, ParamUint64}},
	unix.SYS_CLOSE:           {"close", []ParamKind{ParamInt32}},
	unix.SYS_FSTAT:           {"fstat", []ParamKind{ParamInt32, ParamPtr}},
	unix.SYS_LSEEK:           {"lseek", []ParamKind{ParamInt32, ParamInt64, ParamInt32}},
	unix.SYS_MMAP:            {"mmap", []ParamKind{ParamPtr, ParamUint64, ParamInt32, ParamInt32, ParamInt32, ParamInt64}},
	unix.SYS_MPROTECT:        {"mprotect", []ParamKind{ParamPtr, ParamUint64, ParamInt32}},
	unix.SYS_MUNMAP:          {"munmap", []ParamKind{ParamPtr, ParamUint64}},
	unix.SYS_BRK:             {"brk", []ParamKind{ParamPtr}},
	unix.SYS_IOCTL:           {"ioctl", []ParamKind{ParamInt32, ParamUint64, ParamUint64}},
	unix.SYS_PREAD64:         {"pread64", []ParamKind{ParamInt32, ParamPtr, ParamUint64, ParamInt64}},
	unix.SYS_PWRITE64:        {"pwrite64", []ParamKind{ParamInt32, ParamPtr, ParamUint64, ParamInt64}},
	unix.SYS_READV:           {"readv", []ParamKind{ParamInt32, ParamPtr, ParamInt32}},
	unix.SYS_WRITEV:          {"writev", []ParamKind{ParamInt32, ParamPtr, ParamInt32}},
	unix.SYS_SCHED_YIELD:     {"sched_yield", nil},
	unix.SYS_NANOSLEEP:       {"nanosleep", []ParamKind{ParamTimespecPtr, ParamPtr}},
	unix.SYS_CLOCK_NANOSLEEP: {"clock_nanosleep", []ParamKind{ParamInt32, ParamInt32, ParamTimespecPtr, ParamPtr}},
	unix.SYS_CLOCK_GETTIME:   {"clock_gettime", []ParamKind{ParamInt32, ParamPtr}},
	unix.SYS_GETPID:          {"getpid", nil},
	unix.SYS_GETTID:          {"gettid", nil},
	unix.SYS_GETUID:          {"getuid", nil},
	unix.SYS_GETEUID:         {"geteuid", nil},
	unix.SYS_GETGID:          {"getgid", nil},
	unix.SYS_KILL:            {"kill", []ParamKind{ParamInt32, ParamInt32}},
	unix.SYS_TGKILL:          {"tgkill", []ParamKind{ParamInt32, ParamInt32, ParamInt32}},
	unix.SYS_RT_SIGACTION:    {"rt_sigaction", []ParamKind{ParamInt32, ParamPtr, ParamPtr, ParamUint64}},
	unix.SYS_RT_SIGPROCMASK:  {"rt_sigprocmask", []ParamKind{ParamInt32, ParamPtr, ParamPtr, ParamUint64}},
	unix.SYS_RT_SIGRETURN:    {"rt_sigreturn", nil},
	unix.SYS_EXECVE:          {"execve", []ParamKind{ParamCString, ParamCStringArray, ParamPtr}},
	unix.SYS_EXIT:            {"exit", []ParamKind{ParamInt32}},
	unix.SYS_EXIT_GROUP:      {"exit_group", []ParamKind{ParamInt32}},
	unix.SYS_WAIT4:           {"wait4", []ParamKind{ParamInt32, ParamPtr, ParamInt32, ParamPtr}},
	unix.SYS_UNAME:           {"uname", []ParamKind{ParamPtr}},
	unix.SYS_FCNTL:           {"fcntl", []ParamKind{ParamInt32, ParamInt32, ParamUint64}},
	unix.SYS_FTRUNCATE:       {"ftruncate", []ParamKind{ParamInt32, ParamInt64}},
	unix.SYS_GETCWD:          {"getcwd", []ParamKind{ParamPtr, ParamUint64}},
	unix.SYS_CHDIR:           {"chdir", []ParamKind{ParamCString}},
	unix.SYS_MKDIRAT:         {"mkdirat", []ParamKind{ParamInt32, ParamCString, ParamUint32}},
	unix.SYS_UNLINKAT:        {"unlinkat", []ParamKind{ParamInt32, ParamCString, ParamInt32}},
	unix.SYS_OPENAT:          {"openat", []ParamKind{ParamInt32, ParamCString, ParamInt32, ParamUint32}},
	unix.SYS_DUP:             {"dup", []ParamKind{ParamInt32}},
	unix.SYS_DUP3:            {"dup3", []ParamKind{ParamInt32, ParamInt32, ParamInt32}},
	unix.SYS_PIPE2:           {"pipe2", []ParamKind{ParamPtr, ParamInt32}},
	unix.SYS_PPOLL:           {"ppoll", []ParamKind{ParamPtr, ParamUint64, ParamTimespecPtr, ParamPtr}},
	unix.SYS_PSELECT6:        {"pselect6", []ParamKind{ParamInt32, ParamPtr, ParamPtr, ParamPtr, ParamTimespecPtr, ParamPtr}},
	unix.SYS_GETRANDOM:       {"getrandom", []ParamKind{ParamPtr, ParamUint64, ParamUint32}},
	unix.SYS_SET_TID_ADDRESS: {"set_tid_address", []ParamKind{ParamPtr}},
	unix.SYS_SET_ROBUST_LIST: {"set_robust_list", []ParamKind{ParamPtr, ParamUint64}},
	unix.SYS_PRLIMIT64:       {"prlimit64", []ParamKind{ParamInt32, ParamInt32, ParamPtr, ParamPtr}},
	unix.SYS_GETTIMEOFDAY:    {"gettimeofday", []ParamKind{ParamPtr, ParamPtr}},
	unix.SYS_MADVISE:         {"madvise", []ParamKind{ParamPtr, ParamUint64, ParamInt32}},
	unix.SYS_MREMAP:          {"mremap", []ParamKind{ParamPtr, ParamUint64, ParamUint64, ParamInt32, ParamPtr}},
	unix.SYS_FSYNC:           {"fsync", []ParamKind{ParamInt32}},
	unix.SYS_TIMES:           {"times", []ParamKind{ParamPtr}},
	unix.SYS_FUTEX:           {"futex", []ParamKind{ParamPtr, ParamInt32, ParamUint32, ParamTimespecPtr, ParamPtr, ParamUint32}},
	unix.SYS_READLINKAT:      {"readlinkat", []ParamKind{ParamInt32, ParamCString, ParamPtr, ParamUint64}},
	unix.SYS_FACCESSAT:       {"faccessat", []ParamKind{ParamInt32, ParamCString, ParamInt32}},
}

// lookupSyscall returns the table entry for nr, or a generic entry naming
// the unknown number with six opaque parameters.
func lookupSyscall(nr uint64) SyscallEntry {
	if e, ok := syscallTable[nr]; ok {
		return e
	}
	return SyscallEntry{
		Name: fmt.Sprintf("<unknown (%d)>", nr),
		Params: []ParamKind{
			ParamUint64, ParamUint64, ParamUint64,
			ParamUint64, ParamUint64, ParamUint64,
		},
	}
}
