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

//go:build linux && amd64
// +build linux,amd64

package tracer

import "golang.org/x/sys/unix"

// Legacy syscalls present on x86-64 but absent from the aarch64 table.
// Hand-written student assembly tends to use these directly.
func init() {
	for nr, e := range map[uint64]SyscallEntry{
		unix.SYS_OPEN:       {"open", []ParamKind{ParamCString, ParamInt32, ParamUint32}},
		unix.SYS_CREAT:      {"creat", []ParamKind{ParamCString, ParamUint32}},
		unix.SYS_STAT:       {"stat", []ParamKind{ParamCString, ParamPtr}},
		unix.SYS_LSTAT:      {"lstat", []ParamKind{ParamCString, ParamPtr}},
		unix.SYS_POLL:       {"poll", []ParamKind{ParamPtr, ParamUint64, ParamInt32}},
		unix.SYS_ACCESS:     {"access", []ParamKind{ParamCString, ParamInt32}},
		unix.SYS_PIPE:       {"pipe", []ParamKind{ParamPtr}},
		unix.SYS_SELECT:     {"select", []ParamKind{ParamInt32, ParamPtr, ParamPtr, ParamPtr, ParamPtr}},
		unix.SYS_DUP2:       {"dup2", []ParamKind{ParamInt32, ParamInt32}},
		unix.SYS_FORK:       {"fork", nil},
		unix.SYS_VFORK:      {"vfork", nil},
		unix.SYS_MKDIR:      {"mkdir", []ParamKind{ParamCString, ParamUint32}},
		unix.SYS_RMDIR:      {"rmdir", []ParamKind{ParamCString}},
		unix.SYS_UNLINK:     {"unlink", []ParamKind{ParamCString}},
		unix.SYS_READLINK:   {"readlink", []ParamKind{ParamCString, ParamPtr, ParamUint64}},
		unix.SYS_TIME:       {"time", []ParamKind{ParamPtr}},
		unix.SYS_ALARM:      {"alarm", []ParamKind{ParamUint32}},
		unix.SYS_ARCH_PRCTL: {"arch_prctl", []ParamKind{ParamInt32, ParamUint64}},
	} {
		syscallTable[nr] = e
	}
}
