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
	"testing"

	"github.com/asmgrader/asmgrader/pkg/linux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestLookupSyscallKnown(t *testing.T) {
	e := lookupSyscall(uint64(unix.SYS_WRITE))
	assert.Equal(t, "write", e.Name)
	require.Len(t, e.Params, 3)
	assert.Equal(t, ParamInt32, e.Params[0])
	assert.Equal(t, ParamPtr, e.Params[1])
	assert.Equal(t, ParamUint64, e.Params[2])
}

func TestLookupSyscallUnknown(t *testing.T) {
	e := lookupSyscall(999999)
	assert.Equal(t, "<unknown (999999)>", e.Name)
	assert.Len(t, e.Params, 6)
}

func TestDecodeArgScalars(t *testing.T) {
	tr := &Tracer{}

	a := tr.decodeArg(0xFFFFFFFF, ParamInt32)
	assert.Equal(t, ArgInt32, a.Kind)
	assert.Equal(t, int64(-1), a.Int, "32-bit args sign-extend from the low word")

	a = tr.decodeArg(0xFFFFFFFF, ParamUint32)
	assert.Equal(t, ArgUint32, a.Kind)
	assert.Equal(t, uint64(0xFFFFFFFF), a.Uint)

	a = tr.decodeArg(^uint64(0), ParamInt64)
	assert.Equal(t, int64(-1), a.Int)

	a = tr.decodeArg(0xDEAD0000, ParamPtr)
	assert.Equal(t, ArgPointer, a.Kind)
	assert.Equal(t, uint64(0xDEAD0000), a.Ptr)
}

func TestDecodeArgNullStringDegradesToPointer(t *testing.T) {
	tr := &Tracer{}
	a := tr.decodeArg(0, ParamCString)
	assert.Equal(t, ArgPointer, a.Kind)
	assert.Equal(t, uint64(0), a.Ptr)
}

func TestEntryRecordDecodesPerTable(t *testing.T) {
	tr := &Tracer{}
	rec := tr.entryRecord(linux.SyscallInfo{
		Op:                 linux.SyscallInfoEntry,
		Nr:                 uint64(unix.SYS_EXIT_GROUP),
		Args:               [6]uint64{42},
		InstructionPointer: 0x401000,
		StackPointer:       0x7ffc0000,
	})

	assert.Equal(t, "exit_group", rec.Name)
	require.Len(t, rec.Args, 1)
	assert.Equal(t, int64(42), rec.Args[0].Int)
	assert.Equal(t, uint64(0x401000), rec.InstructionPointer)
	assert.Nil(t, rec.Ret)
}

func TestExitRetErrnoMapping(t *testing.T) {
	r := exitRet(linux.SyscallInfo{Op: linux.SyscallInfoExit, Rval: -int64(unix.ENOENT), IsError: true})
	assert.Equal(t, unix.ENOENT, r.Errno)
	assert.Error(t, r.Err())

	r = exitRet(linux.SyscallInfo{Op: linux.SyscallInfoExit, Rval: 17})
	assert.Equal(t, int64(17), r.Value)
	assert.NoError(t, r.Err())
}

func TestSyscallRecordString(t *testing.T) {
	rec := SyscallRecord{
		Name: "write",
		Args: []Arg{
			{Kind: ArgInt32, Int: 1},
			{Kind: ArgPointer, Ptr: 0x402000},
			{Kind: ArgUint64, Uint: 22},
		},
		Ret: &Ret{Value: 22},
	}
	assert.Equal(t, "write(1, 0x402000, 22) = 22", rec.String())

	rec.Ret = nil
	assert.Contains(t, rec.String(), "<pending>")
}

func TestRunResultString(t *testing.T) {
	assert.Equal(t, "exited(42)", RunResult{Kind: RunExited, Code: 42}.String())
	assert.Contains(t, RunResult{Kind: RunSignalCaught, Code: int(unix.SIGTRAP)}.String(), "signal")
}
