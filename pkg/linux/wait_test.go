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
	"os/exec"
	"testing"
	"time"

	"github.com/asmgrader/asmgrader/pkg/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestDecode(t *testing.T) {
	const sigtrap = uint32(unix.SIGTRAP)

	tests := []struct {
		name string
		si   SiginfoChld
		want WaitEvent
	}{
		{
			name: "exited",
			si:   SiginfoChld{Code: unix.CLD_EXITED, Status: 42},
			want: WaitEvent{Kind: Exited, ExitCode: 42},
		},
		{
			name: "killed",
			si:   SiginfoChld{Code: unix.CLD_KILLED, Status: int32(unix.SIGKILL)},
			want: WaitEvent{Kind: Killed, Signal: unix.SIGKILL},
		},
		{
			name: "dumped",
			si:   SiginfoChld{Code: unix.CLD_DUMPED, Status: int32(unix.SIGSEGV)},
			want: WaitEvent{Kind: Dumped, Signal: unix.SIGSEGV},
		},
		{
			name: "plain signal stop",
			si:   SiginfoChld{Code: unix.CLD_TRAPPED, Status: int32(unix.SIGSEGV)},
			want: WaitEvent{Kind: Trapped, Signal: unix.SIGSEGV},
		},
		{
			name: "syscall trap",
			si:   SiginfoChld{Code: unix.CLD_TRAPPED, Status: int32(sigtrap | 0x80)},
			want: WaitEvent{Kind: Trapped, Signal: unix.SIGTRAP, IsSyscallTrap: true},
		},
		{
			name: "exec event",
			si:   SiginfoChld{Code: unix.CLD_TRAPPED, Status: int32(sigtrap | unix.PTRACE_EVENT_EXEC<<8)},
			want: WaitEvent{Kind: Trapped, Signal: unix.SIGTRAP, PtraceEvent: unix.PTRACE_EVENT_EXEC},
		},
		{
			name: "stopped",
			si:   SiginfoChld{Code: unix.CLD_STOPPED, Status: int32(unix.SIGSTOP)},
			want: WaitEvent{Kind: Stopped, Signal: unix.SIGSTOP},
		},
		{
			name: "unknown code degrades to stopped",
			si:   SiginfoChld{Code: 0x7fff, Status: int32(unix.SIGUSR1)},
			want: WaitEvent{Kind: Stopped, Signal: unix.SIGUSR1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decode(tc.si))
		})
	}
}

func TestDecodeSyscallInfoEntry(t *testing.T) {
	raw := make([]byte, syscallInfoSize)
	raw[0] = SyscallInfoEntry
	byteOrder.PutUint32(raw[4:], 0xC000003E)
	byteOrder.PutUint64(raw[8:], 0x401000)
	byteOrder.PutUint64(raw[16:], 0x7ffdeadbeef0)
	byteOrder.PutUint64(raw[24:], 1) // write
	for i := 0; i < 6; i++ {
		byteOrder.PutUint64(raw[32+8*i:], uint64(10+i))
	}

	info := decodeSyscallInfo(raw)
	assert.Equal(t, uint8(SyscallInfoEntry), info.Op)
	assert.Equal(t, uint64(0x401000), info.InstructionPointer)
	assert.Equal(t, uint64(0x7ffdeadbeef0), info.StackPointer)
	assert.Equal(t, uint64(1), info.Nr)
	assert.Equal(t, [6]uint64{10, 11, 12, 13, 14, 15}, info.Args)
}

func TestDecodeSyscallInfoExit(t *testing.T) {
	raw := make([]byte, syscallInfoSize)
	raw[0] = SyscallInfoExit
	byteOrder.PutUint64(raw[24:], uint64(^uint64(0)-1)) // rval -2
	raw[32] = 1

	info := decodeSyscallInfo(raw)
	assert.Equal(t, uint8(SyscallInfoExit), info.Op)
	assert.Equal(t, int64(-2), info.Rval)
	assert.True(t, info.IsError)
}

func TestWaitTimeoutExpires(t *testing.T) {
	// A sleeping child delivers no event, so the poll loop must run out
	// its budget.
	cmd := exec.Command("sleep", "10")
	require.NoError(t, cmd.Start())
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()

	start := time.Now()
	_, err := WaitTimeout(cmd.Process.Pid, 5*time.Millisecond, 100*time.Microsecond)
	require.ErrorIs(t, err, errdefs.ErrTimedOut)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestReadProcStatSelf(t *testing.T) {
	st, err := ReadProcStat(unix.Getpid())
	require.NoError(t, err)
	assert.Equal(t, unix.Getpid(), st.Pid)
	assert.NotZero(t, st.PPid)
	assert.NotEqual(t, byte('Z'), st.State)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "exited", Exited.String())
	assert.Equal(t, "trapped", Trapped.String())
}
