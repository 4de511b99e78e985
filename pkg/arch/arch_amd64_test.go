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

//go:build amd64
// +build amd64

package arch

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSyscallConvention(t *testing.T) {
	var regs Registers
	SetSyscall(&regs, 9, [6]uint64{1, 2, 3, 4, 5, 6})

	assert.Equal(t, uint64(9), regs.Rax)
	assert.Equal(t, uint64(1), regs.Rdi)
	assert.Equal(t, uint64(2), regs.Rsi)
	assert.Equal(t, uint64(3), regs.Rdx)
	assert.Equal(t, uint64(4), regs.R10)
	assert.Equal(t, uint64(5), regs.R8)
	assert.Equal(t, uint64(6), regs.R9)
}

func TestSetIntArgOrder(t *testing.T) {
	var regs Registers
	for i := 0; i < MaxIntArgs; i++ {
		require.NoError(t, SetIntArg(&regs, i, uint64(100+i)))
	}

	assert.Equal(t, uint64(100), regs.Rdi)
	assert.Equal(t, uint64(101), regs.Rsi)
	assert.Equal(t, uint64(102), regs.Rdx)
	assert.Equal(t, uint64(103), regs.Rcx)
	assert.Equal(t, uint64(104), regs.R8)
	assert.Equal(t, uint64(105), regs.R9)

	err := SetIntArg(&regs, MaxIntArgs, 1)
	assert.Error(t, err)
}

func TestSetFPArgPlacement(t *testing.T) {
	var fp FPRegisters
	require.NoError(t, SetFPArg(&fp, 0, 0x1122334455667788))
	assert.Equal(t, uint32(0x55667788), fp.XmmSpace[0])
	assert.Equal(t, uint32(0x11223344), fp.XmmSpace[1])

	require.NoError(t, SetFPArg(&fp, 3, 0xDEADBEEF))
	assert.Equal(t, uint32(0xDEADBEEF), fp.XmmSpace[12])

	assert.Error(t, SetFPArg(&fp, MaxFPArgs, 0))
}

func TestFPReturnReadsXMM0(t *testing.T) {
	var fp FPRegisters
	fp.XmmSpace[0] = 0x55667788
	fp.XmmSpace[1] = 0x11223344
	assert.Equal(t, uint64(0x1122334455667788), FPReturn(&fp))
}

func TestInstructionEncodings(t *testing.T) {
	trap := TrapInstructions()
	require.Len(t, trap[:], InjectLen)
	// int3 followed by nop padding.
	assert.Equal(t, byte(0xCC), trap[0])
	for _, b := range trap[1:] {
		assert.Equal(t, byte(0x90), b)
	}

	sys := SyscallInstructions()
	require.Len(t, sys[:], InjectLen)
	// syscall followed by nop padding.
	assert.Equal(t, []byte{0x0F, 0x05}, sys[:2])
}

func TestIPAndSPAccessors(t *testing.T) {
	var regs Registers
	SetIP(&regs, 0x401000)
	SetSP(&regs, 0x7ffc0000)
	assert.Equal(t, uint64(0x401000), IP(&regs))
	assert.Equal(t, uint64(0x7ffc0000), SP(&regs))
	assert.Equal(t, uint64(0x401000), RegisterMap(&regs)["rip"])
}

func TestConditionFlags(t *testing.T) {
	var regs Registers
	regs.Eflags = zeroFlagBit | carryFlagBit
	assert.True(t, ZeroSet(&regs))
	assert.True(t, CarrySet(&regs))
	assert.False(t, NegativeSet(&regs))
	assert.False(t, OverflowSet(&regs))
}

func TestFPRegistersLayoutSize(t *testing.T) {
	// The regset transfer depends on matching the kernel's 512-byte
	// user_fpregs_struct exactly.
	assert.Equal(t, uintptr(512), unsafe.Sizeof(FPRegisters{}))
}
