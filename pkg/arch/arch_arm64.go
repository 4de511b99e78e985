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

//go:build arm64
// +build arm64

package arch

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Host specifies the host architecture.
const Host = ARM64

// Registers is the general-purpose register file of an aarch64 tracee
// (user_pt_regs), as transferred by PTRACE_GETREGSET/NT_PRSTATUS.
type Registers = unix.PtraceRegs

// FPRegisters mirrors the aarch64 user_fpsimd_struct transferred by
// NT_FPREGSET. Vregs holds V0..V31 as 32 two-word groups.
type FPRegisters struct {
	Vregs [64]uint64
	Fpsr  uint32
	Fpcr  uint32
	_     [2]uint32
}

// Register argument budgets for the call path used here. Floating-point
// arguments and stack-spilled arguments are not supported on aarch64.
const (
	MaxIntArgs = 6
	MaxFPArgs  = 0
)

// IP returns the program counter.
func IP(r *Registers) uint64 { return r.Pc }

// SetIP sets the program counter.
func SetIP(r *Registers, v uint64) { r.Pc = v }

// SP returns the stack pointer.
func SP(r *Registers) uint64 { return r.Sp }

// SetSP sets the stack pointer.
func SetSP(r *Registers, v uint64) { r.Sp = v }

// SetSyscall places nr and args in the syscall convention registers:
// number in x8, arguments in x0..x5. See syscall(2).
func SetSyscall(r *Registers, nr uint64, args [6]uint64) {
	copy(r.Regs[:6], args[:])
	r.Regs[8] = nr
}

// SetIntArg places v in the n-th AAPCS64 integer argument register.
func SetIntArg(r *Registers, n int, v uint64) error {
	if n >= MaxIntArgs {
		return &ErrTooManyArgs{Kind: "integer", Max: MaxIntArgs}
	}
	r.Regs[n] = v
	return nil
}

// SetFPArg always fails: floating-point call arguments are unsupported on
// aarch64.
func SetFPArg(*FPRegisters, int, uint64) error {
	return &ErrTooManyArgs{Kind: "floating-point", Max: MaxFPArgs}
}

// IntReturn reads the integer/pointer return register x0.
func IntReturn(r *Registers) uint64 { return r.Regs[0] }

// FPReturn always reads zero: floating-point returns are unsupported on
// aarch64.
func FPReturn(*FPRegisters) uint64 { return 0 }

// TrapInstructions is the return-landing encoding, 32-bit aligned:
//
//	brk #0x1234 - d4224680
//	nop         - d503201f
func TrapInstructions() [InjectLen]byte {
	return [InjectLen]byte{0x80, 0x46, 0x22, 0xD4, 0x1F, 0x20, 0x03, 0xD5}
}

// SyscallInstructions is the injected syscall stub, 32-bit aligned:
//
//	svc #0 - d4000001
//	nop    - d503201f
func SyscallInstructions() [InjectLen]byte {
	return [InjectLen]byte{0x01, 0x00, 0x00, 0xD4, 0x1F, 0x20, 0x03, 0xD5}
}

// ReturnAddressOnStack reports that AAPCS64 passes the return address in
// the link register, not on the stack.
const ReturnAddressOnStack = false

// SetLinkRegister installs the return address in LR (x30).
func SetLinkRegister(r *Registers, v uint64) {
	r.Regs[30] = v
}

// NZCV condition flag bits of PSTATE, shifted down from bit 28.
const (
	nzcvShift       = 28
	negativeFlagBit = 0b1000
	zeroFlagBit     = 0b0100
	carryFlagBit    = 0b0010
	overflowFlagBit = 0b0001
)

func nzcv(r *Registers) uint64 { return (r.Pstate >> nzcvShift) & 0xF }

// ZeroSet reports the Z condition flag.
func ZeroSet(r *Registers) bool { return nzcv(r)&zeroFlagBit != 0 }

// CarrySet reports the C condition flag.
func CarrySet(r *Registers) bool { return nzcv(r)&carryFlagBit != 0 }

// NegativeSet reports the N condition flag.
func NegativeSet(r *Registers) bool { return nzcv(r)&negativeFlagBit != 0 }

// OverflowSet reports the V condition flag.
func OverflowSet(r *Registers) bool { return nzcv(r)&overflowFlagBit != 0 }

// RegisterMap returns named views of the general-purpose registers.
func RegisterMap(r *Registers) map[string]uint64 {
	out := make(map[string]uint64, 34)
	for i, v := range r.Regs {
		out[fmtReg(i)] = v
	}
	out["sp"] = r.Sp
	out["pc"] = r.Pc
	out["pstate"] = r.Pstate
	return out
}

func fmtReg(i int) string {
	if i == 30 {
		return "lr"
	}
	const digits = "0123456789"
	if i < 10 {
		return "x" + digits[i:i+1]
	}
	return "x" + digits[i/10:i/10+1] + digits[i%10:i%10+1]
}

// RegsBytes exposes the register file as the byte buffer GETREGSET and
// SETREGSET transfer.
func RegsBytes(r *Registers) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(r)), unsafe.Sizeof(*r))
}

// FPRegsBytes exposes the FP register file as its regset byte buffer.
func FPRegsBytes(f *FPRegisters) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(f)), unsafe.Sizeof(*f))
}
