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
	"unsafe"

	"golang.org/x/sys/unix"
)

// Host specifies the host architecture.
const Host = AMD64

// Registers is the general-purpose register file of an x86-64 tracee, as
// transferred by PTRACE_GETREGSET/NT_PRSTATUS.
type Registers = unix.PtraceRegs

// FPRegisters mirrors the x86-64 user_fpregs_struct transferred by
// NT_FPREGSET. XmmSpace holds XMM0..XMM15 as 16 four-word groups.
type FPRegisters struct {
	Cwd      uint16
	Swd      uint16
	Ftw      uint16
	Fop      uint16
	Rip      uint64
	Rdp      uint64
	Mxcsr    uint32
	MxcrMask uint32
	StSpace  [32]uint32
	XmmSpace [64]uint32
	Padding  [24]uint32
}

// Register argument budgets for the call path used here. Stack-spilled
// arguments are explicitly unsupported.
const (
	MaxIntArgs = 6
	MaxFPArgs  = 8
)

// IP returns the instruction pointer.
func IP(r *Registers) uint64 { return r.Rip }

// SetIP sets the instruction pointer.
func SetIP(r *Registers, v uint64) { r.Rip = v }

// SP returns the stack pointer.
func SP(r *Registers) uint64 { return r.Rsp }

// SetSP sets the stack pointer.
func SetSP(r *Registers, v uint64) { r.Rsp = v }

// SetSyscall places nr and args in the syscall convention registers:
// number in rax, arguments in rdi, rsi, rdx, r10, r8, r9. See syscall(2).
func SetSyscall(r *Registers, nr uint64, args [6]uint64) {
	r.Rax = nr
	r.Rdi = args[0]
	r.Rsi = args[1]
	r.Rdx = args[2]
	r.R10 = args[3]
	r.R8 = args[4]
	r.R9 = args[5]
}

// SetIntArg places v in the n-th SysV integer argument register.
func SetIntArg(r *Registers, n int, v uint64) error {
	switch n {
	case 0:
		r.Rdi = v
	case 1:
		r.Rsi = v
	case 2:
		r.Rdx = v
	case 3:
		r.Rcx = v
	case 4:
		r.R8 = v
	case 5:
		r.R9 = v
	default:
		return &ErrTooManyArgs{Kind: "integer", Max: MaxIntArgs}
	}
	return nil
}

// SetFPArg places the raw IEEE-754 image bits in the low lane of XMMn.
func SetFPArg(f *FPRegisters, n int, bits uint64) error {
	if n >= MaxFPArgs {
		return &ErrTooManyArgs{Kind: "floating-point", Max: MaxFPArgs}
	}
	f.XmmSpace[n*4] = uint32(bits)
	f.XmmSpace[n*4+1] = uint32(bits >> 32)
	return nil
}

// IntReturn reads the integer/pointer return register.
func IntReturn(r *Registers) uint64 { return r.Rax }

// FPReturn reads the low 8 bytes of XMM0 as a raw memory image. Callers
// take the low 4 bytes for float32 and all 8 for float64.
func FPReturn(f *FPRegisters) uint64 {
	return uint64(f.XmmSpace[0]) | uint64(f.XmmSpace[1])<<32
}

// TrapInstructions is the return-landing encoding: int3 padded with nops.
func TrapInstructions() [InjectLen]byte {
	return [InjectLen]byte{0xCC, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90}
}

// SyscallInstructions is the injected syscall stub: syscall padded with
// nops.
func SyscallInstructions() [InjectLen]byte {
	return [InjectLen]byte{0x0F, 0x05, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90}
}

// ReturnAddressOnStack reports that the SysV x86-64 ABI passes the return
// address on the stack rather than in a register.
const ReturnAddressOnStack = true

// SetLinkRegister is unused on x86-64; the return address lives on the
// stack (see ReturnAddressOnStack).
func SetLinkRegister(*Registers, uint64) {}

// EFLAGS status bits, per the Intel SDM vol. 1 §3.4.3.1.
const (
	carryFlagBit    = 1 << 0
	zeroFlagBit     = 1 << 6
	signFlagBit     = 1 << 7
	overflowFlagBit = 1 << 11
)

// ZeroSet reports the ZF status flag.
func ZeroSet(r *Registers) bool { return r.Eflags&zeroFlagBit != 0 }

// CarrySet reports the CF status flag.
func CarrySet(r *Registers) bool { return r.Eflags&carryFlagBit != 0 }

// NegativeSet reports the SF status flag.
func NegativeSet(r *Registers) bool { return r.Eflags&signFlagBit != 0 }

// OverflowSet reports the OF status flag.
func OverflowSet(r *Registers) bool { return r.Eflags&overflowFlagBit != 0 }

// RegisterMap returns named views of the general-purpose registers.
func RegisterMap(r *Registers) map[string]uint64 {
	return map[string]uint64{
		"rax": r.Rax, "rbx": r.Rbx, "rcx": r.Rcx, "rdx": r.Rdx,
		"rsi": r.Rsi, "rdi": r.Rdi, "rbp": r.Rbp, "rsp": r.Rsp,
		"r8": r.R8, "r9": r.R9, "r10": r.R10, "r11": r.R11,
		"r12": r.R12, "r13": r.R13, "r14": r.R14, "r15": r.R15,
		"rip": r.Rip, "eflags": r.Eflags,
	}
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
