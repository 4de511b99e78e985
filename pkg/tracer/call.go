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
	"math"

	"github.com/asmgrader/asmgrader/pkg/arch"
	"github.com/sirupsen/logrus"
)

// valueKind discriminates Value.
type valueKind int

const (
	valueInt valueKind = iota
	valueFloat32
	valueFloat64
	valueBytes
)

// Value is one argument for a function call injected into the tracee.
// Integral and pointer-sized values travel in integer argument registers;
// floats in FP registers; byte aggregates are staged into the scratch page
// and passed by address. There is deliberately no constructor taking a
// host pointer; child addresses are passed as plain integers, through
// AddrValue or IntValue.
type Value struct {
	kind valueKind
	bits uint64
	data []byte
}

// IntValue passes v in the next integer argument register. Signed values
// are passed via their two's-complement image.
func IntValue(v uint64) Value {
	return Value{kind: valueInt, bits: v}
}

// AddrValue passes a child address in the next integer argument register.
// The address must come from the harness's own scratch allocations.
func AddrValue(addr uint64) Value {
	return Value{kind: valueInt, bits: addr}
}

// Float64Value passes v in the next floating-point argument register.
func Float64Value(v float64) Value {
	return Value{kind: valueFloat64, bits: math.Float64bits(v)}
}

// Float32Value passes v in the next floating-point argument register.
func Float32Value(v float32) Value {
	return Value{kind: valueFloat32, bits: uint64(math.Float32bits(v))}
}

// BytesValue stages data into the scratch page and passes its address in
// the next integer argument register.
func BytesValue(data []byte) Value {
	return Value{kind: valueBytes, data: data}
}

// RetKind declares how a function's return value is read.
type RetKind int

const (
	// RetVoid reads nothing.
	RetVoid RetKind = iota
	// RetInt reads the ABI's integer/pointer return register.
	RetInt
	// RetFloat32 reads the low 4 bytes of the FP return register.
	RetFloat32
	// RetFloat64 reads the low 8 bytes of the FP return register.
	RetFloat64
)

// SetupFunctionCall prepares the stopped tracee to call a function:
// the per-call scratch cursor is reset, a return landing is installed, and
// every argument is placed per the ABI. The caller then jumps to the
// function address and runs; the landing's trap marks the return.
func (t *Tracer) SetupFunctionCall(args ...Value) error {
	t.assertInvariants()

	// Entering a new call: reclaim all per-call scratch.
	t.scratchUsed = 0

	if err := t.setupFunctionReturn(); err != nil {
		return err
	}

	intRegs, err := t.GetRegisters()
	if err != nil {
		return err
	}
	fpRegs, err := t.GetFPRegisters()
	if err != nil {
		return err
	}

	numInt, numFP := 0, 0
	for _, a := range args {
		switch a.kind {
		case valueFloat32, valueFloat64:
			if err := arch.SetFPArg(&fpRegs, numFP, a.bits); err != nil {
				return err
			}
			numFP++

		case valueBytes:
			loc := t.scratchBase + t.scratchUsed
			n, err := t.mem.WriteBytes(loc, a.data)
			if err != nil {
				return err
			}
			t.scratchUsed += uint64(n)
			if err := arch.SetIntArg(&intRegs, numInt, loc); err != nil {
				return err
			}
			numInt++

		default:
			if err := arch.SetIntArg(&intRegs, numInt, a.bits); err != nil {
				return err
			}
			numInt++
		}
	}

	if err := t.SetRegisters(intRegs); err != nil {
		return err
	}
	return t.SetFPRegisters(fpRegs)
}

// setupFunctionReturn writes a trap landing into scratch and installs its
// address as the pending call's return address: on the stack for x86-64,
// in the link register on aarch64.
func (t *Tracer) setupFunctionReturn() error {
	regs, err := t.GetRegisters()
	if err != nil {
		return err
	}

	returnLoc := t.scratchBase + t.scratchUsed

	instrs := arch.TrapInstructions()
	if _, err := t.mem.WriteBytes(returnLoc, instrs[:]); err != nil {
		return err
	}
	t.scratchUsed += uint64(len(instrs))

	if arch.ReturnAddressOnStack {
		sp := arch.SP(&regs) - 8
		arch.SetSP(&regs, sp)
		if _, err := t.mem.Write(sp, returnLoc); err != nil {
			return err
		}
	} else {
		arch.SetLinkRegister(&regs, returnLoc)
	}

	logrus.Tracef("return landing at %#x", returnLoc)
	return t.SetRegisters(regs)
}

// FunctionReturn reads the declared return value after a call trapped back
// through its landing. The raw register image is returned; the caller
// reinterprets signedness or float width.
func (t *Tracer) FunctionReturn(kind RetKind) (uint64, error) {
	switch kind {
	case RetVoid:
		return 0, nil

	case RetFloat32, RetFloat64:
		fpRegs, err := t.GetFPRegisters()
		if err != nil {
			return 0, err
		}
		bits := arch.FPReturn(&fpRegs)
		if kind == RetFloat32 {
			bits &= 0xFFFFFFFF
		}
		return bits, nil

	default:
		regs, err := t.GetRegisters()
		if err != nil {
			return 0, err
		}
		return arch.IntReturn(&regs), nil
	}
}
