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

package main

import (
	"errors"
	"fmt"

	"github.com/asmgrader/asmgrader/pkg/errdefs"
	"github.com/asmgrader/asmgrader/pkg/grader"
	"github.com/asmgrader/asmgrader/pkg/tracer"
)

// registry builds the assignments this binary can grade.
func registry() *grader.Registry {
	r := grader.NewRegistry()

	hello := grader.NewAssignment("hello", "*hello*")
	hello.AddTest("greeting and exit code", testHello)
	hello.AddTest("syscall history", testHelloSyscalls)
	r.Add(hello)

	sum := grader.NewAssignment("sum", "*sum*")
	sum.AddWeightedTest("sum returns correct values", 2, testSum)
	sum.AddTest("sum_and_write output", testSumAndWrite)
	sum.AddTest("fault recovery", testFaultRecovery)
	r.Add(sum)

	return r
}

// testHello checks the classic first fixture: _start writes a greeting
// and exits 42.
func testHello(ctx *grader.Context) error {
	res, err := ctx.Run()
	if err != nil {
		return err
	}

	ctx.Require(res.Kind == tracer.RunExited, "program runs to completion")
	ctx.Require(res.Code == 42, fmt.Sprintf("exit code is 42 (got %d)", res.Code))

	out, err := ctx.ReadStdout()
	if err != nil {
		return err
	}
	ctx.Require(out == "Hello, from assembly!\n", fmt.Sprintf("greeting printed (got %q)", out))

	return nil
}

// testHelloSyscalls checks that the fixture's write and exit are both
// observed, in order.
func testHelloSyscalls(ctx *grader.Context) error {
	if _, err := ctx.Run(); err != nil {
		return err
	}

	recs := ctx.SyscallRecords()
	if !ctx.Require(len(recs) >= 2, "at least two syscalls observed") {
		return nil
	}

	ctx.Require(recs[0].Name == "write", fmt.Sprintf("first syscall is write (got %s)", recs[0].Name))
	last := recs[len(recs)-1]
	ctx.Require(last.Name == "exit" || last.Name == "exit_group",
		fmt.Sprintf("last syscall is exit (got %s)", last.Name))

	return nil
}

// testSum drives sum(u64, u64) -> u64 through representative values,
// including wraparound.
func testSum(ctx *grader.Context) error {
	sum := ctx.FindFunction("sum")

	for _, tc := range []struct{ a, b, want uint64 }{
		{0, 0, 0},
		{1, 2, 3},
		{^uint64(0), ^uint64(0) - 11, ^uint64(0) - 12},
	} {
		got, err := sum.CallUint64(tracer.IntValue(tc.a), tracer.IntValue(tc.b))
		if err != nil {
			return err
		}
		ctx.Require(got == tc.want, fmt.Sprintf("sum(%d, %d) == %d (got %d)", tc.a, tc.b, tc.want, got))
	}

	return nil
}

// testSumAndWrite checks the void-returning variant that writes its result
// to stdout as eight raw bytes.
func testSumAndWrite(ctx *grader.Context) error {
	fn := ctx.FindFunction("sum_and_write")

	if err := fn.CallVoid(tracer.IntValue(0x61), tracer.IntValue(5)); err != nil {
		return err
	}

	out, err := ctx.ReadStdout()
	if err != nil {
		return err
	}
	ctx.Require(out == "f\x00\x00\x00\x00\x00\x00\x00", fmt.Sprintf("wrote sum byte padded to 8 (got %q)", out))

	return nil
}

// testFaultRecovery checks the harness isolation properties: a
// segfaulting callee must not poison subsequent calls.
func testFaultRecovery(ctx *grader.Context) error {
	bad := ctx.FindFunction("segfaulting_fn")
	_, err := bad.CallUint64()
	ctx.Require(errors.Is(err, errdefs.ErrUnexpectedReturn),
		fmt.Sprintf("segfaulting call reports unexpected return (got %v)", err))

	sum := ctx.FindFunction("sum")
	got, err := sum.CallUint64(tracer.IntValue(128), tracer.IntValue(42))
	if err != nil {
		return err
	}
	ctx.Require(got == 170, fmt.Sprintf("sum works after fault (got %d)", got))

	return nil
}
