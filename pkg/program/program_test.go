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

package program

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/asmgrader/asmgrader/pkg/errdefs"
	"github.com/asmgrader/asmgrader/pkg/tracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fixtureAsm is a minimal static student binary: a greeting writer at
// _start plus the functions the harness scenarios exercise.
const fixtureAsm = `
	.text
	.globl _start, sum, sum_and_write, timeout_fn, segfaulting_fn, exiting_fn

_start:
	mov $1, %rax
	mov $1, %rdi
	lea strHello(%rip), %rsi
	mov $22, %rdx
	syscall
	mov $60, %rax
	mov $42, %rdi
	syscall

sum:
	lea (%rdi, %rsi), %rax
	ret

sum_and_write:
	lea (%rdi, %rsi), %rax
	movq %rax, outBuf(%rip)
	mov $1, %rax
	mov $1, %rdi
	lea outBuf(%rip), %rsi
	mov $8, %rdx
	syscall
	ret

timeout_fn:
	jmp timeout_fn

segfaulting_fn:
	xor %rax, %rax
	movq (%rax), %rax
	ret

exiting_fn:
	mov $60, %rax
	syscall

	.data
strHello:
	.ascii "Hello, from assembly!\n"
outBuf:
	.quad 0
`

// buildFixture assembles and links the fixture, skipping the test when no
// toolchain is available.
func buildFixture(t *testing.T) string {
	t.Helper()

	as, err := exec.LookPath("as")
	if err != nil {
		t.Skip("no assembler available")
	}
	ld, err := exec.LookPath("ld")
	if err != nil {
		t.Skip("no linker available")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "fixture.s")
	obj := filepath.Join(dir, "fixture.o")
	bin := filepath.Join(dir, "fixture")

	require.NoError(t, os.WriteFile(src, []byte(fixtureAsm), 0o644))

	out, err := exec.Command(as, "-o", obj, src).CombinedOutput()
	require.NoError(t, err, "as: %s", out)
	out, err = exec.Command(ld, "-o", bin, obj).CombinedOutput()
	require.NoError(t, err, "ld: %s", out)

	return bin
}

// newFixtureProgram constructs a Program over the fixture, skipping when
// the environment forbids ptrace.
func newFixtureProgram(t *testing.T) *Program {
	t.Helper()

	prog, err := New(buildFixture(t), nil)
	if err != nil && (errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES)) {
		t.Skipf("ptrace not permitted here: %v", err)
	}
	require.NoError(t, err)
	t.Cleanup(prog.Close)
	return prog
}

func TestRunHelloFixture(t *testing.T) {
	prog := newFixtureProgram(t)

	res, err := prog.Run()
	require.NoError(t, err)
	assert.Equal(t, tracer.RunExited, res.Kind)
	assert.Equal(t, 42, res.Code)

	out, err := prog.Subprocess().ReadStdout()
	require.NoError(t, err)
	assert.Equal(t, "Hello, from assembly!\n", out)

	recs := prog.Subprocess().Tracer().Records()
	require.GreaterOrEqual(t, len(recs), 2)
	assert.Equal(t, "write", recs[0].Name)
	assert.Equal(t, "exit", recs[len(recs)-1].Name)
}

func TestCallSum(t *testing.T) {
	prog := newFixtureProgram(t)

	for _, tc := range []struct{ a, b, want uint64 }{
		{0, 0, 0},
		{1, 2, 3},
		{^uint64(0), ^uint64(0) - 11, ^uint64(0) - 12},
	} {
		got, err := prog.CallFunction("sum", tracer.RetInt,
			tracer.IntValue(tc.a), tracer.IntValue(tc.b))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "sum(%d, %d)", tc.a, tc.b)
	}
}

func TestCallIdempotence(t *testing.T) {
	prog := newFixtureProgram(t)

	first, err := prog.CallFunction("sum", tracer.RetInt, tracer.IntValue(7), tracer.IntValue(8))
	require.NoError(t, err)
	recsAfterFirst := len(prog.Subprocess().Tracer().Records())

	second, err := prog.CallFunction("sum", tracer.RetInt, tracer.IntValue(7), tracer.IntValue(8))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// A pure arithmetic function makes no syscalls.
	assert.Equal(t, recsAfterFirst, len(prog.Subprocess().Tracer().Records()))
}

func TestSumAndWrite(t *testing.T) {
	prog := newFixtureProgram(t)

	cases := []struct {
		a, b uint64
		want string
	}{
		{0, 0, "\x00\x00\x00\x00\x00\x00\x00\x00"},
		{0x61, 5, "f\x00\x00\x00\x00\x00\x00\x00"},
		{0x1010101010101010, 0x1010101010101010, "        "},
	}
	for _, tc := range cases {
		_, err := prog.CallFunction("sum_and_write", tracer.RetVoid,
			tracer.IntValue(tc.a), tracer.IntValue(tc.b))
		require.NoError(t, err)

		out, err := prog.Subprocess().ReadStdout()
		require.NoError(t, err)
		assert.Equal(t, tc.want, out)
	}
}

func TestTimeoutRecovery(t *testing.T) {
	prog := newFixtureProgram(t)

	_, err := prog.CallFunction("timeout_fn", tracer.RetVoid)
	require.ErrorIs(t, err, errdefs.ErrTimedOut)

	got, err := prog.CallFunction("sum", tracer.RetInt, tracer.IntValue(128), tracer.IntValue(42))
	require.NoError(t, err)
	assert.Equal(t, uint64(170), got)

	// And the timeout is reproducible.
	_, err = prog.CallFunction("timeout_fn", tracer.RetVoid)
	require.ErrorIs(t, err, errdefs.ErrTimedOut)
}

func TestSegfaultIsolation(t *testing.T) {
	prog := newFixtureProgram(t)

	_, err := prog.CallFunction("segfaulting_fn", tracer.RetInt)
	require.ErrorIs(t, err, errdefs.ErrUnexpectedReturn)

	got, err := prog.CallFunction("sum", tracer.RetInt, tracer.IntValue(128), tracer.IntValue(42))
	require.NoError(t, err)
	assert.Equal(t, uint64(170), got)
}

func TestExitInterception(t *testing.T) {
	prog := newFixtureProgram(t)

	_, err := prog.CallFunction("exiting_fn", tracer.RetVoid, tracer.IntValue(42))
	require.ErrorIs(t, err, errdefs.ErrUnexpectedReturn)

	// The post-call restart leaves a live subprocess behind.
	assert.True(t, prog.Subprocess().IsAlive())
}

func TestRestartInvalidation(t *testing.T) {
	prog := newFixtureProgram(t)

	oldPid := prog.Subprocess().Pid()
	_, err := prog.CallFunction("sum", tracer.RetInt, tracer.IntValue(1), tracer.IntValue(1))
	require.NoError(t, err)

	require.NoError(t, prog.Restart())

	assert.NotEqual(t, oldPid, prog.Subprocess().Pid())
	assert.Empty(t, prog.Subprocess().Tracer().Records())
}

func TestSymbolResolution(t *testing.T) {
	prog := newFixtureProgram(t)

	_, ok := prog.SymbolTable().Find("_start")
	assert.True(t, ok)
	_, ok = prog.SymbolTable().Find("strHello")
	assert.True(t, ok)

	_, err := prog.CallFunction("abc123_nonexistent", tracer.RetVoid)
	assert.ErrorIs(t, err, errdefs.ErrUnresolvedSymbol)
}

func TestMemoryRoundTrips(t *testing.T) {
	prog := newFixtureProgram(t)
	mem := prog.Subprocess().Tracer().Memory()

	addr, err := prog.AllocMem(64)
	require.NoError(t, err)

	// Plain-data round trip.
	_, err = mem.Write(addr, uint64(0xDEADBEEFCAFEF00D))
	require.NoError(t, err)
	v, err := mem.ReadUint64(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDEADBEEFCAFEF00D), v)

	// String round trip: terminator present just past the content.
	_, err = mem.Write(addr, "hello there")
	require.NoError(t, err)
	s, err := mem.ReadString(addr)
	require.NoError(t, err)
	assert.Equal(t, "hello there", s)
	nul, err := mem.ReadUint8(addr + uint64(len(s)))
	require.NoError(t, err)
	assert.Zero(t, nul)

	// Unaligned reads cross word boundaries correctly.
	sub, err := mem.ReadBytes(addr+3, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("lo the"), sub)
}

func TestAllocMemExhaustion(t *testing.T) {
	prog := newFixtureProgram(t)

	// The persistent region is capped at 3/4 of the scratch page.
	_, err := prog.AllocMem(tracer.ScratchLen * 3 / 4)
	assert.Error(t, err)

	_, err = prog.AllocMem(1024)
	require.NoError(t, err)
}

func TestExecSyscallGetpid(t *testing.T) {
	prog := newFixtureProgram(t)

	rec, err := prog.Subprocess().Tracer().ExecuteSyscall(uint64(unix.SYS_GETPID), [6]uint64{})
	require.NoError(t, err)
	require.NotNil(t, rec.Ret)
	assert.Equal(t, int64(prog.Subprocess().Pid()), rec.Ret.Value)
}
