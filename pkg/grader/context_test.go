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

package grader

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/asmgrader/asmgrader/pkg/errdefs"
	"github.com/asmgrader/asmgrader/pkg/program"
	"github.com/asmgrader/asmgrader/pkg/tracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// contextFixtureAsm is a tiny tracee for facade tests: an identity
// function, a data symbol, and an entry point that just exits.
const contextFixtureAsm = `
	.text
	.globl _start, identity

_start:
	mov $60, %rax
	mov $7, %rdi
	syscall

identity:
	mov %rdi, %rax
	ret

	.data
	.globl magicValue
magicValue:
	.quad 0x123456789ABCDEF0
`

func buildContextFixture(t *testing.T) string {
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

	require.NoError(t, os.WriteFile(src, []byte(contextFixtureAsm), 0o644))
	out, err := exec.Command(as, "-o", obj, src).CombinedOutput()
	require.NoError(t, err, "as: %s", out)
	out, err = exec.Command(ld, "-o", bin, obj).CombinedOutput()
	require.NoError(t, err, "ld: %s", out)

	return bin
}

func newFixtureContext(t *testing.T) *Context {
	t.Helper()

	prog, err := program.New(buildContextFixture(t), nil)
	if err != nil && (errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES)) {
		t.Skipf("ptrace not permitted here: %v", err)
	}
	require.NoError(t, err)
	t.Cleanup(prog.Close)

	test := &Test{Name: "facade", Weight: 1}
	return NewContext(test, prog, nil)
}

func TestContextSymbolRead(t *testing.T) {
	ctx := newFixtureContext(t)

	v, err := ctx.FindSymbol("magicValue").Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x123456789ABCDEF0), v)

	_, err = ctx.FindSymbol("no_such_symbol").Uint64()
	assert.ErrorIs(t, err, errdefs.ErrUnresolvedSymbol)
}

func TestContextFunctionCall(t *testing.T) {
	ctx := newFixtureContext(t)

	got, err := ctx.FindFunction("identity").CallUint64(tracer.IntValue(9001))
	require.NoError(t, err)
	assert.Equal(t, uint64(9001), got)

	_, err = ctx.FindFunction("no_such_fn").CallUint64()
	assert.ErrorIs(t, err, errdefs.ErrUnresolvedSymbol)
}

func TestContextBufferRoundTrip(t *testing.T) {
	ctx := newFixtureContext(t)

	buf, err := ctx.CreateBuffer(32)
	require.NoError(t, err)

	require.NoError(t, buf.Write([]byte("scratch data\x00trailing")))
	s, err := buf.Str()
	require.NoError(t, err)
	assert.Equal(t, "scratch data", s)

	require.NoError(t, buf.Zero())
	raw, err := buf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 32), raw)
}

func TestContextFlushStdin(t *testing.T) {
	ctx := newFixtureContext(t)

	// The fixture never reads stdin, so everything sent is still queued
	// in the pipe for the child-side drain to consume.
	require.NoError(t, ctx.SendStdin("unread input bytes"))

	n, err := ctx.FlushStdin()
	require.NoError(t, err)
	assert.Equal(t, len("unread input bytes"), n)

	// A second flush finds the pipe empty.
	n, err = ctx.FlushStdin()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestContextRunAndRegisters(t *testing.T) {
	ctx := newFixtureContext(t)

	_, _, err := ctx.Registers()
	require.NoError(t, err)

	res, err := ctx.Run()
	require.NoError(t, err)
	assert.Equal(t, tracer.RunExited, res.Kind)
	assert.Equal(t, 7, res.Code)
}
