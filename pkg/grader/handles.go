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

package grader

import (
	"strings"

	"github.com/asmgrader/asmgrader/pkg/program"
	"github.com/asmgrader/asmgrader/pkg/tracer"
)

// Buffer owns a fixed-size region inside the child's scratch page. It
// holds a non-owning reference to the program; restarting the program
// invalidates it.
type Buffer struct {
	prog *program.Program
	addr uint64
	size int
}

// Addr returns the buffer's child address.
func (b *Buffer) Addr() uint64 { return b.addr }

// Size returns the buffer's capacity in bytes.
func (b *Buffer) Size() int { return b.size }

// Arg passes the buffer's address as a call argument. This is the only
// sanctioned way to hand a child-memory address to an injected call.
func (b *Buffer) Arg() tracer.Value {
	return tracer.AddrValue(b.addr)
}

// Bytes reads the buffer's full contents.
func (b *Buffer) Bytes() ([]byte, error) {
	return b.prog.Subprocess().Tracer().Memory().ReadBytes(b.addr, b.size)
}

// Str reads the buffer and returns the bytes before the first NUL.
func (b *Buffer) Str() (string, error) {
	raw, err := b.Bytes()
	if err != nil {
		return "", err
	}
	if i := strings.IndexByte(string(raw), 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw), nil
}

// Write stores data at the start of the buffer.
func (b *Buffer) Write(data []byte) error {
	_, err := b.prog.Subprocess().Tracer().Memory().WriteBytes(b.addr, data)
	return err
}

// Zero clears the buffer.
func (b *Buffer) Zero() error {
	return b.prog.Subprocess().Tracer().Memory().Zero(b.addr, b.size)
}

// Symbol wraps a resolved data symbol's address. The resolution error, if
// any, is deferred to the first typed read so that tests can chain lookups
// without unwinding.
type Symbol struct {
	prog *program.Program
	name string
	addr uint64
	err  error
}

// Name returns the symbol name requested.
func (s *Symbol) Name() string { return s.name }

// Addr returns the symbol's address and any resolution error.
func (s *Symbol) Addr() (uint64, error) { return s.addr, s.err }

// Uint64 reads the symbol as an 8-byte unsigned integer.
func (s *Symbol) Uint64() (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.prog.Subprocess().Tracer().Memory().ReadUint64(s.addr)
}

// Int64 reads the symbol as an 8-byte signed integer.
func (s *Symbol) Int64() (int64, error) {
	v, err := s.Uint64()
	return int64(v), err
}

// Uint32 reads the symbol as a 4-byte unsigned integer.
func (s *Symbol) Uint32() (uint32, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.prog.Subprocess().Tracer().Memory().ReadUint32(s.addr)
}

// Float64 reads the symbol as an 8-byte IEEE-754 value.
func (s *Symbol) Float64() (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.prog.Subprocess().Tracer().Memory().ReadFloat64(s.addr)
}

// Str reads the symbol as a NUL-terminated string.
func (s *Symbol) Str() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.prog.Subprocess().Tracer().Memory().ReadString(s.addr)
}

// Bytes reads n raw bytes at the symbol.
func (s *Symbol) Bytes(n int) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.prog.Subprocess().Tracer().Memory().ReadBytes(s.addr, n)
}

// Set writes a serializable value at the symbol.
func (s *Symbol) Set(v any) error {
	if s.err != nil {
		return s.err
	}
	_, err := s.prog.Subprocess().Tracer().Memory().Write(s.addr, v)
	return err
}

// Function wraps a named function of the child. Resolution is performed
// at call time through the program, so a handle stays valid across a
// restart; a lookup failure observed at find time is carried so the
// eventual call reports it.
type Function struct {
	prog *program.Program
	name string
	err  error
}

// Name returns the function name requested.
func (f *Function) Name() string { return f.name }

// Call invokes the function with the given arguments and return kind.
func (f *Function) Call(ret tracer.RetKind, args ...tracer.Value) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.prog.CallFunction(f.name, ret, args...)
}

// CallVoid invokes the function discarding any return value.
func (f *Function) CallVoid(args ...tracer.Value) error {
	_, err := f.Call(tracer.RetVoid, args...)
	return err
}

// CallUint64 invokes the function and reads an unsigned integer return.
func (f *Function) CallUint64(args ...tracer.Value) (uint64, error) {
	return f.Call(tracer.RetInt, args...)
}

// CallInt64 invokes the function and reads a signed integer return.
func (f *Function) CallInt64(args ...tracer.Value) (int64, error) {
	v, err := f.Call(tracer.RetInt, args...)
	return int64(v), err
}
