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

// Package memio reads and writes a stopped tracee's memory through the
// word-at-a-time ptrace PEEKTEXT/POKETEXT interface, and layers typed
// serialization on top of the raw byte operations.
//
// A precondition to every operation here is that the tracee is stopped.
// Any underlying ptrace error aborts the whole operation; there is no
// partial-read semantics.
package memio

import (
	"github.com/asmgrader/asmgrader/pkg/linux"
)

// wordSize is the native word granularity of PEEKTEXT/POKETEXT on both
// supported architectures.
const wordSize = 8

// MemoryIO is a data pipeline between the tracer and one tracee's address
// space.
type MemoryIO struct {
	pid int
}

// New returns a MemoryIO bound to pid.
func New(pid int) *MemoryIO {
	return &MemoryIO{pid: pid}
}

// Pid returns the tracee pid this MemoryIO operates on.
func (m *MemoryIO) Pid() int {
	return m.pid
}

// ReadBytes reads length bytes at addr. Reads are performed on native-word
// boundaries: the address is rounded down, a word peeked, and only the
// requested subrange copied out.
func (m *MemoryIO) ReadBytes(addr uint64, length int) ([]byte, error) {
	out := make([]byte, 0, length)

	for length > 0 {
		misalign := addr % wordSize
		todo := wordSize - int(misalign)
		if todo > length {
			todo = length
		}

		word, err := linux.PtracePeek(m.pid, uintptr(addr-misalign))
		if err != nil {
			return nil, err
		}

		var raw [wordSize]byte
		byteOrder.PutUint64(raw[:], word)
		out = append(out, raw[misalign:int(misalign)+todo]...)

		addr += uint64(todo)
		length -= todo
	}

	return out, nil
}

// WriteBytes writes data at addr, one word at a time. The data length is
// rounded up to the native word size with zero padding; this is acceptable
// because all writes go to scratch memory the tracer itself manages.
// Returns the unpadded number of bytes written.
func (m *MemoryIO) WriteBytes(addr uint64, data []byte) (int, error) {
	padded := data
	if rem := len(data) % wordSize; rem != 0 {
		padded = make([]byte, len(data)+wordSize-rem)
		copy(padded, data)
	}

	for off := 0; off < len(padded); off += wordSize {
		word := byteOrder.Uint64(padded[off:])
		if err := linux.PtracePoke(m.pid, uintptr(addr)+uintptr(off), word); err != nil {
			return 0, err
		}
	}

	return len(data), nil
}

// ReadUntil reads forward from addr at word granularity until stop holds
// for some produced byte. The stopping byte is not included.
func (m *MemoryIO) ReadUntil(addr uint64, stop func(byte) bool) ([]byte, error) {
	var out []byte

	for {
		misalign := addr % wordSize
		word, err := linux.PtracePeek(m.pid, uintptr(addr-misalign))
		if err != nil {
			return nil, err
		}

		var raw [wordSize]byte
		byteOrder.PutUint64(raw[:], word)

		for _, b := range raw[misalign:] {
			if stop(b) {
				return out, nil
			}
			out = append(out, b)
		}

		addr += wordSize - misalign
	}
}

// Zero writes n zero bytes at addr.
func (m *MemoryIO) Zero(addr uint64, n int) error {
	_, err := m.WriteBytes(addr, make([]byte, n))
	return err
}
