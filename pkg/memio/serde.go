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

package memio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/sys/unix"
)

// Both supported architectures are little-endian; values are reinterpreted
// natively on the read/write paths. Cross-endianness conversion is left to
// callers that need it (see SwapBytes).
var byteOrder = binary.LittleEndian

// FixedString is a fixed-length, non-NUL-terminated string image in the
// tracee. Reads consume exactly Len bytes; writes emit exactly Len bytes
// with no terminator.
type FixedString struct {
	Str string
	Len int
}

// ReadUint64 reads an 8-byte unsigned integer at addr.
func (m *MemoryIO) ReadUint64(addr uint64) (uint64, error) {
	raw, err := m.ReadBytes(addr, 8)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint64(raw), nil
}

// ReadUint32 reads a 4-byte unsigned integer at addr.
func (m *MemoryIO) ReadUint32(addr uint64) (uint32, error) {
	raw, err := m.ReadBytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint32(raw), nil
}

// ReadUint16 reads a 2-byte unsigned integer at addr.
func (m *MemoryIO) ReadUint16(addr uint64) (uint16, error) {
	raw, err := m.ReadBytes(addr, 2)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint16(raw), nil
}

// ReadUint8 reads one byte at addr.
func (m *MemoryIO) ReadUint8(addr uint64) (uint8, error) {
	raw, err := m.ReadBytes(addr, 1)
	if err != nil {
		return 0, err
	}
	return raw[0], nil
}

// ReadInt64 reads an 8-byte signed integer at addr.
func (m *MemoryIO) ReadInt64(addr uint64) (int64, error) {
	v, err := m.ReadUint64(addr)
	return int64(v), err
}

// ReadFloat64 reads an 8-byte IEEE-754 value at addr.
func (m *MemoryIO) ReadFloat64(addr uint64) (float64, error) {
	v, err := m.ReadUint64(addr)
	return math.Float64frombits(v), err
}

// ReadFloat32 reads a 4-byte IEEE-754 value at addr.
func (m *MemoryIO) ReadFloat32(addr uint64) (float32, error) {
	v, err := m.ReadUint32(addr)
	return math.Float32frombits(v), err
}

// ReadString reads a NUL-terminated string at addr. The terminator is
// consumed but not included.
func (m *MemoryIO) ReadString(addr uint64) (string, error) {
	raw, err := m.ReadUntil(addr, func(b byte) bool { return b == 0 })
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ReadFixedString reads exactly length bytes at addr with no terminator
// handling.
func (m *MemoryIO) ReadFixedString(addr uint64, length int) (FixedString, error) {
	raw, err := m.ReadBytes(addr, length)
	if err != nil {
		return FixedString{}, err
	}
	return FixedString{Str: string(raw), Len: length}, nil
}

// ReadTimespec reads a struct timespec (two 64-bit integers) at addr.
func (m *MemoryIO) ReadTimespec(addr uint64) (unix.Timespec, error) {
	raw, err := m.ReadBytes(addr, 16)
	if err != nil {
		return unix.Timespec{}, err
	}
	return unix.Timespec{
		Sec:  int64(byteOrder.Uint64(raw)),
		Nsec: int64(byteOrder.Uint64(raw[8:])),
	}, nil
}

// ReadUint64Array reads count 8-byte elements starting at addr.
func (m *MemoryIO) ReadUint64Array(addr uint64, count int) ([]uint64, error) {
	raw, err := m.ReadBytes(addr, count*8)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, count)
	for i := range out {
		out[i] = byteOrder.Uint64(raw[i*8:])
	}
	return out, nil
}

// ReadUint64ArrayWhile reads consecutive 8-byte elements at addr while keep
// holds for each element. The first element failing keep is not included.
func (m *MemoryIO) ReadUint64ArrayWhile(addr uint64, keep func(uint64) bool) ([]uint64, error) {
	var out []uint64
	for ; ; addr += 8 {
		elem, err := m.ReadUint64(addr)
		if err != nil {
			return nil, err
		}
		if !keep(elem) {
			return out, nil
		}
		out = append(out, elem)
	}
}

// ReadDeref follows levels pointer loads starting at addr and returns the
// final (non-pointer) address. ReadDeref(a, 0) == a.
func (m *MemoryIO) ReadDeref(addr uint64, levels int) (uint64, error) {
	for ; levels > 0; levels-- {
		next, err := m.ReadUint64(addr)
		if err != nil {
			return 0, err
		}
		addr = next
	}
	return addr, nil
}

// ReadStringArray reads a NUL-terminated array of C-string pointers at
// addr, dereferencing each into a host string.
func (m *MemoryIO) ReadStringArray(addr uint64) ([]string, error) {
	ptrs, err := m.ReadUint64ArrayWhile(addr, func(p uint64) bool { return p != 0 })
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ptrs))
	for _, p := range ptrs {
		s, err := m.ReadString(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Encode renders v into the byte image its type has in the tracee.
// Supported: fixed-width integers and floats, []byte (identity), string
// (bytes plus trailing NUL), FixedString (exactly Len bytes), unix.Timespec
// (two 64-bit integers), and any fixed-size plain-data struct accepted by
// encoding/binary.
func Encode(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return append([]byte(val), 0), nil
	case FixedString:
		raw := make([]byte, val.Len)
		copy(raw, val.Str)
		return raw, nil
	case unix.Timespec:
		raw := make([]byte, 16)
		byteOrder.PutUint64(raw, uint64(val.Sec))
		byteOrder.PutUint64(raw[8:], uint64(val.Nsec))
		return raw, nil
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, byteOrder, v); err != nil {
		return nil, fmt.Errorf("unencodable value of type %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

// Write encodes v via Encode and writes it at addr, returning the number
// of encoded bytes.
func (m *MemoryIO) Write(addr uint64, v any) (int, error) {
	raw, err := Encode(v)
	if err != nil {
		return 0, err
	}
	return m.WriteBytes(addr, raw)
}

// ReadInto reads a fixed-size plain-data value at addr into out, which must
// be a pointer accepted by encoding/binary.
func (m *MemoryIO) ReadInto(addr uint64, out any) error {
	size := binary.Size(out)
	if size < 0 {
		return fmt.Errorf("undecodable value of type %T", out)
	}
	raw, err := m.ReadBytes(addr, size)
	if err != nil {
		return err
	}
	return binary.Read(bytes.NewReader(raw), byteOrder, out)
}

// SwapBytes reverses the byte order of the low width bytes of v. It is a
// pure utility for tests that need cross-endianness conversion; the normal
// read/write paths are native-endian.
func SwapBytes(v uint64, width int) uint64 {
	var out uint64
	for i := 0; i < width; i++ {
		out = out<<8 | (v & 0xff)
		v >>= 8
	}
	return out
}
