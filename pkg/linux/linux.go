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

// Package linux provides typed, failure-reporting wrappers over the raw
// system calls the harness needs. These wrappers are the only place raw OS
// calls appear; every higher component calls through them.
package linux

import (
	"unsafe"

	"github.com/asmgrader/asmgrader/pkg/errdefs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Ptrace issues a raw ptrace request. The kernel ABI stores PEEK results
// through data rather than in the return value, so unlike the libc
// interface a -1 return is never ambiguous here; failure is reported by
// errno alone.
func Ptrace(request int, pid int, addr uintptr, data uintptr) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, uintptr(request), uintptr(pid), addr, data, 0, 0)
	if errno != 0 {
		logrus.WithFields(logrus.Fields{"request": request, "pid": pid}).Debugf("ptrace failed: %v", errno)
		return errdefs.NewSyscallError("ptrace", errno)
	}
	return nil
}

// PtracePeek reads one native word of the tracee's memory at addr.
func PtracePeek(pid int, addr uintptr) (uint64, error) {
	var word uint64
	if err := Ptrace(unix.PTRACE_PEEKTEXT, pid, addr, uintptr(unsafe.Pointer(&word))); err != nil {
		return 0, err
	}
	return word, nil
}

// PtracePoke writes one native word into the tracee's memory at addr.
func PtracePoke(pid int, addr uintptr, word uint64) error {
	return Ptrace(unix.PTRACE_POKETEXT, pid, addr, uintptr(word))
}

// PtraceSetOptions installs ptrace options on the tracee.
func PtraceSetOptions(pid int, options int) error {
	return Ptrace(unix.PTRACE_SETOPTIONS, pid, 0, uintptr(options))
}

// PtraceSyscall resumes the tracee until the next syscall entry or exit.
func PtraceSyscall(pid int, sig unix.Signal) error {
	return Ptrace(unix.PTRACE_SYSCALL, pid, 0, uintptr(sig))
}

// PtraceGetRegSet fills buf from the register set identified by nt
// (NT_PRSTATUS, NT_FPREGSET). The tracee must be stopped.
func PtraceGetRegSet(pid int, nt int, buf []byte) error {
	iov := unix.Iovec{Base: &buf[0], Len: uint64(len(buf))}
	return Ptrace(unix.PTRACE_GETREGSET, pid, uintptr(nt), uintptr(unsafe.Pointer(&iov)))
}

// PtraceSetRegSet writes buf into the register set identified by nt.
func PtraceSetRegSet(pid int, nt int, buf []byte) error {
	iov := unix.Iovec{Base: &buf[0], Len: uint64(len(buf))}
	return Ptrace(unix.PTRACE_SETREGSET, pid, uintptr(nt), uintptr(unsafe.Pointer(&iov)))
}

// ptrace_syscall_info as laid out by the kernel. The three-way union at
// offset 24 is decoded by SyscallInfo below.
const syscallInfoSize = 88

// SyscallInfoOp values, per ptrace(2).
const (
	SyscallInfoNone = iota
	SyscallInfoEntry
	SyscallInfoExit
	SyscallInfoSeccomp
)

// SyscallInfo is the decoded form of PTRACE_GET_SYSCALL_INFO.
type SyscallInfo struct {
	Op                 uint8
	Arch               uint32
	InstructionPointer uint64
	StackPointer       uint64

	// Entry fields, valid when Op == SyscallInfoEntry.
	Nr   uint64
	Args [6]uint64

	// Exit fields, valid when Op == SyscallInfoExit.
	Rval    int64
	IsError bool
}

// PtraceGetSyscallInfo reads the syscall stop details of a tracee stopped
// at a syscall entry or exit trap.
func PtraceGetSyscallInfo(pid int) (SyscallInfo, error) {
	var raw [syscallInfoSize]byte
	if err := Ptrace(unix.PTRACE_GET_SYSCALL_INFO, pid, syscallInfoSize, uintptr(unsafe.Pointer(&raw[0]))); err != nil {
		return SyscallInfo{}, err
	}
	return decodeSyscallInfo(raw[:]), nil
}

func decodeSyscallInfo(raw []byte) SyscallInfo {
	info := SyscallInfo{
		Op:                 raw[0],
		Arch:               byteOrder.Uint32(raw[4:]),
		InstructionPointer: byteOrder.Uint64(raw[8:]),
		StackPointer:       byteOrder.Uint64(raw[16:]),
	}
	switch info.Op {
	case SyscallInfoEntry:
		info.Nr = byteOrder.Uint64(raw[24:])
		for i := range info.Args {
			info.Args[i] = byteOrder.Uint64(raw[32+8*i:])
		}
	case SyscallInfoExit:
		info.Rval = int64(byteOrder.Uint64(raw[24:]))
		info.IsError = raw[32] != 0
	}
	return info
}

// Pipe describes one pipe with its read end first, as pipe2(2) returns it.
type Pipe struct {
	ReadFD  int
	WriteFD int
}

// NewPipe creates a pipe via pipe2(2) with no flags.
func NewPipe() (Pipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], 0); err != nil {
		return Pipe{}, wrapErrno("pipe2", err)
	}
	return Pipe{ReadFD: fds[0], WriteFD: fds[1]}, nil
}

// Close closes whichever ends of the pipe remain open.
func (p *Pipe) Close() error {
	var first error
	if p.ReadFD > 0 {
		if err := unix.Close(p.ReadFD); err != nil && first == nil {
			first = wrapErrno("close", err)
		}
		p.ReadFD = -1
	}
	if p.WriteFD > 0 {
		if err := unix.Close(p.WriteFD); err != nil && first == nil {
			first = wrapErrno("close", err)
		}
		p.WriteFD = -1
	}
	return first
}

// SetNonblock marks fd non-blocking.
func SetNonblock(fd int) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return wrapErrno("fcntl", err)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
		return wrapErrno("fcntl", err)
	}
	return nil
}

// AvailableBytes returns the number of bytes queued on fd, via FIONREAD.
func AvailableBytes(fd int) (int, error) {
	n, err := unix.IoctlGetInt(fd, unix.FIONREAD)
	if err != nil {
		return 0, wrapErrno("ioctl", err)
	}
	return n, nil
}

// Read reads up to len(buf) bytes from fd.
func Read(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if err != nil {
		return 0, wrapErrno("read", err)
	}
	return n, nil
}

// Write writes buf to fd, looping until all bytes are sent.
func Write(fd int, buf []byte) error {
	for len(buf) > 0 {
		n, err := unix.Write(fd, buf)
		if err != nil {
			return wrapErrno("write", err)
		}
		buf = buf[n:]
	}
	return nil
}

// PollIn waits up to timeoutMillis for fd to become readable. Returns true
// if data is available before the timeout.
func PollIn(fd int, timeoutMillis int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMillis)
	if err != nil {
		return false, wrapErrno("poll", err)
	}
	return n > 0, nil
}

// Kill sends sig to pid. Signal 0 performs the existence probe used by
// liveness checks.
func Kill(pid int, sig unix.Signal) error {
	if err := unix.Kill(pid, sig); err != nil {
		return wrapErrno("kill", err)
	}
	return nil
}

// IsAlive reports whether pid still names a process we may signal.
func IsAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err != unix.ESRCH
}

func wrapErrno(op string, err error) error {
	if errno, ok := err.(unix.Errno); ok {
		logrus.Debugf("%s failed: %v", op, errno)
		return errdefs.NewSyscallError(op, errno)
	}
	return err
}
