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

// Package subprocess manages the student binary as a piped child process:
// lifecycle, stdout accumulation, stdin delivery, kill and restart.
package subprocess

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/asmgrader/asmgrader/pkg/linux"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// State tracks the child lifecycle.
type State int

const (
	// Uninitialized means Start has not yet run.
	Uninitialized State = iota
	// Running means the child has been started and not yet reaped.
	Running
	// ExitedState means the child exited normally.
	ExitedState
	// KilledState means the child was killed by the harness.
	KilledState
)

// Subprocess runs one executable with stdin and stdout piped to the
// harness. Stdout is accumulated into an in-process buffer with a cursor
// so callers can consume only newly appended bytes.
type Subprocess struct {
	execPath string
	args     []string

	state State
	pid   int

	// Parent-side pipe ends: write end of the child's stdin, read end of
	// the child's stdout.
	stdinW  *os.File
	stdoutR *os.File

	stdoutBuf []byte
	cursor    int

	exitCode *int
}

// New returns an unstarted subprocess for the given executable and
// arguments.
func New(execPath string, args []string) *Subprocess {
	return &Subprocess{execPath: execPath, args: args}
}

// Pid returns the child pid, or zero before Start.
func (s *Subprocess) Pid() int {
	return s.pid
}

// CurrentState returns the lifecycle state.
func (s *Subprocess) CurrentState() State {
	return s.state
}

// ExitCode returns the child's exit code once recorded.
func (s *Subprocess) ExitCode() (int, bool) {
	if s.exitCode == nil {
		return 0, false
	}
	return *s.exitCode, true
}

// SetExitCode records the child's exit code, observed by the tracer.
func (s *Subprocess) SetExitCode(code int) {
	s.exitCode = &code
	s.state = ExitedState
}

// Start opens the stdin and stdout pipes, launches the child under ptrace
// with those pipes on fds 0 and 1 and an empty environment, closes the
// child-side ends, and switches the stdout read end to non-blocking.
//
// ptrace requests must come from the thread that started the child, so
// the calling goroutine is locked to its OS thread for the lifetime of
// the subprocess.
func (s *Subprocess) Start() error {
	stdinPipe, err := linux.NewPipe()
	if err != nil {
		return err
	}
	stdoutPipe, err := linux.NewPipe()
	if err != nil {
		stdinPipe.Close()
		return err
	}

	stdinR := os.NewFile(uintptr(stdinPipe.ReadFD), "stdin-r")
	stdinW := os.NewFile(uintptr(stdinPipe.WriteFD), "stdin-w")
	stdoutR := os.NewFile(uintptr(stdoutPipe.ReadFD), "stdout-r")
	stdoutW := os.NewFile(uintptr(stdoutPipe.WriteFD), "stdout-w")

	cmd := exec.Command(s.execPath, s.args...)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Env = []string{}
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	runtime.LockOSThread()

	if err := cmd.Start(); err != nil {
		runtime.UnlockOSThread()
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return fmt.Errorf("starting %q: %w", s.execPath, err)
	}

	// The child-side ends belong to the child now.
	stdinR.Close()
	stdoutW.Close()

	s.pid = cmd.Process.Pid
	s.stdinW = stdinW
	s.stdoutR = stdoutR
	s.stdoutBuf = nil
	s.cursor = 0
	s.exitCode = nil
	s.state = Running

	if err := linux.SetNonblock(int(stdoutR.Fd())); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"pid": s.pid, "path": s.execPath}).Debug("subprocess started")
	return nil
}

// drainStdout appends all currently available stdout bytes to the buffer.
// FIONREAD tells us exactly how much to read, so the non-blocking read
// never spins.
func (s *Subprocess) drainStdout() error {
	if s.stdoutR == nil {
		return nil
	}

	avail, err := linux.AvailableBytes(int(s.stdoutR.Fd()))
	if err != nil {
		return err
	}
	logrus.Tracef("%d bytes available on stdout pipe", avail)
	if avail == 0 {
		return nil
	}

	buf := make([]byte, avail)
	n, err := linux.Read(int(s.stdoutR.Fd()), buf)
	if err != nil {
		return err
	}
	s.stdoutBuf = append(s.stdoutBuf, buf[:n]...)
	return nil
}

// ReadStdout returns the bytes newly appended since the last call.
func (s *Subprocess) ReadStdout() (string, error) {
	if err := s.drainStdout(); err != nil {
		return "", err
	}
	if s.cursor == len(s.stdoutBuf) {
		return "", nil
	}
	out := string(s.stdoutBuf[s.cursor:])
	s.cursor = len(s.stdoutBuf)
	return out, nil
}

// ReadStdoutTimeout waits up to timeout for stdout data, then reads as
// ReadStdout.
func (s *Subprocess) ReadStdoutTimeout(timeout time.Duration) (string, error) {
	if s.stdoutR == nil {
		return s.ReadStdout()
	}
	ready, err := linux.PollIn(int(s.stdoutR.Fd()), int(timeout.Milliseconds()))
	if err != nil {
		logrus.Warnf("polling stdout pipe: %v", err)
		return "", nil
	}
	if !ready {
		return "", nil
	}
	return s.ReadStdout()
}

// FullStdout returns everything the child has written so far, without
// moving the cursor.
func (s *Subprocess) FullStdout() (string, error) {
	if err := s.drainStdout(); err != nil {
		return "", err
	}
	return string(s.stdoutBuf), nil
}

// SendStdin writes input to the child's stdin pipe.
func (s *Subprocess) SendStdin(input string) error {
	if s.stdinW == nil {
		return fmt.Errorf("stdin pipe is closed")
	}
	return linux.Write(int(s.stdinW.Fd()), []byte(input))
}

// ClosePipes drains remaining stdout, then closes both parent-side pipe
// ends. Useful when the child is blocking on stdin.
func (s *Subprocess) ClosePipes() error {
	if err := s.drainStdout(); err != nil {
		logrus.Debugf("draining stdout before close: %v", err)
	}

	var first error
	if s.stdinW != nil {
		if err := s.stdinW.Close(); err != nil && first == nil {
			first = err
		}
		s.stdinW = nil
	}
	if s.stdoutR != nil {
		if err := s.stdoutR.Close(); err != nil && first == nil {
			first = err
		}
		s.stdoutR = nil
	}
	return first
}

// IsAlive reports whether the child still exists.
func (s *Subprocess) IsAlive() bool {
	return s.pid != 0 && linux.IsAlive(s.pid)
}

// Kill closes the pipes, SIGKILLs the child, and verifies the kill with a
// bounded wait.
func (s *Subprocess) Kill() error {
	if err := s.ClosePipes(); err != nil {
		logrus.Debugf("closing pipes during kill: %v", err)
	}

	if err := linux.Kill(s.pid, unix.SIGKILL); err != nil {
		return err
	}

	ev, err := linux.WaitTimeout(s.pid, linux.DefaultTimeout, linux.DefaultPollPeriod)
	if err != nil {
		return fmt.Errorf("reaping killed child: %w", err)
	}
	if ev.Kind != linux.Killed {
		logrus.Warnf("expected killed event after SIGKILL, got %v", ev)
	}

	s.state = KilledState
	logrus.WithField("pid", s.pid).Debug("subprocess killed")
	return nil
}

// Restart kills the child if it is alive and starts a fresh one. The pid
// and pipes change; all addresses into the previous child are invalid.
func (s *Subprocess) Restart() error {
	if s.IsAlive() {
		if err := s.Kill(); err != nil {
			return err
		}
	}
	return s.Start()
}
