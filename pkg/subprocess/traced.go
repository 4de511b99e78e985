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

package subprocess

import (
	"time"

	"github.com/asmgrader/asmgrader/pkg/tracer"
	"github.com/sirupsen/logrus"
)

// Traced is a subprocess managed by a tracer. Starting it attaches the
// tracer and establishes the scratch page before any test code runs.
type Traced struct {
	Subprocess

	tracer *tracer.Tracer
}

// NewTraced returns an unstarted traced subprocess.
func NewTraced(execPath string, args []string) *Traced {
	return &Traced{
		Subprocess: *New(execPath, args),
		tracer:     tracer.New(),
	}
}

// Tracer returns the tracer bound to the current child.
func (t *Traced) Tracer() *tracer.Tracer {
	return t.tracer
}

// Start launches the child and attaches the tracer to it.
func (t *Traced) Start() error {
	if err := t.Subprocess.Start(); err != nil {
		return err
	}
	return t.tracer.Begin(t.Pid())
}

// Restart kills the current child (if alive) and starts a fresh traced
// one. The previous tracer state, including its syscall records, is
// discarded.
func (t *Traced) Restart() error {
	if t.IsAlive() {
		if err := t.Kill(); err != nil {
			return err
		}
	}
	return t.Start()
}

// Run drives the child until exit, kill, signal delivery, or step timeout,
// recording syscalls as it goes. An exit is mirrored into the subprocess
// state so IsAlive and ExitCode agree with the tracer.
func (t *Traced) Run() (tracer.RunResult, error) {
	res, err := t.tracer.Run()
	if err != nil {
		return res, err
	}
	if res.Kind == tracer.RunExited {
		t.SetExitCode(res.Code)
	}
	return res, nil
}

// Close releases the child: pipes are drained and closed, the child is
// given one final run in case open pipes were blocking it, and whatever
// remains is killed.
func (t *Traced) Close() {
	if err := t.ClosePipes(); err != nil {
		logrus.Debugf("closing pipes: %v", err)
	}

	// Give the child time to finish in case the open pipes were what
	// blocked it.
	time.Sleep(10 * time.Millisecond)

	if t.IsAlive() {
		if _, err := t.Run(); err != nil {
			logrus.Debugf("final run before close: %v", err)
		}
	}

	logrus.Debugf("processed %d syscalls", len(t.tracer.Records()))

	if t.IsAlive() {
		if err := t.Kill(); err != nil {
			logrus.Debugf("killing child during close: %v", err)
		}
	}
}
