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

package linux

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ProcStat is the subset of /proc/<pid>/stat the harness consults when
// checking the tracee contract. See proc(5).
type ProcStat struct {
	Pid   int
	Comm  string
	State byte
	PPid  int
}

// ReadProcStat parses the first four fields of /proc/<pid>/stat. The comm
// field is enclosed in parentheses and may itself contain spaces, so the
// parse anchors on the closing parenthesis.
func ReadProcStat(pid int) (ProcStat, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return ProcStat{}, err
	}

	text := string(data)
	lparen := strings.IndexByte(text, '(')
	rparen := strings.LastIndexByte(text, ')')
	if lparen < 0 || rparen < lparen {
		return ProcStat{}, fmt.Errorf("malformed stat for pid %d", pid)
	}

	var st ProcStat
	st.Pid, err = strconv.Atoi(strings.TrimSpace(text[:lparen]))
	if err != nil {
		return ProcStat{}, fmt.Errorf("malformed stat pid field: %w", err)
	}
	st.Comm = text[lparen+1 : rparen]

	rest := strings.Fields(text[rparen+1:])
	if len(rest) < 2 {
		return ProcStat{}, fmt.Errorf("malformed stat for pid %d", pid)
	}
	st.State = rest[0][0]
	st.PPid, err = strconv.Atoi(rest[1])
	if err != nil {
		return ProcStat{}, fmt.Errorf("malformed stat ppid field: %w", err)
	}

	return st, nil
}

// CheckTraceeContract verifies that pid still exists in procfs, that its
// parent is this process, and that it is neither a zombie nor dead.
// A violation means the harness can no longer trust anything about the
// tracee, so the error here is treated as fatal by callers.
func CheckTraceeContract(pid int) error {
	st, err := ReadProcStat(pid)
	if err != nil {
		return fmt.Errorf("traced child pid=%d does not exist in procfs: %w", pid, err)
	}

	// Z is a zombie; x/X are dead (see proc(5)).
	if st.State == 'Z' || st.State == 'x' || st.State == 'X' {
		return fmt.Errorf("traced child pid=%d in invalid state %q", pid, st.State)
	}

	if expected := os.Getpid(); st.PPid != expected {
		return fmt.Errorf("traced child pid=%d reparented (expected ppid=%d, actual=%d)", pid, expected, st.PPid)
	}

	return nil
}
