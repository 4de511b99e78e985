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

// Binary asmgrader grades student assembly submissions. The assignments
// registered here exercise the standard first-course fixtures; a course
// ships its own main with its own registry.
package main

import (
	"github.com/asmgrader/asmgrader/pkg/cli"
)

func main() {
	cli.Main(registry())
}
