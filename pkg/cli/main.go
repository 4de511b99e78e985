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

// Package cli is the entry point for the asmgrader command line. A course
// binary builds its test registry in main and hands it here.
package cli

import (
	"context"
	"flag"
	"os"

	"github.com/asmgrader/asmgrader/pkg/cmd"
	"github.com/asmgrader/asmgrader/pkg/config"
	"github.com/asmgrader/asmgrader/pkg/grader"
	"github.com/asmgrader/asmgrader/pkg/tracer"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// Main parses flags, loads configuration, and dispatches to the chosen
// subcommand. It does not return.
func Main(registry *grader.Registry) {
	conf := config.Default()

	configPath := flag.String("config", "", "optional TOML configuration file")
	conf.RegisterFlags(flag.CommandLine)

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(cmd.NewGrade(registry), "grading")
	subcommands.Register(cmd.NewClass(registry), "grading")
	subcommands.Register(cmd.NewSymbols(), "inspection")
	subcommands.Register(cmd.NewVersion(), "")

	flag.Parse()

	if *configPath != "" {
		if err := conf.Load(*configPath); err != nil {
			logrus.Fatalf("%v", err)
		}
		// Flags override file values; re-parse over the loaded config.
		flag.Parse()
	}

	if conf.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	tracer.SetDefaultStepTimeout(conf.StepTimeout)

	os.Exit(int(subcommands.Execute(context.Background(), conf)))
}
