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

// Package config holds the grader's runtime configuration: defaults,
// overridden by an optional TOML file, overridden by flags.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/asmgrader/asmgrader/pkg/output"
)

// Config is the flattened grader configuration.
type Config struct {
	// Verbosity selects how much the serializer emits: silent, quiet,
	// summary, all, extra.
	Verbosity string `toml:"verbosity"`

	// Debug enables debug-level logging.
	Debug bool `toml:"debug"`

	// StepTimeout bounds each tracer resume step.
	StepTimeout time.Duration `toml:"step_timeout"`

	// Database is the student CSV database path (professor mode).
	Database string `toml:"database"`

	// SearchDir is the directory walked for student submissions
	// (professor mode).
	SearchDir string `toml:"search_dir"`

	// ResultsFile, when set, receives the class summary; access is
	// serialized with a file lock so concurrent graders do not
	// interleave.
	ResultsFile string `toml:"results_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Verbosity:   "summary",
		StepTimeout: 10 * time.Millisecond,
	}
}

// Load overlays the TOML file at path onto c.
func (c *Config) Load(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("loading config %q: %w", path, err)
	}
	return nil
}

// RegisterFlags wires the config fields into a flag set so command-line
// values override both defaults and file values.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.Verbosity, "verbosity", c.Verbosity, "output verbosity: silent, quiet, summary, all, extra")
	f.BoolVar(&c.Debug, "debug", c.Debug, "enable debug logging")
	f.DurationVar(&c.StepTimeout, "step-timeout", c.StepTimeout, "per-step tracee resume timeout")
	f.StringVar(&c.Database, "database", c.Database, "student database CSV path")
	f.StringVar(&c.SearchDir, "search-dir", c.SearchDir, "directory to search for submissions")
	f.StringVar(&c.ResultsFile, "results-file", c.ResultsFile, "file receiving the class summary")
}

// ParseVerbosity validates and converts the verbosity field.
func (c *Config) ParseVerbosity() (output.Verbosity, error) {
	return output.ParseVerbosity(c.Verbosity)
}
