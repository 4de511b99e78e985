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

// Package filesearch pairs students to submission executables: a filename
// pattern with `var` placeholders is substituted per student and matched
// against a bounded recursive directory walk.
package filesearch

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
)

// maxDepth bounds the recursive walk to one level below the base
// directory.
const maxDepth = 1

// Searcher matches filenames against a substituted pattern.
type Searcher struct {
	pattern string
	args    map[string]string
}

// New returns a searcher for pattern, a doublestar filename pattern that
// may contain `key` placeholders substituted via SetArg.
func New(pattern string, args map[string]string) *Searcher {
	if args == nil {
		args = make(map[string]string)
	}
	return &Searcher{pattern: pattern, args: args}
}

// SetArg binds a placeholder value, returning the previous binding.
func (s *Searcher) SetArg(key, value string) string {
	prev := s.args[key]
	s.args[key] = value
	return prev
}

// substituted returns the pattern with every `key` placeholder replaced.
func (s *Searcher) substituted() string {
	out := s.pattern
	for key, value := range s.args {
		out = strings.ReplaceAll(out, "`"+key+"`", value)
	}
	return out
}

// Search walks base up to one directory deep and returns the regular
// files whose names match the substituted pattern.
func (s *Searcher) Search(base string) ([]string, error) {
	pattern := s.substituted()
	logrus.Debugf("searching %q for pattern %q", base, pattern)

	var out []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			rel, rerr := filepath.Rel(base, path)
			if rerr != nil {
				return rerr
			}
			if rel != "." && strings.Count(rel, string(filepath.Separator)) >= maxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		ok, merr := doublestar.Match(pattern, d.Name())
		if merr != nil {
			return merr
		}
		if ok {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
