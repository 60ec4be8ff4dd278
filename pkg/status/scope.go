// Copyright 2025 walteh LLC
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

package status

import (
	"context"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🧹 Scope tracks temp files created during one run
type Scope struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// 🏭 NewScope creates an empty scope
func NewScope() *Scope {
	return &Scope{paths: make(map[string]struct{})}
}

// 📝 CreateTemp creates a temp file in dir and registers it
func (s *Scope) CreateTemp(dir, pattern string) (*os.File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, errors.Errorf("creating temp file: %w", err)
	}

	s.mu.Lock()
	s.paths[f.Name()] = struct{}{}
	s.mu.Unlock()

	return f, nil
}

// Forget drops a path that no longer needs cleanup, usually after a rename
func (s *Scope) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, path)
}

// Pending lists registered paths in sorted order
func (s *Scope) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// 🧹 Release removes every registered temp file. Safe to call more than once.
func (s *Scope) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for p := range s.paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, errors.Errorf("removing temp file %s: %w", p, err))
			continue
		}
		zerolog.Ctx(ctx).Debug().Str("path", p).Msg("removed temp file")
		delete(s.paths, p)
	}

	if len(errs) > 0 {
		return errors.Errorf("releasing %d temp files: %w", len(errs), errs[0])
	}
	return nil
}
