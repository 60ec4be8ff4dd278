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

// Package verify checks a transformed tree against its source before it is published.
package verify

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/envmirror/pkg/config"
	"github.com/walteh/envmirror/pkg/log"
	"github.com/walteh/envmirror/pkg/mirror"
)

// ErrRequiredFilesMissing is returned when the target lacks any required file
var ErrRequiredFilesMissing = errors.New("required files missing")

// 📋 Report is the outcome of Verify
type Report struct {
	SourceCount int
	TargetCount int

	// OnlyInSource and OnlyInTarget are set when the counts differ
	OnlyInSource []string
	OnlyInTarget []string

	// Missing lists every required entry with no match in the target;
	// MissingCritical is the subset that belongs to config.CriticalFiles
	Missing         []string
	MissingCritical []string
}

// CountsMatch reports whether both trees hold the same number of files
func (r *Report) CountsMatch() bool {
	return r.SourceCount == r.TargetCount
}

// OK reports whether nothing required is missing
func (r *Report) OK() bool {
	return len(r.Missing) == 0
}

// 🔍 Verify compares the file sets of source and target and checks that every
// required entry exists in target. A count mismatch is only logged. A missing
// required entry returns ErrRequiredFilesMissing along with the full report.
func Verify(ctx context.Context, sourceRoot, targetRoot string, required []string) (*Report, error) {
	logger := zerolog.Ctx(ctx)
	console := log.FromContext(ctx)

	source, err := mirror.Tree(sourceRoot)
	if err != nil {
		return nil, err
	}
	target, err := mirror.Tree(targetRoot)
	if err != nil {
		return nil, err
	}

	report := &Report{
		SourceCount: source.Len(),
		TargetCount: target.Len(),
	}

	if !report.CountsMatch() {
		report.OnlyInSource = difference(source.Files, target.Files)
		report.OnlyInTarget = difference(target.Files, source.Files)

		logger.Warn().
			Int("source_count", report.SourceCount).
			Int("target_count", report.TargetCount).
			Strs("source_files", source.Files).
			Strs("target_files", target.Files).
			Msg("file count mismatch")
		console.Warningf("file count mismatch: source has %d, target has %d", report.SourceCount, report.TargetCount)
		console.Table(listingRows(source.Files, target.Files))
	}

	missing, err := missingFrom(target, required)
	if err != nil {
		return nil, err
	}
	report.Missing = missing
	for _, m := range missing {
		if isCritical(m) {
			report.MissingCritical = append(report.MissingCritical, m)
		}
	}

	if !report.OK() {
		for _, m := range report.Missing {
			console.Errorf("required file missing: %s", m)
		}
		logger.Error().Strs("missing", report.Missing).Strs("critical", report.MissingCritical).Msg("required files missing")
		return report, errors.Errorf("%w: %s", ErrRequiredFilesMissing, strings.Join(report.Missing, ", "))
	}

	logger.Info().
		Int("files", report.TargetCount).
		Int("required", len(required)).
		Msg("target verified")
	return report, nil
}

// CheckRequired returns the required entries with no match under root.
// It never fails on missing files; callers decide what a gap means.
func CheckRequired(ctx context.Context, root string, required []string) ([]string, error) {
	tree, err := mirror.Tree(root)
	if err != nil {
		return nil, err
	}
	missing, err := missingFrom(tree, required)
	if err != nil {
		return nil, err
	}
	for _, m := range missing {
		zerolog.Ctx(ctx).Warn().Str("root", root).Str("file", m).Msg("required file not present")
	}
	return missing, nil
}

// missingFrom resolves each required entry against the tree. Entries with glob
// meta characters need at least one matching file.
func missingFrom(tree mirror.ConfigTree, required []string) ([]string, error) {
	var missing []string
	for _, req := range required {
		req = path.Clean(strings.TrimPrefix(req, "./"))
		if !hasMeta(req) {
			if !tree.Contains(req) {
				missing = append(missing, req)
			}
			continue
		}
		if !doublestar.ValidatePattern(req) {
			return nil, errors.Errorf("invalid required file pattern %q", req)
		}
		found := false
		for _, f := range tree.Files {
			if ok, _ := doublestar.Match(req, f); ok {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, req)
		}
	}
	return missing, nil
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

func isCritical(rel string) bool {
	for _, c := range config.CriticalFiles {
		if c == rel {
			return true
		}
	}
	return false
}

// difference returns the sorted entries of a that are not in b
func difference(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, f := range b {
		in[f] = true
	}
	var out []string
	for _, f := range a {
		if !in[f] {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

func listingRows(source, target []string) [][]string {
	rows := [][]string{{"source", "target"}}
	n := len(source)
	if len(target) > n {
		n = len(target)
	}
	for i := 0; i < n; i++ {
		var s, t string
		if i < len(source) {
			s = source[i]
		}
		if i < len(target) {
			t = target[i]
		}
		rows = append(rows, []string{s, t})
	}
	return rows
}
