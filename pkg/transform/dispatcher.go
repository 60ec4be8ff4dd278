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

package transform

import (
	"context"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/envmirror/pkg/config"
	"github.com/walteh/envmirror/pkg/log"
	"github.com/walteh/envmirror/pkg/status"
	"github.com/walteh/envmirror/pkg/text"
)

// Options configures a Dispatcher
type Options struct {
	SourceNamespace  string
	TargetNamespace  string
	Patterns         []string
	Workers          int
	Dispatch         map[string][]string
	Mappings         map[string]config.DatabaseHost
	DirectConnection bool
	Replacements     []config.Replacement

	// Scope registers temp files; nil gets a private scope
	Scope *status.Scope

	// ShowDiff renders a line diff for every modified file
	ShowDiff bool
}

// OptionsFromConfig builds Options from a validated config
func OptionsFromConfig(cfg *config.Config, scope *status.Scope, showDiff bool) Options {
	return Options{
		SourceNamespace:  cfg.Source.Namespace,
		TargetNamespace:  cfg.Target.Namespace,
		Patterns:         cfg.Transform.Patterns,
		Workers:          cfg.Transform.Workers,
		Dispatch:         cfg.Transform.Dispatch,
		Mappings:         cfg.Database.Mappings,
		DirectConnection: cfg.Transform.DirectConnection,
		Replacements:     cfg.Transform.Replacements,
		Scope:            scope,
		ShowDiff:         showDiff,
	}
}

// 🚦 Dispatcher picks rule sets per file and rewrites a tree
type Dispatcher struct {
	opts     Options
	engine   *text.Engine
	sets     map[string][]text.Rule
	dispatch map[string][]string
	extras   []text.Rule

	mapping       *config.DatabaseHost
	mappingSource string
	warnings      []string
}

// 🏭 NewDispatcher builds every rule set once and resolves the database mapping
func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.TargetNamespace == "" {
		return nil, errors.New("target namespace is required")
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{"**/*.yaml", "**/*.yml"}
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Scope == nil {
		opts.Scope = status.NewScope()
	}
	for _, p := range opts.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("invalid file pattern %q", p)
		}
	}

	d := &Dispatcher{
		opts:     opts,
		engine:   text.NewEngine(),
		dispatch: DefaultDispatch(),
	}
	for name, sets := range opts.Dispatch {
		d.dispatch[name] = sets
	}

	d.mapping, d.mappingSource = ResolveMapping(opts.TargetNamespace, opts.Mappings)
	if d.mapping == nil {
		msg := "no database host mapping for namespace " + opts.TargetNamespace + ", database hosts left unchanged"
		if opts.DirectConnection {
			msg = "no database host mapping for namespace " + opts.TargetNamespace + ", stripping proxy from database hosts"
		}
		d.warnings = append(d.warnings, msg)
	}

	d.sets = map[string][]text.Rule{
		SetNamespace:  NamespaceRules(opts.SourceNamespace, opts.TargetNamespace),
		SetEndpoints:  EndpointRules(),
		SetDicomCache: DicomCacheRules(),
		SetDatabase:   DatabaseRules(d.mapping, opts.DirectConnection),
	}

	for name, sets := range d.dispatch {
		for _, s := range sets {
			if _, ok := d.sets[s]; !ok || s == SetNamespace {
				return nil, errors.Errorf("dispatch entry %q names unknown rule set %q", name, s)
			}
		}
	}

	extras, err := ReplacementRules(opts.Replacements)
	if err != nil {
		return nil, errors.Errorf("building replacement rules: %w", err)
	}
	d.extras = extras

	for name, rules := range d.sets {
		if err := d.engine.ValidateRules(rules); err != nil {
			return nil, errors.Errorf("rule set %s: %w", name, err)
		}
	}
	if err := d.engine.ValidateRules(d.extras); err != nil {
		return nil, errors.Errorf("replacement rules: %w", err)
	}

	return d, nil
}

// ResolveMapping looks the namespace up in the configured mappings, then in
// BuiltinMappings. The second value names where the mapping came from.
func ResolveMapping(namespace string, configured map[string]config.DatabaseHost) (*config.DatabaseHost, string) {
	if m, ok := configured[namespace]; ok {
		if m.Mode == "" {
			m.Mode = config.ModeRemote
		}
		return &m, "config"
	}
	if m, ok := BuiltinMappings[namespace]; ok {
		return &m, "builtin"
	}
	return nil, ""
}

// Mapping returns the database mapping resolved for this run, nil when none applies
func (d *Dispatcher) Mapping() *config.DatabaseHost {
	return d.mapping
}

// DatabaseMode is the mode of the resolved mapping, empty when there is none
func (d *Dispatcher) DatabaseMode() string {
	if d.mapping == nil {
		return ""
	}
	return d.mapping.Mode
}

// SetsFor returns the rule set names applied to a file, in order
func (d *Dispatcher) SetsFor(rel string) []string {
	sets := []string{SetNamespace}
	return append(sets, d.dispatch[path.Base(rel)]...)
}

// RulesFor returns the ordered rules for a file: namespace rules, generic
// replacements, dispatched sets, then file-bound replacements
func (d *Dispatcher) RulesFor(rel string) []text.Rule {
	var rules []text.Rule
	rules = append(rules, d.sets[SetNamespace]...)

	var scoped []text.Rule
	for _, r := range d.extras {
		if r.IsGeneric() {
			rules = append(rules, r)
		} else if r.AppliesTo(rel) {
			scoped = append(scoped, r)
		}
	}

	for _, s := range d.dispatch[path.Base(rel)] {
		rules = append(rules, d.sets[s]...)
	}
	return append(rules, scoped...)
}

// TransformContent applies the rules for rel to content without touching disk
func (d *Dispatcher) TransformContent(ctx context.Context, rel string, content []byte) (*text.Result, error) {
	return d.engine.Apply(ctx, string(content), d.RulesFor(rel))
}

// Files lists the files under root matched by the configured patterns, .git excluded
func (d *Dispatcher) Files(root string) ([]string, error) {
	fsys := os.DirFS(root)
	seen := map[string]bool{}
	var files []string
	for _, p := range d.opts.Patterns {
		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Errorf("matching %q: %w", p, err)
		}
		for _, m := range matches {
			if seen[m] || isGitPath(m) {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func isGitPath(rel string) bool {
	return rel == ".git" || strings.HasPrefix(rel, ".git/") || strings.Contains(rel, "/.git/")
}

// 🔄 ProcessTree rewrites every matched file under root in place. Files are
// independent, so they are processed by up to Workers goroutines.
func (d *Dispatcher) ProcessTree(ctx context.Context, root string) (*Report, error) {
	logger := zerolog.Ctx(ctx)
	console := log.FromContext(ctx)

	files, err := d.Files(root)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("root", root).
		Int("files", len(files)).
		Int("workers", d.opts.Workers).
		Str("database_mapping", d.mappingSource).
		Msg("transforming tree")

	report := &Report{
		Root:         root,
		DatabaseMode: d.DatabaseMode(),
		Warnings:     append([]string(nil), d.warnings...),
		Files:        make([]FileResult, len(files)),
	}
	for _, w := range d.warnings {
		logger.Warn().Msg(w)
	}

	mgr := status.New(root, d.opts.Scope)

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for i, rel := range files {
		i, rel := i, rel
		g.Go(func() error {
			res, err := d.processFile(gctx, mgr, rel)
			if err != nil {
				mgr.TrackFile(gctx, status.FileInfo{Path: rel, Status: status.StatusFailed, Error: err})
				console.LogFileOperation(gctx, log.FileOperation{Path: rel, Status: "failed", Rules: d.SetsFor(rel), IsFailed: true})
				return errors.Errorf("transforming %s: %w", rel, err)
			}
			report.Files[i] = res

			mgr.TrackFile(gctx, status.FileInfo{
				Path:         rel,
				Status:       res.Status,
				Checksum:     res.Checksum,
				Rules:        res.RuleSets,
				Replacements: res.Replacements,
			})
			console.LogFileOperation(gctx, log.FileOperation{
				Path:         rel,
				Status:       res.Status.String(),
				Rules:        res.RuleSets,
				Replacements: res.Replacements,
				IsModified:   res.Status == status.StatusModified,
			})
			if res.Diff != "" {
				logger.Info().Str("file", rel).Msg("diff\n" + res.Diff)
			}

			mu.Lock()
			done++
			mgr.Progress(gctx, done, len(files))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.tally()
	logger.Info().
		Int("files", len(report.Files)).
		Int("modified", report.Modified).
		Int("replacements", report.Replacements).
		Msg("transform complete")

	return report, nil
}

func (d *Dispatcher) processFile(ctx context.Context, mgr *status.Manager, rel string) (FileResult, error) {
	content, err := mgr.ReadFile(ctx, rel)
	if err != nil {
		return FileResult{}, err
	}

	res, err := d.TransformContent(ctx, rel, content)
	if err != nil {
		return FileResult{}, err
	}

	out := FileResult{
		Path:         rel,
		Status:       status.Compare(content, res.ModifiedContent),
		RuleSets:     d.SetsFor(rel),
		Applied:      res.Applied,
		Replacements: res.ReplacementCount,
		Checksum:     status.Checksum(res.ModifiedContent),
	}

	if out.Status != status.StatusModified {
		return out, nil
	}

	if err := mgr.WriteFileAtomic(ctx, rel, res.ModifiedContent); err != nil {
		return FileResult{}, err
	}
	if d.opts.ShowDiff {
		out.Diff = LineDiff(string(content), string(res.ModifiedContent))
	}
	return out, nil
}
