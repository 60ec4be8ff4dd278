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

// Package mirror keeps local working copies of the source and target
// repositories and replaces the target tree with the source tree.
package mirror

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/otiai10/copy"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/envmirror/pkg/gitexec"
)

var (
	// ErrSourceUnavailable means the source working copy could not be brought up to date
	ErrSourceUnavailable = errors.New("source repository unavailable")

	// ErrTargetUnavailable means the target working copy could not be prepared
	ErrTargetUnavailable = errors.New("target repository unavailable")
)

// 📦 Repo is one side of a mirror run
type Repo struct {
	URL    string // Clone URL
	Branch string // Branch to sync
	Dir    string // Working copy location
}

// 🪞 Mirror syncs a read-only source copy and a writable target copy
type Mirror struct {
	git    *gitexec.Runner
	source Repo
	target Repo
}

// 🏭 New creates a mirror
func New(git *gitexec.Runner, source, target Repo) *Mirror {
	return &Mirror{
		git:    git,
		source: source,
		target: target,
	}
}

// SourceDir returns the source working copy location
func (m *Mirror) SourceDir() string {
	return m.source.Dir
}

// TargetDir returns the target working copy location
func (m *Mirror) TargetDir() string {
	return m.target.Dir
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SourceState describes the source working copy after SyncSource
type SourceState struct {
	Dir string

	// Stale is the refresh error when the run falls back to the cached copy
	Stale error
}

// 🔄 SyncSource brings the source working copy to the tip of its branch with
// a shallow fetch, discarding any local state. A missing copy is cloned. When
// the remote cannot be reached, a cached copy of the same branch is used as it
// is and the failure is kept in SourceState.Stale.
func (m *Mirror) SyncSource(ctx context.Context) (*SourceState, error) {
	logger := zerolog.Ctx(ctx)
	src := m.source
	g := m.git.WithDir(src.Dir)

	if exists(filepath.Join(src.Dir, ".git")) {
		logger.Info().Str("dir", src.Dir).Str("branch", src.Branch).Msg("refreshing source working copy")

		for _, args := range [][]string{
			{"reset", "--hard", "--quiet"},
			{"clean", "-ffdx", "--quiet"},
		} {
			if _, err := g.Run(ctx, args...); err != nil {
				return nil, errors.Errorf("%w: %w", ErrSourceUnavailable, err)
			}
		}

		remoteRef := "refs/remotes/origin/" + src.Branch
		for _, args := range [][]string{
			{"remote", "set-url", "origin", src.URL},
			{"fetch", "--depth", "1", "--quiet", "origin", "+refs/heads/" + src.Branch + ":" + remoteRef},
			{"checkout", "--quiet", "--force", "-B", src.Branch, remoteRef},
			{"reset", "--hard", "--quiet", remoteRef},
		} {
			if _, err := g.Run(ctx, args...); err != nil {
				return m.cachedSource(ctx, g, err)
			}
		}
		return &SourceState{Dir: src.Dir}, nil
	}

	logger.Info().Str("url", src.URL).Str("branch", src.Branch).Msg("cloning source repository")

	if err := os.RemoveAll(src.Dir); err != nil {
		return nil, errors.Errorf("%w: clearing %s: %w", ErrSourceUnavailable, src.Dir, err)
	}
	if err := os.MkdirAll(filepath.Dir(src.Dir), 0755); err != nil {
		return nil, errors.Errorf("%w: creating %s: %w", ErrSourceUnavailable, filepath.Dir(src.Dir), err)
	}
	_, err := m.git.WithDir(filepath.Dir(src.Dir)).Run(ctx,
		"clone", "--quiet", "--depth", "1", "--single-branch", "--branch", src.Branch, src.URL, src.Dir)
	if err != nil {
		return nil, errors.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return &SourceState{Dir: src.Dir}, nil
}

// cachedSource decides whether a failed refresh can fall back to the copy on
// disk: it must have commits on the configured branch and reset cleanly.
func (m *Mirror) cachedSource(ctx context.Context, g *gitexec.Runner, cause error) (*SourceState, error) {
	src := m.source
	if ctx.Err() != nil || !g.HasCommits(ctx) {
		return nil, errors.Errorf("%w: %w", ErrSourceUnavailable, cause)
	}
	branch, err := g.Output(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || branch != src.Branch {
		return nil, errors.Errorf("%w: no cached copy of %s: %w", ErrSourceUnavailable, src.Branch, cause)
	}
	if _, err := g.Run(ctx, "reset", "--hard", "--quiet"); err != nil {
		return nil, errors.Errorf("%w: %w", ErrSourceUnavailable, cause)
	}

	zerolog.Ctx(ctx).Warn().Err(cause).Str("dir", src.Dir).Str("branch", src.Branch).
		Msg("source refresh failed, using the cached working copy")
	return &SourceState{Dir: src.Dir, Stale: cause}, nil
}

// 🎯 PrepareTarget fetches the target working copy and checks out the target
// branch. A branch missing on the remote is created locally; an empty remote
// leaves the branch unborn.
func (m *Mirror) PrepareTarget(ctx context.Context) (string, error) {
	logger := zerolog.Ctx(ctx)
	tgt := m.target
	g := m.git.WithDir(tgt.Dir)

	if exists(filepath.Join(tgt.Dir, ".git")) {
		logger.Info().Str("dir", tgt.Dir).Str("branch", tgt.Branch).Msg("refreshing target working copy")

		if g.HasCommits(ctx) {
			if _, err := g.Run(ctx, "reset", "--hard", "--quiet"); err != nil {
				return "", errors.Errorf("%w: %w", ErrTargetUnavailable, err)
			}
		}
		for _, args := range [][]string{
			{"clean", "-ffdx", "--quiet"},
			{"remote", "set-url", "origin", tgt.URL},
			{"fetch", "--quiet", "--prune", "origin"},
		} {
			if _, err := g.Run(ctx, args...); err != nil {
				return "", errors.Errorf("%w: %w", ErrTargetUnavailable, err)
			}
		}
	} else {
		logger.Info().Str("url", tgt.URL).Str("branch", tgt.Branch).Msg("cloning target repository")

		if err := os.RemoveAll(tgt.Dir); err != nil {
			return "", errors.Errorf("%w: clearing %s: %w", ErrTargetUnavailable, tgt.Dir, err)
		}
		if err := os.MkdirAll(filepath.Dir(tgt.Dir), 0755); err != nil {
			return "", errors.Errorf("%w: creating %s: %w", ErrTargetUnavailable, filepath.Dir(tgt.Dir), err)
		}
		if _, err := m.git.WithDir(filepath.Dir(tgt.Dir)).Run(ctx, "clone", "--quiet", tgt.URL, tgt.Dir); err != nil {
			return "", errors.Errorf("%w: %w", ErrTargetUnavailable, err)
		}
	}

	if err := m.checkoutTarget(ctx, g); err != nil {
		return "", errors.Errorf("%w: %w", ErrTargetUnavailable, err)
	}
	return tgt.Dir, nil
}

func (m *Mirror) checkoutTarget(ctx context.Context, g *gitexec.Runner) error {
	logger := zerolog.Ctx(ctx)
	branch := m.target.Branch

	onRemote, err := g.RemoteBranchExists(ctx, "origin", branch)
	if err != nil {
		return err
	}

	switch {
	case onRemote:
		remoteRef := "refs/remotes/origin/" + branch
		if _, err := g.Run(ctx, "fetch", "--quiet", "origin", "+refs/heads/"+branch+":"+remoteRef); err != nil {
			return err
		}
		_, err = g.Run(ctx, "checkout", "--quiet", "--force", "-B", branch, remoteRef)
		return err
	case g.HasCommits(ctx):
		logger.Info().Str("branch", branch).Msg("target branch not on remote, creating it from HEAD")
		_, err = g.Run(ctx, "checkout", "--quiet", "--force", "-B", branch)
		return err
	default:
		logger.Info().Str("branch", branch).Msg("target remote is empty, starting an unborn branch")
		_, err = g.Run(ctx, "symbolic-ref", "HEAD", "refs/heads/"+branch)
		return err
	}
}

// 🧹 ResetAndCopy removes everything in the target except .git and copies the
// source tree in, hidden files included. Symlinks are skipped with a warning.
func (m *Mirror) ResetAndCopy(ctx context.Context) (ConfigTree, error) {
	logger := zerolog.Ctx(ctx)

	entries, err := os.ReadDir(m.target.Dir)
	if err != nil {
		return ConfigTree{}, errors.Errorf("reading target dir: %w", err)
	}
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.target.Dir, e.Name())); err != nil {
			return ConfigTree{}, errors.Errorf("removing %s: %w", e.Name(), err)
		}
	}

	var (
		mu      sync.Mutex
		skipped []string
	)
	opts := copy.Options{
		Skip: func(srcinfo os.FileInfo, src, dest string) (bool, error) {
			return srcinfo.IsDir() && filepath.Base(src) == ".git", nil
		},
		OnSymlink: func(src string) copy.SymlinkAction {
			rel, err := filepath.Rel(m.source.Dir, src)
			if err != nil {
				rel = src
			}
			logger.Warn().Str("path", rel).Msg("skipping symlink")
			mu.Lock()
			skipped = append(skipped, filepath.ToSlash(rel))
			mu.Unlock()
			return copy.Skip
		},
	}
	if err := copy.Copy(m.source.Dir, m.target.Dir, opts); err != nil {
		return ConfigTree{}, errors.Errorf("copying source tree: %w", err)
	}

	tree, err := Tree(m.target.Dir)
	if err != nil {
		return ConfigTree{}, err
	}
	tree.Skipped = skipped

	logger.Info().Int("files", tree.Len()).Int("skipped", len(skipped)).Msg("copied source tree into target")
	return tree, nil
}
