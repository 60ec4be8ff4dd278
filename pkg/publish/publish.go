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

// Package publish commits the transformed target tree and pushes it.
package publish

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/envmirror/pkg/config"
	"github.com/walteh/envmirror/pkg/gitexec"
)

// ErrPushFailed means the target branch could not be updated, even after fallbacks
var ErrPushFailed = errors.New("push failed")

// How a push was reconciled with the remote branch
const (
	ResolutionNone   = "none"
	ResolutionRebase = "rebase"
	ResolutionForce  = "force"
)

// 📬 Outcome reports what Publish did. The zero value means nothing to commit.
type Outcome struct {
	Committed          bool
	Pushed             bool
	ConflictResolution string
	Commit             string
	Message            string
	RemoteRepointed    bool
}

// Options configures a Publisher
type Options struct {
	Source config.Environment
	Target config.Environment

	// RemoteURL is the URL origin must point at before pushing
	RemoteURL string

	// Policy is config.PolicyRebase or config.PolicyForce
	Policy string

	AuthorName  string
	AuthorEmail string

	// Now stamps the commit message; defaults to time.Now
	Now func() time.Time
}

// 🚀 Publisher commits and pushes a working copy
type Publisher struct {
	git  *gitexec.Runner
	opts Options
}

// 🏭 New creates a publisher
func New(git *gitexec.Runner, opts Options) *Publisher {
	if opts.Policy == "" {
		opts.Policy = config.PolicyRebase
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AuthorName != "" || opts.AuthorEmail != "" {
		git = git.WithIdentity(opts.AuthorName, opts.AuthorEmail)
	}
	return &Publisher{git: git, opts: opts}
}

// CommitMessage is the message of every mirror commit
func CommitMessage(source, target config.Environment, at time.Time) string {
	return fmt.Sprintf("envmirror: mirror %s@%s -> %s@%s (%s)",
		source.Namespace, source.Branch,
		target.Namespace, target.Branch,
		at.UTC().Format(time.RFC3339))
}

// 📤 Publish stages everything under root, commits and pushes the target branch
// according to the configured policy. An empty staged diff is a no-op.
func (p *Publisher) Publish(ctx context.Context, root string) (Outcome, error) {
	logger := zerolog.Ctx(ctx)
	g := p.git.WithDir(root)
	branch := p.opts.Target.Branch

	if _, err := g.Run(ctx, "add", "-A"); err != nil {
		return Outcome{}, errors.Errorf("staging changes: %w", err)
	}

	changed, err := hasStagedChanges(ctx, g)
	if err != nil {
		return Outcome{}, err
	}
	if !changed {
		logger.Info().Str("dir", root).Msg("nothing to commit")
		return Outcome{}, nil
	}

	out := Outcome{
		Message:            CommitMessage(p.opts.Source, p.opts.Target, p.opts.Now()),
		ConflictResolution: ResolutionNone,
	}
	if _, err := g.Run(ctx, "commit", "--quiet", "--no-verify", "-m", out.Message); err != nil {
		return Outcome{}, errors.Errorf("committing: %w", err)
	}
	out.Committed = true
	if out.Commit, err = g.Output(ctx, "rev-parse", "HEAD"); err != nil {
		return out, errors.Errorf("reading commit: %w", err)
	}
	logger.Info().Str("commit", out.Commit).Str("message", out.Message).Msg("committed target tree")

	if p.opts.RemoteURL != "" {
		repointed, err := EnsureRemote(ctx, root, "origin", p.opts.RemoteURL)
		if err != nil {
			return out, err
		}
		out.RemoteRepointed = repointed
	}

	resolution, err := p.push(ctx, g, branch)
	if err != nil {
		return out, err
	}
	out.Pushed = true
	out.ConflictResolution = resolution

	logger.Info().
		Str("branch", branch).
		Str("resolution", resolution).
		Msg("pushed target branch")
	return out, nil
}

func (p *Publisher) push(ctx context.Context, g *gitexec.Runner, branch string) (string, error) {
	logger := zerolog.Ctx(ctx)
	refspec := "HEAD:refs/heads/" + branch

	if p.opts.Policy == config.PolicyForce {
		if err := forcePush(ctx, g, refspec); err != nil {
			return "", err
		}
		return ResolutionForce, nil
	}

	exists, err := g.RemoteBranchExists(ctx, "origin", branch)
	if err != nil {
		return "", errors.Errorf("%w: checking remote branch: %w", ErrPushFailed, err)
	}

	if !exists {
		if _, err := g.Run(ctx, "push", "--quiet", "-u", "origin", refspec); err != nil {
			return "", errors.Errorf("%w: %w", ErrPushFailed, err)
		}
		return ResolutionNone, nil
	}

	if _, err := g.Run(ctx, "pull", "--rebase", "--quiet", "origin", branch); err != nil {
		logger.Warn().Err(err).Str("branch", branch).Msg("rebase onto remote failed, force pushing")
		if _, abortErr := g.Run(ctx, "rebase", "--abort"); abortErr != nil {
			logger.Debug().Err(abortErr).Msg("no rebase to abort")
		}
		if err := forcePush(ctx, g, refspec); err != nil {
			return "", err
		}
		return ResolutionForce, nil
	}

	if _, err := g.Run(ctx, "push", "--quiet", "origin", refspec); err != nil {
		logger.Warn().Err(err).Str("branch", branch).Msg("push after rebase rejected, force pushing")
		if err := forcePush(ctx, g, refspec); err != nil {
			return "", err
		}
		return ResolutionForce, nil
	}
	return ResolutionRebase, nil
}

func forcePush(ctx context.Context, g *gitexec.Runner, refspec string) error {
	if _, err := g.Run(ctx, "push", "--quiet", "--force", "-u", "origin", refspec); err != nil {
		return errors.Errorf("%w: %w", ErrPushFailed, err)
	}
	return nil
}

// hasStagedChanges runs diff --cached --quiet, which exits 1 when the index
// differs from HEAD
func hasStagedChanges(ctx context.Context, g *gitexec.Runner) (bool, error) {
	_, err := g.Run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, errors.Errorf("checking staged changes: %w", err)
}
