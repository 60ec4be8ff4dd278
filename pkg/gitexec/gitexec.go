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

// Package gitexec runs the git CLI inside a working copy.
package gitexec

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrGitNotFound is returned when no git binary is on PATH
var ErrGitNotFound = errors.New("git not found on PATH")

// 🔧 Runner runs git commands in a directory
type Runner struct {
	gitPath string
	config  map[string]string

	// Dir is the directory the commands are run in
	Dir string
}

// RunResult holds the captured output of one command
type RunResult struct {
	Stdout string
	Stderr string
}

// 🏭 New returns a runner for dir
func New(dir string) (*Runner, error) {
	p, err := exec.LookPath("git")
	if err != nil {
		return nil, errors.Errorf("%w: %w", ErrGitNotFound, err)
	}
	return &Runner{
		gitPath: p,
		config:  map[string]string{},
		Dir:     dir,
	}, nil
}

// WithDir returns a copy of the runner working in dir
func (g *Runner) WithDir(dir string) *Runner {
	cp := *g
	cp.Dir = dir
	cp.config = make(map[string]string, len(g.config))
	for k, v := range g.config {
		cp.config[k] = v
	}
	return &cp
}

// WithConfig returns a copy that passes key=value through -c on every command
func (g *Runner) WithConfig(key, value string) *Runner {
	cp := g.WithDir(g.Dir)
	cp.config[key] = value
	return cp
}

// WithToken returns a copy that authenticates https remotes with a bearer token
func (g *Runner) WithToken(token string) *Runner {
	if token == "" {
		return g
	}
	basic := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
	return g.WithConfig("http.extraHeader", "Authorization: Basic "+basic)
}

// WithIdentity returns a copy that commits as name <email>
func (g *Runner) WithIdentity(name, email string) *Runner {
	return g.WithConfig("user.name", name).WithConfig("user.email", email)
}

func (g *Runner) args(args []string) []string {
	keys := make([]string, 0, len(g.config))
	for k := range g.config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys)*2+len(args))
	for _, k := range keys {
		out = append(out, "-c", k+"="+g.config[k])
	}
	return append(out, args...)
}

// 🏃 Run runs a git command. Omit the 'git' part of the command.
func (g *Runner) Run(ctx context.Context, args ...string) (RunResult, error) {
	logger := zerolog.Ctx(ctx)

	cmd := exec.CommandContext(ctx, g.gitPath, g.args(args)...)
	cmd.Dir = g.Dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Debug().Str("dir", g.Dir).Strs("args", args).Msg("running git")

	if err := cmd.Run(); err != nil {
		return RunResult{}, &ExecError{
			Args:   args,
			Err:    err,
			StdOut: stdout.String(),
			StdErr: stderr.String(),
		}
	}
	return RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}, nil
}

// Output runs a git command and returns its trimmed stdout
func (g *Runner) Output(ctx context.Context, args ...string) (string, error) {
	res, err := g.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// 🔍 RemoteBranchExists asks the remote whether branch exists
func (g *Runner) RemoteBranchExists(ctx context.Context, remote, branch string) (bool, error) {
	out, err := g.Output(ctx, "ls-remote", "--heads", remote, "refs/heads/"+branch)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// HasCommits reports whether HEAD points at a commit
func (g *Runner) HasCommits(ctx context.Context) bool {
	_, err := g.Run(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	return err == nil
}

// ExecError carries the output of a failed git command
type ExecError struct {
	Args   []string
	Err    error
	StdErr string
	StdOut string
}

func (e *ExecError) Error() string {
	b := new(strings.Builder)
	b.WriteString("git ")
	b.WriteString(strings.Join(e.Args, " "))
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if s := strings.TrimSpace(e.StdErr); s != "" {
		b.WriteString(": ")
		b.WriteString(s)
	}
	return b.String()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
