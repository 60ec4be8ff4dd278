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

// Package testutils builds throwaway git repositories for tests.
package testutils

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireGit skips the test when git is missing and isolates it from the
// user's global and system git configuration
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found on PATH")
	}
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_AUTHOR_NAME", "test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")
}

// Git runs git in dir and returns trimmed stdout, failing the test on error
func Git(t testing.TB, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-c", "commit.gpgsign=false"}, args...)...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

// NewBareRemote creates a bare repository whose HEAD points at branch.
// With files it also commits them to branch; without files the remote stays empty.
func NewBareRemote(t testing.TB, branch string, files map[string]string) string {
	t.Helper()
	return NewBareRemoteAt(t, filepath.Join(t.TempDir(), "remote.git"), branch, files)
}

// NewBareRemoteAt is NewBareRemote at a chosen path
func NewBareRemoteAt(t testing.TB, remote, branch string, files map[string]string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(remote, 0755))
	Git(t, remote, "init", "--bare", "--quiet")
	Git(t, remote, "symbolic-ref", "HEAD", "refs/heads/"+branch)

	if len(files) > 0 {
		PushFiles(t, remote, branch, files, "initial")
	}
	return remote
}

// PushFiles clones remote, replaces the given files on branch, commits and pushes.
// A missing branch is created.
func PushFiles(t testing.TB, remote, branch string, files map[string]string, msg string) {
	t.Helper()
	work := filepath.Join(t.TempDir(), "work")
	require.NoError(t, os.MkdirAll(work, 0755))
	Git(t, work, "init", "--quiet")
	Git(t, work, "remote", "add", "origin", remote)

	if out := Git(t, work, "ls-remote", "--heads", "origin", "refs/heads/"+branch); out != "" {
		Git(t, work, "fetch", "--quiet", "origin", branch)
		Git(t, work, "checkout", "--quiet", "-B", branch, "FETCH_HEAD")
	} else {
		Git(t, work, "symbolic-ref", "HEAD", "refs/heads/"+branch)
	}

	WriteTree(t, work, files)
	Git(t, work, "add", "-A")
	Git(t, work, "commit", "--quiet", "-m", msg)
	Git(t, work, "push", "--quiet", "origin", "HEAD:refs/heads/"+branch)
}

// RemoteFile reads path at the tip of branch in a bare remote
func RemoteFile(t testing.TB, remote, branch, path string) string {
	t.Helper()
	return Git(t, remote, "show", branch+":"+path)
}

// RemoteCommitCount counts commits reachable from branch in a bare remote
func RemoteCommitCount(t testing.TB, remote, branch string) string {
	t.Helper()
	return Git(t, remote, "rev-list", "--count", branch)
}

// WriteTree writes files relative to root, creating parents
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

// ReadTree reads every regular file under root except .git, keyed by slash path
func ReadTree(t testing.TB, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	require.NoError(t, err)
	return out
}

// Keys returns the sorted keys of a tree
func Keys(tree map[string]string) []string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
