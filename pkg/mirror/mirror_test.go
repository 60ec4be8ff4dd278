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

package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/envmirror/pkg/gitexec"
	"github.com/walteh/envmirror/pkg/testutils"
)

var goldenFiles = map[string]string{
	"kustomization.yaml":    "resources:\n  - namespace.yaml\n",
	"namespace.yaml":        "kind: Namespace\nmetadata:\n  name: rpvna\n",
	"values.yaml":           "namespace: rpvna\n",
	".hidden/settings.yaml": "logs: /var/log/rpvna/\n",
	"apps/viewer.yaml":      "endpoint: collector:8080\n",
}

func setup(t *testing.T, targetFiles map[string]string, targetBranch string) (context.Context, *Mirror, string, string) {
	t.Helper()
	testutils.RequireGit(t)
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	srcRemote := testutils.NewBareRemote(t, "main", goldenFiles)
	tgtRemote := testutils.NewBareRemote(t, "main", targetFiles)

	g, err := gitexec.New(t.TempDir())
	require.NoError(t, err)
	g = g.WithIdentity("envmirror", "envmirror@example.com")

	cache := t.TempDir()
	m := New(g,
		Repo{URL: srcRemote, Branch: "main", Dir: filepath.Join(cache, "source", "acme", "golden")},
		Repo{URL: tgtRemote, Branch: targetBranch, Dir: filepath.Join(cache, "target", "ac001001")},
	)
	return ctx, m, srcRemote, tgtRemote
}

func TestSyncSource(t *testing.T) {
	ctx, m, srcRemote, _ := setup(t, nil, "main")

	state, err := m.SyncSource(ctx)
	require.NoError(t, err)
	assert.NoError(t, state.Stale)
	dir := state.Dir
	assert.Equal(t, goldenFiles, testutils.ReadTree(t, dir))
	assert.Equal(t, "1", testutils.Git(t, dir, "rev-list", "--count", "HEAD"), "clone should be shallow")

	// dirty the copy and move the remote forward
	require.NoError(t, os.WriteFile(filepath.Join(dir, "values.yaml"), []byte("dirty\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "untracked.yaml"), []byte("x\n"), 0644))
	testutils.PushFiles(t, srcRemote, "main", map[string]string{"extra.yaml": "namespace: rpvna\n"}, "second")

	state, err = m.SyncSource(ctx)
	require.NoError(t, err)
	assert.NoError(t, state.Stale)

	tree := testutils.ReadTree(t, state.Dir)
	assert.Equal(t, "namespace: rpvna\n", tree["values.yaml"], "local edits are discarded")
	assert.NotContains(t, tree, "untracked.yaml", "untracked files are cleaned")
	assert.Contains(t, tree, "extra.yaml", "new remote commits are fetched")
	assert.Equal(t, "main", testutils.Git(t, dir, "rev-parse", "--abbrev-ref", "HEAD"))
}

func TestSyncSourceCachedCopy(t *testing.T) {
	ctx, m, srcRemote, _ := setup(t, nil, "main")

	_, err := m.SyncSource(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Rename(srcRemote, srcRemote+".moved"))
	require.NoError(t, os.WriteFile(filepath.Join(m.SourceDir(), "values.yaml"), []byte("dirty\n"), 0644))

	state, err := m.SyncSource(ctx)
	require.NoError(t, err, "an intact cached copy is still usable")
	require.Error(t, state.Stale)
	assert.Equal(t, m.SourceDir(), state.Dir)
	assert.Equal(t, goldenFiles, testutils.ReadTree(t, state.Dir), "the cached copy is reset to its last commit")

	var execErr *gitexec.ExecError
	assert.ErrorAs(t, state.Stale, &execErr, "git output stays reachable")

	require.NoError(t, os.RemoveAll(m.SourceDir()))
	_, err = m.SyncSource(ctx)
	require.Error(t, err, "without a cached copy the source is unavailable")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorAs(t, err, &execErr)
}

func TestSyncSourceUnavailable(t *testing.T) {
	testutils.RequireGit(t)
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	g, err := gitexec.New(t.TempDir())
	require.NoError(t, err)

	m := New(g,
		Repo{URL: filepath.Join(t.TempDir(), "missing.git"), Branch: "main", Dir: filepath.Join(t.TempDir(), "source")},
		Repo{},
	)
	_, err = m.SyncSource(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestPrepareTarget(t *testing.T) {
	tests := []struct {
		name        string
		targetFiles map[string]string
		branch      string
		check       func(t *testing.T, dir string)
	}{
		{
			name:        "existing_branch",
			targetFiles: map[string]string{"values.yaml": "namespace: old\n"},
			branch:      "main",
			check: func(t *testing.T, dir string) {
				assert.Equal(t, "main", testutils.Git(t, dir, "rev-parse", "--abbrev-ref", "HEAD"))
				assert.Equal(t, "namespace: old\n", testutils.ReadTree(t, dir)["values.yaml"])
			},
		},
		{
			name:        "branch_missing_on_remote",
			targetFiles: map[string]string{"values.yaml": "namespace: old\n"},
			branch:      "ac001001",
			check: func(t *testing.T, dir string) {
				assert.Equal(t, "ac001001", testutils.Git(t, dir, "rev-parse", "--abbrev-ref", "HEAD"))
			},
		},
		{
			name:   "empty_remote",
			branch: "main",
			check: func(t *testing.T, dir string) {
				assert.Equal(t, "refs/heads/main", testutils.Git(t, dir, "symbolic-ref", "HEAD"))
				assert.Empty(t, testutils.ReadTree(t, dir))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, m, _, _ := setup(t, tt.targetFiles, tt.branch)

			dir, err := m.PrepareTarget(ctx)
			require.NoError(t, err)
			tt.check(t, dir)

			// a second run reuses the working copy
			dir, err = m.PrepareTarget(ctx)
			require.NoError(t, err)
			tt.check(t, dir)
		})
	}
}

func TestResetAndCopy(t *testing.T) {
	ctx, m, _, _ := setup(t, map[string]string{
		"values.yaml":     "namespace: old\n",
		"stale/old.yaml":  "remove me\n",
		".stale-hidden":   "remove me too\n",
		"kustomization.x": "gone\n",
	}, "main")

	_, err := m.SyncSource(ctx)
	require.NoError(t, err)
	_, err = m.PrepareTarget(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Symlink("values.yaml", filepath.Join(m.SourceDir(), "link.yaml")))

	tree, err := m.ResetAndCopy(ctx)
	require.NoError(t, err)

	assert.Equal(t, testutils.Keys(goldenFiles), tree.Files)
	assert.Equal(t, []string{"link.yaml"}, tree.Skipped)
	assert.Equal(t, goldenFiles, testutils.ReadTree(t, m.TargetDir()))
	assert.True(t, tree.Contains("./values.yaml"))
	assert.False(t, tree.Contains("stale/old.yaml"))

	// target history survives and the source .git was not copied over it
	assert.Equal(t, "main", testutils.Git(t, m.TargetDir(), "rev-parse", "--abbrev-ref", "HEAD"))
	assert.Contains(t, testutils.Git(t, m.TargetDir(), "log", "--format=%s"), "initial")

	srcTree, err := Tree(m.SourceDir())
	require.NoError(t, err)
	assert.Equal(t, tree.Files, srcTree.Files)
}

func TestTree(t *testing.T) {
	root := t.TempDir()
	testutils.WriteTree(t, root, map[string]string{
		"b.yaml":      "",
		"a/c.yaml":    "",
		".git/config": "",
		"a/.git/x":    "",
		".env":        "",
	})

	tree, err := Tree(root)
	require.NoError(t, err)
	assert.Equal(t, []string{".env", "a/c.yaml", "b.yaml"}, tree.Files)
	assert.Equal(t, 3, tree.Len())
}
