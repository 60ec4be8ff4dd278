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

package operation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/envmirror/pkg/mirror"
	"github.com/walteh/envmirror/pkg/testutils"
)

func TestStatus(t *testing.T) {
	f := setup(t, goldenFiles, map[string]string{
		"values.yaml": "namespace: old\n",
		"stale.yaml":  "x: 1\n",
	})
	op := f.operator(t, nil, false)

	summary, err := op.Status(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "apps/viewer.yaml", "kustomization.yaml", "namespace.yaml", "stale.yaml", "values.yaml"}, summary.Pending)
	assert.Nil(t, summary.Publish)
	assert.NotNil(t, summary.Verify)
	assert.Equal(t, "1", testutils.RemoteCommitCount(t, f.target, "main"), "status never pushes")
	assert.Equal(t, "namespace: old", testutils.RemoteFile(t, f.target, "main", "values.yaml"))

	_, err = op.Sync(f.ctx)
	require.NoError(t, err)

	summary, err = op.Status(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, summary.Pending, "a published target has nothing pending")
	assert.Contains(t, f.console.String(), "checking ac001001 against rpvna")
}

func TestVerify(t *testing.T) {
	f := setup(t, goldenFiles, nil)
	op := f.operator(t, nil, false)

	_, err := op.Verify(f.ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, mirror.ErrSourceUnavailable, "nothing has been synced yet")

	_, err = op.Sync(f.ctx)
	require.NoError(t, err)

	report, err := op.Verify(f.ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, len(goldenFiles), report.SourceCount)
	assert.Equal(t, len(goldenFiles), report.TargetCount)

	// a hand edit to the cached target shows up without a sync
	require.NoError(t, os.Remove(filepath.Join(f.cfg.TargetDir(), "namespace.yaml")))
	report, err = op.Verify(f.ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"namespace.yaml"}, report.MissingCritical)
	assert.False(t, report.CountsMatch())
}
