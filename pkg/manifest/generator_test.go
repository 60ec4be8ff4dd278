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

package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/envmirror/pkg/config"
	"github.com/walteh/envmirror/pkg/status"
)

type mockSecrets struct{ mock.Mock }

func (m *mockSecrets) ResolveSecretKeyName(ctx context.Context, namespace string) (string, error) {
	args := m.Called(ctx, namespace)
	return args.String(0), args.Error(1)
}

type mockFetcher struct{ mock.Mock }

func (m *mockFetcher) FetchLiveManifest(ctx context.Context, namespace string) ([]byte, error) {
	args := m.Called(ctx, namespace)
	doc, _ := args.Get(0).([]byte)
	return doc, args.Error(1)
}

type mockApplier struct{ mock.Mock }

func (m *mockApplier) ApplyManifest(ctx context.Context, namespace string, doc []byte) error {
	return m.Called(ctx, namespace, doc).Error(0)
}

var source = config.Environment{Namespace: "rpvna", Owner: "acme", Repo: "golden-config", Branch: "main"}

func TestGeneratorRun(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	dir := t.TempDir()
	scope := status.NewScope()
	store := NewStore(dir, scope)

	secrets := &mockSecrets{}
	secrets.On("ResolveSecretKeyName", mock.Anything, "ac001001").Return("token", nil)
	fetcher := &mockFetcher{}
	fetcher.On("FetchLiveManifest", mock.Anything, "rpvna").Return([]byte(template), nil).Once()
	applier := &mockApplier{}
	applier.On("ApplyManifest", mock.Anything, "ac001001", mock.Anything).Return(nil)

	g := NewGenerator(store, GeneratorOptions{Secrets: secrets, Fetcher: fetcher, Applier: applier})

	out, err := g.Run(ctx, source, target, config.ModeLocal, true)
	require.NoError(t, err)
	assert.False(t, out.TemplateCached)
	assert.True(t, out.Applied)
	assert.Equal(t, "token", out.SecretKey)
	assert.Equal(t, filepath.Join(dir, "ac001001.yaml"), out.Path)
	assert.Equal(t, "kubectl apply -f "+out.Path, out.ManualCommand)
	assert.Contains(t, string(out.Document), "databaseMode: local")

	written, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Equal(t, out.Document, written)

	cachedTemplate, err := os.ReadFile(store.TemplatePath())
	require.NoError(t, err)
	assert.Equal(t, template, string(cachedTemplate))

	// the second run reads the cached template instead of the cluster
	again, err := g.Run(ctx, source, target, config.ModeLocal, false)
	require.NoError(t, err)
	assert.True(t, again.TemplateCached)
	assert.False(t, again.Applied)
	assert.Equal(t, out.Document, again.Document)

	assert.Empty(t, scope.Pending())
	secrets.AssertExpectations(t)
	fetcher.AssertExpectations(t)
	applier.AssertExpectations(t)
}

func TestGeneratorApplyFailure(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	store := NewStore(t.TempDir(), nil)
	require.NoError(t, os.WriteFile(store.TemplatePath(), []byte(template), 0644))

	applier := &mockApplier{}
	applier.On("ApplyManifest", mock.Anything, "ac001001", mock.Anything).Return(errors.New("forbidden"))

	g := NewGenerator(store, GeneratorOptions{Applier: applier, FallbackSecretKey: "token"})

	out, err := g.Run(ctx, source, target, "", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
	require.NotNil(t, out)
	assert.False(t, out.Applied)
	assert.Equal(t, ManualCommand(store.OutputPath("ac001001")), out.ManualCommand)
	assert.FileExists(t, out.Path)
}

func TestGeneratorSecretKey(t *testing.T) {
	tests := []struct {
		name        string
		resolved    string
		resolveErr  error
		fallback    string
		noResolver  bool
		want        string
		errContains string
	}{
		{name: "resolved", resolved: "password", want: "password"},
		{name: "fallback_on_error", resolveErr: errors.New("no keys"), fallback: "token", want: "token"},
		{name: "error_without_fallback", resolveErr: errors.New("no keys"), errContains: "resolving secret key"},
		{name: "missing_key_without_fallback", resolveErr: errors.Errorf("%w: secret is empty", ErrNoSecretKey), errContains: "secret is empty"},
		{name: "no_resolver_without_fallback", noResolver: true, errContains: "no fallback key configured"},
		{name: "no_resolver_uses_fallback", noResolver: true, fallback: "token", want: "token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
			store := NewStore(t.TempDir(), nil)
			require.NoError(t, os.WriteFile(store.TemplatePath(), []byte(template), 0644))

			opts := GeneratorOptions{FallbackSecretKey: tt.fallback}
			if !tt.noResolver {
				secrets := &mockSecrets{}
				secrets.On("ResolveSecretKeyName", mock.Anything, "ac001001").Return(tt.resolved, tt.resolveErr)
				opts.Secrets = secrets
			}

			out, err := NewGenerator(store, opts).Run(ctx, source, target, "", false)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNoSecretKey)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.NoFileExists(t, store.OutputPath(target.Namespace), "nothing is written without a key")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.SecretKey)
			assert.Contains(t, string(out.Document), "key: "+tt.want)
		})
	}
}

func TestStoreTemplateWithoutFetcher(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	store := NewStore(t.TempDir(), nil)

	_, _, err := store.Template(ctx, nil, "rpvna")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cached template")
}
