package opts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/envmirror/pkg/config"
	"github.com/walteh/envmirror/pkg/manifest"
	"github.com/walteh/envmirror/pkg/status"
)

func TestOverridesApply(t *testing.T) {
	cfg := &config.Config{
		Source:  config.Environment{Namespace: "rpvna", Owner: "acme", Repo: "golden-config", Branch: "main"},
		Target:  config.Environment{Namespace: "ac001001", Owner: "acme", Repo: "ac001001-config", Branch: "main"},
		Publish: config.PublishArgs{Policy: config.PolicyRebase},
	}

	Overrides{
		TargetNamespace: "ac002002",
		TargetRepo:      "ac002002-config",
		Policy:          config.PolicyForce,
	}.Apply(cfg)

	assert.Equal(t, config.Environment{Namespace: "rpvna", Owner: "acme", Repo: "golden-config", Branch: "main"}, cfg.Source)
	assert.Equal(t, config.Environment{Namespace: "ac002002", Owner: "acme", Repo: "ac002002-config", Branch: "main"}, cfg.Target)
	assert.Equal(t, config.PolicyForce, cfg.Publish.Policy)

	before := *cfg
	Overrides{}.Apply(cfg)
	assert.Equal(t, before, *cfg, "empty overrides change nothing")
}

func TestGeneratorWithoutCluster(t *testing.T) {
	tests := []struct {
		name           string
		fallback       string
		requireCluster bool
		wantKey        string
		errIs          error
		errContains    string
		buildErr       string
	}{
		{name: "fallback_key", fallback: "token", wantKey: "token"},
		{name: "no_fallback", errIs: manifest.ErrNoSecretKey, errContains: "no fallback key configured"},
		{name: "cluster_required", fallback: "token", requireCluster: true, buildErr: "connecting to cluster"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

			cfg := &config.Config{
				CacheDir: t.TempDir(),
				Source:   config.Environment{Namespace: "rpvna", Owner: "acme", Repo: "golden-config"},
				Target:   config.Environment{Namespace: "ac001001", Owner: "acme", Repo: "ac001001-config"},
				Manifest: config.ManifestArgs{FallbackSecretKey: tt.fallback},
			}
			require.NoError(t, cfg.Validate())

			root := &RootOpts{
				Config:     cfg,
				Kubeconfig: filepath.Join(t.TempDir(), "missing-kubeconfig"),
				Scope:      status.NewScope(),
			}

			gen, err := root.Generator(ctx, tt.requireCluster)
			if tt.buildErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.buildErr)
				return
			}
			require.NoError(t, err)

			require.NoError(t, os.MkdirAll(cfg.ManifestDir(), 0755))
			require.NoError(t, os.WriteFile(filepath.Join(cfg.ManifestDir(), "template.yaml"), []byte("namespace: rpvna\nkey: git-token\n"), 0644))

			out, err := gen.Run(ctx, cfg.Source, cfg.Target, "", false)
			if tt.errIs != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.errIs)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, out.SecretKey)
			assert.Contains(t, string(out.Document), "key: "+tt.wantKey)
		})
	}
}
