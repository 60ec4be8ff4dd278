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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		config      string
		errContains string
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:     "yaml_config",
			filename: "envmirror.yaml",
			config: `
cache_dir: /tmp/envmirror
source:
  namespace: rpvna
  owner: acme
  repo: golden-config
  branch: main
target:
  namespace: ac001001
  owner: acme
  repo: ac001001-config
transform:
  workers: 4
  dispatch:
    extra.yaml: [endpoints]
  replacements:
    - old: foo
      new: bar
      file: values.yaml
database:
  mappings:
    ac002002:
      default_host: db.example
      mode: remote
publish:
  policy: force
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "rpvna", cfg.Source.Namespace)
				assert.Equal(t, "golden-config", cfg.Source.Repo)
				assert.Equal(t, "ac001001", cfg.Target.Namespace)
				assert.Equal(t, 4, cfg.Transform.Workers)
				assert.Equal(t, []string{"endpoints"}, cfg.Transform.Dispatch["extra.yaml"])
				require.Len(t, cfg.Transform.Replacements, 1)
				assert.Equal(t, "values.yaml", cfg.Transform.Replacements[0].File)
				assert.Equal(t, "db.example", cfg.Database.Mappings["ac002002"].DefaultHost)
				assert.Equal(t, PolicyForce, cfg.Publish.Policy)
			},
		},
		{
			name:     "hcl_config",
			filename: "envmirror.hcl",
			config: `
cache_dir = "/tmp/envmirror"

source {
  namespace = "rpvna"
  owner     = "acme"
  repo      = "golden-config"
  branch    = "main"
}

target {
  namespace = "ac001001"
  owner     = "acme"
  repo      = "ac001001-config"
}

transform {
  workers  = 2
  dispatch = { "extra.yaml" = ["endpoints", "dicom-cache"] }

  replacement {
    old = "foo"
    new = "bar"
  }
}

database {
  mapping "ac002002" {
    default_host = "db.example"
    mode         = "local"
  }
}

publish {
  policy = "rebase"
}
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "rpvna", cfg.Source.Namespace)
				assert.Equal(t, "main", cfg.Source.Branch)
				assert.Equal(t, "", cfg.Target.Branch)
				assert.Equal(t, 2, cfg.Transform.Workers)
				assert.Equal(t, []string{"endpoints", "dicom-cache"}, cfg.Transform.Dispatch["extra.yaml"])
				require.Len(t, cfg.Transform.Replacements, 1)
				assert.Equal(t, "foo", cfg.Transform.Replacements[0].Old)
				assert.Equal(t, ModeLocal, cfg.Database.Mappings["ac002002"].Mode)
				assert.Equal(t, PolicyRebase, cfg.Publish.Policy)
			},
		},
		{
			name:     "json_config",
			filename: "envmirror.json",
			config: `{
  "source": {"namespace": "rpvna", "owner": "acme", "repo": "golden-config", "branch": "main"},
  "target": {"namespace": "ac001001", "owner": "acme", "repo": "ac001001-config", "branch": "main"},
  "verify": {"required_files": ["operator.yaml"]}
}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"operator.yaml"}, cfg.Verify.RequiredFiles)
			},
		},
		{
			name:     "unknown_yaml_field",
			filename: "envmirror.yaml",
			config: `
source:
  namespace: rpvna
  nope: true
`,
			errContains: "parsing YAML",
		},
		{
			name:        "unknown_extension",
			filename:    "envmirror.toml",
			config:      `source = {}`,
			errContains: "no parser found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
			path := filepath.Join(t.TempDir(), tt.filename)
			require.NoError(t, os.WriteFile(path, []byte(tt.config), 0644))

			cfg, err := Load(ctx, path)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func validConfig() *Config {
	return &Config{
		CacheDir: "/tmp/envmirror",
		Source:   Environment{Namespace: "rpvna", Owner: "acme", Repo: "golden-config", Branch: "main"},
		Target:   Environment{Namespace: "ac001001", Owner: "acme", Repo: "ac001001-config"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(cfg *Config)
		errContains string
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "main", cfg.Target.Branch)
				assert.Equal(t, "github", cfg.Git.Provider)
				assert.Equal(t, "https://github.com", cfg.Git.BaseURL)
				assert.Equal(t, ProtocolHTTPS, cfg.Git.Protocol)
				assert.Equal(t, []string{"**/*.yaml", "**/*.yml"}, cfg.Transform.Patterns)
				assert.Equal(t, 1, cfg.Transform.Workers)
				assert.Equal(t, PolicyRebase, cfg.Publish.Policy)
				assert.Equal(t, CriticalFiles, cfg.Verify.RequiredFiles)
				assert.Equal(t, []string{"git-token", "github-token"}, cfg.Manifest.LegacySecretKeys)
				assert.Equal(t, filepath.Join("/tmp/envmirror", "target", "ac001001"), cfg.TargetDir())
				assert.Equal(t, filepath.Join("/tmp/envmirror", "source", "acme", "golden-config"), cfg.SourceDir())
			},
		},
		{
			name: "required_files_merge_with_critical",
			mutate: func(cfg *Config) {
				cfg.Verify.RequiredFiles = []string{"operator/values.yaml", "values.yaml", "./apps/app.yaml"}
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"kustomization.yaml", "namespace.yaml", "values.yaml", "apps/app.yaml", "operator/values.yaml"}, cfg.Verify.RequiredFiles)
			},
		},
		{
			name: "mapping_mode_defaults_to_remote",
			mutate: func(cfg *Config) {
				cfg.Database.Mappings = map[string]DatabaseHost{"x": {DefaultHost: "h"}}
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ModeRemote, cfg.Database.Mappings["x"].Mode)
			},
		},
		{
			name:   "fallback_secret_key_trimmed",
			mutate: func(cfg *Config) { cfg.Manifest.FallbackSecretKey = " token " },
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "token", cfg.Manifest.FallbackSecretKey)
			},
		},
		{
			name:        "bad_fallback_secret_key",
			mutate:      func(cfg *Config) { cfg.Manifest.FallbackSecretKey = "git token" },
			errContains: "manifest.fallback_secret_key",
		},
		{
			name:        "bad_secret_key",
			mutate:      func(cfg *Config) { cfg.Manifest.SecretKeys = []string{"token", "a/b"} },
			errContains: "manifest.secret_keys[1]",
		},
		{
			name:        "missing_target_namespace",
			mutate:      func(cfg *Config) { cfg.Target.Namespace = "" },
			errContains: "target.namespace is required",
		},
		{
			name:        "missing_source_repo",
			mutate:      func(cfg *Config) { cfg.Source.Repo = "" },
			errContains: "source.repo is required",
		},
		{
			name: "same_branch",
			mutate: func(cfg *Config) {
				cfg.Target.Repo = cfg.Source.Repo
				cfg.Target.Branch = cfg.Source.Branch
			},
			errContains: "same branch",
		},
		{
			name:        "bad_policy",
			mutate:      func(cfg *Config) { cfg.Publish.Policy = "merge" },
			errContains: "publish.policy",
		},
		{
			name:        "bad_protocol",
			mutate:      func(cfg *Config) { cfg.Git.Protocol = "ftp" },
			errContains: "git.protocol",
		},
		{
			name: "remote_mapping_without_host",
			mutate: func(cfg *Config) {
				cfg.Database.Mappings = map[string]DatabaseHost{"x": {Mode: ModeRemote}}
			},
			errContains: "default_host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.errContains != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
