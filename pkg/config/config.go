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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"k8s.io/apimachinery/pkg/util/validation"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// Publish conflict policies
const (
	PolicyForce  = "force"
	PolicyRebase = "rebase"
)

// Database connection modes
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Git remote protocols
const (
	ProtocolHTTPS = "https"
	ProtocolSSH   = "ssh"
)

// CriticalFiles must exist at the top of every mirrored tree; downstream
// deployment cannot start without them.
var CriticalFiles = []string{"kustomization.yaml", "namespace.yaml", "values.yaml"}

// 🌍 Environment identifies one deployment environment and the repository
// branch holding its configuration
type Environment struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Owner     string `json:"owner" yaml:"owner"`
	Repo      string `json:"repo" yaml:"repo"`
	Branch    string `json:"branch" yaml:"branch"`
}

// String renders the environment as owner/repo@branch (namespace)
func (e Environment) String() string {
	return fmt.Sprintf("%s/%s@%s (%s)", e.Owner, e.Repo, e.Branch, e.Namespace)
}

// 🔧 GitArgs configures git transport and commit identity
type GitArgs struct {
	Provider    string `json:"provider,omitempty" yaml:"provider,omitempty"`
	BaseURL     string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIURL      string `json:"api_url,omitempty" yaml:"api_url,omitempty"`
	Protocol    string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	AuthorName  string `json:"author_name,omitempty" yaml:"author_name,omitempty"`
	AuthorEmail string `json:"author_email,omitempty" yaml:"author_email,omitempty"`

	// Token is read from GITHUB_TOKEN, never from the file
	Token string `json:"-" yaml:"-"`
}

// 🔄 Replacement is an extra user-supplied rewrite
type Replacement struct {
	Old    string `json:"old" yaml:"old"`
	New    string `json:"new" yaml:"new"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	Regexp bool   `json:"regexp,omitempty" yaml:"regexp,omitempty"`
}

// 🔧 TransformArgs configures the per-file transformation
type TransformArgs struct {
	Patterns         []string            `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Workers          int                 `json:"workers,omitempty" yaml:"workers,omitempty"`
	Dispatch         map[string][]string `json:"dispatch,omitempty" yaml:"dispatch,omitempty"`
	DirectConnection bool                `json:"direct_connection,omitempty" yaml:"direct_connection,omitempty"`
	Replacements     []Replacement       `json:"replacements,omitempty" yaml:"replacements,omitempty"`
}

// 🗄️ DatabaseHost is the externally supplied host mapping for one namespace
type DatabaseHost struct {
	DefaultHost  string `json:"default_host" yaml:"default_host"`
	VolatileHost string `json:"volatile_host" yaml:"volatile_host"`
	Mode         string `json:"mode" yaml:"mode"`
}

// DatabaseArgs holds host mappings keyed by target namespace
type DatabaseArgs struct {
	Mappings map[string]DatabaseHost `json:"mappings,omitempty" yaml:"mappings,omitempty"`
}

// VerifyArgs lists files that must exist after transformation
type VerifyArgs struct {
	RequiredFiles []string `json:"required_files,omitempty" yaml:"required_files,omitempty"`
}

// PublishArgs selects the push conflict policy
type PublishArgs struct {
	Policy string `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// 📜 ManifestArgs locates the deployment custom resource and its git secret
type ManifestArgs struct {
	Group            string   `json:"group,omitempty" yaml:"group,omitempty"`
	Version          string   `json:"version,omitempty" yaml:"version,omitempty"`
	Resource         string   `json:"resource,omitempty" yaml:"resource,omitempty"`
	Name             string   `json:"name,omitempty" yaml:"name,omitempty"`
	SecretName       string   `json:"secret_name,omitempty" yaml:"secret_name,omitempty"`
	SecretKeys       []string `json:"secret_keys,omitempty" yaml:"secret_keys,omitempty"`
	LegacySecretKeys []string `json:"legacy_secret_keys,omitempty" yaml:"legacy_secret_keys,omitempty"`

	// FallbackSecretKey is referenced when the key cannot be read from the cluster
	FallbackSecretKey string `json:"fallback_secret_key,omitempty" yaml:"fallback_secret_key,omitempty"`
}

// 📚 Config represents the complete configuration
type Config struct {
	CacheDir  string        `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`
	Source    Environment   `json:"source" yaml:"source"`
	Target    Environment   `json:"target" yaml:"target"`
	Git       GitArgs       `json:"git,omitempty" yaml:"git,omitempty"`
	Transform TransformArgs `json:"transform,omitempty" yaml:"transform,omitempty"`
	Database  DatabaseArgs  `json:"database,omitempty" yaml:"database,omitempty"`
	Verify    VerifyArgs    `json:"verify,omitempty" yaml:"verify,omitempty"`
	Publish   PublishArgs   `json:"publish,omitempty" yaml:"publish,omitempty"`
	Manifest  ManifestArgs  `json:"manifest,omitempty" yaml:"manifest,omitempty"`
}

// 🎯 Load loads the configuration from a file. It does not validate, so
// callers can apply flag overrides before calling Validate.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.Git.Token = token
	}

	return cfg, nil
}

// 🔍 Validate checks required fields and fills defaults
func (cfg *Config) Validate() error {
	for _, env := range []struct {
		name string
		env  *Environment
	}{{"source", &cfg.Source}, {"target", &cfg.Target}} {
		if env.env.Namespace == "" {
			return errors.Errorf("%w: %s.namespace is required", ErrInvalidConfig, env.name)
		}
		if env.env.Owner == "" {
			return errors.Errorf("%w: %s.owner is required", ErrInvalidConfig, env.name)
		}
		if env.env.Repo == "" {
			return errors.Errorf("%w: %s.repo is required", ErrInvalidConfig, env.name)
		}
		if env.env.Branch == "" {
			env.env.Branch = "main"
		}
	}

	if cfg.Source.Owner == cfg.Target.Owner && cfg.Source.Repo == cfg.Target.Repo && cfg.Source.Branch == cfg.Target.Branch {
		return errors.Errorf("%w: source and target point at the same branch %s/%s@%s", ErrInvalidConfig, cfg.Source.Owner, cfg.Source.Repo, cfg.Source.Branch)
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = "~/.cache/envmirror"
	}
	cacheDir, err := expandHome(cfg.CacheDir)
	if err != nil {
		return errors.Errorf("expanding cache_dir: %w", err)
	}
	cfg.CacheDir = filepath.Clean(cacheDir)

	if cfg.Git.Provider == "" {
		cfg.Git.Provider = "github"
	}
	if cfg.Git.BaseURL == "" {
		cfg.Git.BaseURL = "https://github.com"
	}
	cfg.Git.BaseURL = strings.TrimRight(cfg.Git.BaseURL, "/")
	switch cfg.Git.Protocol {
	case "":
		cfg.Git.Protocol = ProtocolHTTPS
	case ProtocolHTTPS, ProtocolSSH:
	default:
		return errors.Errorf("%w: git.protocol must be %q or %q, got %q", ErrInvalidConfig, ProtocolHTTPS, ProtocolSSH, cfg.Git.Protocol)
	}
	if cfg.Git.AuthorName == "" {
		cfg.Git.AuthorName = "envmirror"
	}
	if cfg.Git.AuthorEmail == "" {
		cfg.Git.AuthorEmail = "envmirror@users.noreply.github.com"
	}

	if len(cfg.Transform.Patterns) == 0 {
		cfg.Transform.Patterns = []string{"**/*.yaml", "**/*.yml"}
	}
	if cfg.Transform.Workers <= 0 {
		cfg.Transform.Workers = 1
	}
	for i, r := range cfg.Transform.Replacements {
		if r.Old == "" {
			return errors.Errorf("%w: transform.replacements[%d].old is required", ErrInvalidConfig, i)
		}
	}

	for ns, m := range cfg.Database.Mappings {
		switch m.Mode {
		case "":
			m.Mode = ModeRemote
		case ModeLocal, ModeRemote:
		default:
			return errors.Errorf("%w: database.mappings[%s].mode must be %q or %q, got %q", ErrInvalidConfig, ns, ModeLocal, ModeRemote, m.Mode)
		}
		if m.Mode == ModeRemote && m.DefaultHost == "" {
			return errors.Errorf("%w: database.mappings[%s].default_host is required in remote mode", ErrInvalidConfig, ns)
		}
		cfg.Database.Mappings[ns] = m
	}

	cfg.Verify.RequiredFiles = mergeRequired(CriticalFiles, cfg.Verify.RequiredFiles)

	switch cfg.Publish.Policy {
	case "":
		cfg.Publish.Policy = PolicyRebase
	case PolicyForce, PolicyRebase:
	default:
		return errors.Errorf("%w: publish.policy must be %q or %q, got %q", ErrInvalidConfig, PolicyForce, PolicyRebase, cfg.Publish.Policy)
	}

	m := &cfg.Manifest
	if m.Group == "" {
		m.Group = "deploy.envmirror.io"
	}
	if m.Version == "" {
		m.Version = "v1alpha1"
	}
	if m.Resource == "" {
		m.Resource = "environments"
	}
	if m.Name == "" {
		m.Name = "environment"
	}
	if m.SecretName == "" {
		m.SecretName = "git-credentials"
	}
	if len(m.SecretKeys) == 0 {
		m.SecretKeys = []string{"token", "password"}
	}
	if len(m.LegacySecretKeys) == 0 {
		m.LegacySecretKeys = []string{"git-token", "github-token"}
	}
	m.FallbackSecretKey = strings.TrimSpace(m.FallbackSecretKey)
	if m.FallbackSecretKey != "" {
		if errs := validation.IsConfigMapKey(m.FallbackSecretKey); len(errs) > 0 {
			return errors.Errorf("%w: manifest.fallback_secret_key %q: %s", ErrInvalidConfig, m.FallbackSecretKey, strings.Join(errs, "; "))
		}
	}
	for i, k := range m.SecretKeys {
		if errs := validation.IsConfigMapKey(k); len(errs) > 0 {
			return errors.Errorf("%w: manifest.secret_keys[%d] %q: %s", ErrInvalidConfig, i, k, strings.Join(errs, "; "))
		}
	}

	return nil
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("%s -> %s", cfg.Source, cfg.Target)
}

// SourceDir is the read-only working copy of the source repository
func (cfg *Config) SourceDir() string {
	return filepath.Join(cfg.CacheDir, "source", cfg.Source.Owner, cfg.Source.Repo)
}

// TargetDir is the working copy of the target repository for the target namespace
func (cfg *Config) TargetDir() string {
	return filepath.Join(cfg.CacheDir, "target", cfg.Target.Namespace)
}

// ManifestDir holds the cached template and the generated manifests
func (cfg *Config) ManifestDir() string {
	return filepath.Join(cfg.CacheDir, "manifests")
}

func mergeRequired(critical, extra []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, list := range [][]string{critical, extra} {
		for _, f := range list {
			f = filepath.ToSlash(filepath.Clean(f))
			if seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out[len(critical):])
	return out
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
