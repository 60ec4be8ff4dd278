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

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/envmirror/pkg/config"
)

// 🔑 SecretKeyResolver picks the git credential key name for a namespace
type SecretKeyResolver interface {
	ResolveSecretKeyName(ctx context.Context, namespace string) (string, error)
}

// 📡 LiveFetcher reads the deployed custom resource of a namespace
type LiveFetcher interface {
	FetchLiveManifest(ctx context.Context, namespace string) ([]byte, error)
}

// 🚀 Applier applies a manifest to a namespace
type Applier interface {
	ApplyManifest(ctx context.Context, namespace string, doc []byte) error
}

// ErrNoSecretKey means the secret key of the target cannot be resolved and no fallback is configured
var ErrNoSecretKey = errors.New("no secret key found")

// GeneratorOptions wires the collaborators of a Generator; any may be nil
type GeneratorOptions struct {
	Secrets SecretKeyResolver
	Fetcher LiveFetcher
	Applier Applier

	// FallbackSecretKey is used when Secrets cannot resolve a key
	FallbackSecretKey string
	LegacySecretKeys  []string
}

// 🏗️ Generator renders and optionally applies the manifest for a target environment
type Generator struct {
	store *Store
	opts  GeneratorOptions
}

// Output describes one generated manifest
type Output struct {
	Path           string
	Document       []byte
	SecretKey      string
	TemplateCached bool
	Applied        bool

	// ManualCommand applies Path by hand
	ManualCommand string
}

// 🏭 NewGenerator creates a generator writing into store
func NewGenerator(store *Store, opts GeneratorOptions) *Generator {
	return &Generator{store: store, opts: opts}
}

// ManualCommand is the command that applies the manifest of namespace by hand
func (g *Generator) ManualCommand(namespace string) string {
	return ManualCommand(g.store.OutputPath(namespace))
}

// Run renders the manifest for target from the source environment's template.
// With apply set it also applies it; an apply failure still returns the
// output so the manual command can be shown.
func (g *Generator) Run(ctx context.Context, source, target config.Environment, databaseMode string, apply bool) (*Output, error) {
	logger := zerolog.Ctx(ctx)

	tmpl, cached, err := g.store.Template(ctx, g.opts.Fetcher, source.Namespace)
	if err != nil {
		return nil, err
	}

	key, err := g.secretKey(ctx, target.Namespace)
	if err != nil {
		return nil, err
	}

	doc, err := Generate(ctx, tmpl, Params{
		Target:           target,
		SecretKey:        key,
		DatabaseMode:     databaseMode,
		LegacySecretKeys: g.opts.LegacySecretKeys,
	})
	if err != nil {
		return nil, err
	}

	path, err := g.store.Write(ctx, target.Namespace, doc)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Path:           path,
		Document:       doc,
		SecretKey:      key,
		TemplateCached: cached,
		ManualCommand:  ManualCommand(path),
	}
	logger.Info().Str("path", path).Str("secret_key", key).Bool("template_cached", cached).Msg("manifest generated")

	if !apply {
		return out, nil
	}
	if g.opts.Applier == nil {
		return out, errors.New("no cluster configured to apply the manifest")
	}
	if err := g.opts.Applier.ApplyManifest(ctx, target.Namespace, doc); err != nil {
		return out, errors.Errorf("applying manifest: %w", err)
	}
	out.Applied = true
	return out, nil
}

func (g *Generator) secretKey(ctx context.Context, namespace string) (string, error) {
	logger := zerolog.Ctx(ctx)

	if g.opts.Secrets == nil {
		if g.opts.FallbackSecretKey == "" {
			return "", errors.Errorf("%w: no cluster to resolve the key of %s and no fallback key configured", ErrNoSecretKey, namespace)
		}
		logger.Debug().Str("fallback", g.opts.FallbackSecretKey).Msg("no secret key resolver, using fallback")
		return g.opts.FallbackSecretKey, nil
	}

	key, err := g.opts.Secrets.ResolveSecretKeyName(ctx, namespace)
	if err == nil {
		return key, nil
	}
	if g.opts.FallbackSecretKey == "" {
		if errors.Is(err, ErrNoSecretKey) {
			return "", errors.Errorf("resolving secret key for %s: %w", namespace, err)
		}
		return "", errors.Errorf("%w: resolving secret key for %s: %w", ErrNoSecretKey, namespace, err)
	}
	logger.Warn().Err(err).Str("fallback", g.opts.FallbackSecretKey).Msg("secret key not resolved, using fallback")
	return g.opts.FallbackSecretKey, nil
}
