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

package opts

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/envmirror/pkg/cluster"
	"github.com/walteh/envmirror/pkg/config"
	"github.com/walteh/envmirror/pkg/gitexec"
	"github.com/walteh/envmirror/pkg/log"
	"github.com/walteh/envmirror/pkg/manifest"
	"github.com/walteh/envmirror/pkg/operation"
	"github.com/walteh/envmirror/pkg/remote"
	"github.com/walteh/envmirror/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// Overrides are flag values that replace config file fields when set
type Overrides struct {
	SourceNamespace string
	SourceBranch    string
	TargetNamespace string
	TargetOwner     string
	TargetRepo      string
	TargetBranch    string
	Policy          string
}

// Apply copies every non-empty override into cfg
func (o Overrides) Apply(cfg *config.Config) {
	for _, f := range []struct {
		val string
		dst *string
	}{
		{o.SourceNamespace, &cfg.Source.Namespace},
		{o.SourceBranch, &cfg.Source.Branch},
		{o.TargetNamespace, &cfg.Target.Namespace},
		{o.TargetOwner, &cfg.Target.Owner},
		{o.TargetRepo, &cfg.Target.Repo},
		{o.TargetBranch, &cfg.Target.Branch},
		{o.Policy, &cfg.Publish.Policy},
	} {
		if f.val != "" {
			*f.dst = f.val
		}
	}
}

// RootOpts contains shared options used by all commands
type RootOpts struct {
	ConfigFile string
	Debug      bool
	Kubeconfig string
	Overrides  Overrides

	// set by Init
	Config   *config.Config
	Console  *log.Logger
	Git      *gitexec.Runner
	Resolver remote.Resolver

	// Scope is released by main on every exit path
	Scope *status.Scope
}

// 🏗️ Init loads and validates the config and builds the git and remote clients
func (r *RootOpts) Init(ctx context.Context) error {
	cfg, err := config.Load(ctx, r.ConfigFile)
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}
	r.Overrides.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.Config = cfg

	g, err := gitexec.New("")
	if err != nil {
		return err
	}
	r.Git = g.WithToken(cfg.Git.Token)

	resolver, err := remote.Get(ctx, cfg.Git.Provider, remote.OptionsFromConfig(cfg.Git))
	if err != nil {
		return errors.Errorf("creating %s resolver: %w", cfg.Git.Provider, err)
	}
	r.Resolver = resolver

	zerolog.Ctx(ctx).Debug().Str("config", cfg.String()).Str("provider", cfg.Git.Provider).Msg("initialized")
	return nil
}

// Operator builds the pipeline operator; gen may be nil
func (r *RootOpts) Operator(gen *manifest.Generator, apply, showDiff bool) (operation.Operator, error) {
	return operation.New(operation.Options{
		Config:   r.Config,
		Git:      r.Git,
		Resolver: r.Resolver,
		Scope:    r.Scope,
		Manifest: gen,
		Apply:    apply,
		ShowDiff: showDiff,
	})
}

// Cluster connects to the cluster named by the kubeconfig flag
func (r *RootOpts) Cluster() (*cluster.Clients, error) {
	restCfg, err := cluster.RESTConfig(r.Kubeconfig)
	if err != nil {
		return nil, err
	}
	return cluster.NewClients(restCfg)
}

// 📜 Generator builds the manifest generator. Without a reachable cluster the
// generator still works from the cached template unless requireCluster is set.
func (r *RootOpts) Generator(ctx context.Context, requireCluster bool) (*manifest.Generator, error) {
	m := r.Config.Manifest
	store := manifest.NewStore(r.Config.ManifestDir(), r.Scope)
	gopts := manifest.GeneratorOptions{
		LegacySecretKeys:  m.LegacySecretKeys,
		FallbackSecretKey: m.FallbackSecretKey,
	}

	clients, err := r.Cluster()
	switch {
	case err == nil:
		gopts.Secrets = cluster.NewSecretKeys(clients.Core, m.SecretName, m.SecretKeys)
		envs := cluster.NewEnvironments(clients.Dynamic, cluster.ResourceFromConfig(m), m.Name)
		gopts.Fetcher = envs
		gopts.Applier = envs
	case requireCluster:
		return nil, errors.Errorf("connecting to cluster: %w", err)
	default:
		zerolog.Ctx(ctx).Warn().Err(err).Msg("no cluster available, using the cached manifest template")
	}

	return manifest.NewGenerator(store, gopts), nil
}
