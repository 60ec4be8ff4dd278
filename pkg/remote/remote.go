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

// Package remote resolves the clone URL of a hosted repository.
package remote

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/envmirror/pkg/config"
)

// ErrRepositoryNotFound means the hosting provider has no such repository
var ErrRepositoryNotFound = errors.New("repository not found")

// Options configures a Resolver
type Options struct {
	BaseURL  string // web base, e.g. https://github.com
	APIURL   string // API base for enterprise installs; empty uses the public API
	Protocol string // config.ProtocolHTTPS or config.ProtocolSSH
	Token    string
}

// OptionsFromConfig reads resolver options from the git section
func OptionsFromConfig(g config.GitArgs) Options {
	return Options{
		BaseURL:  g.BaseURL,
		APIURL:   g.APIURL,
		Protocol: g.Protocol,
		Token:    g.Token,
	}
}

// 🔗 Resolver returns the URL a working copy's origin should point at
type Resolver interface {
	ExpectedURL(ctx context.Context, owner, repo string) (string, error)
}

// 🏭 Factory creates a resolver
type Factory func(ctx context.Context, opts Options) (Resolver, error)

var registry = map[string]Factory{}

// Register makes a resolver available under name
func Register(name string, factory Factory) {
	registry[name] = factory
}

// 🎯 Get creates the resolver registered under name
func Get(ctx context.Context, name string, opts Options) (Resolver, error) {
	factory, ok := registry[name]
	if !ok {
		options := make([]string, 0, len(registry))
		for k := range registry {
			options = append(options, k)
		}
		sort.Strings(options)
		return nil, errors.Errorf("provider %s not found, options: %s", name, strings.Join(options, ", "))
	}
	return factory(ctx, opts)
}

func init() {
	Register("plain", func(ctx context.Context, opts Options) (Resolver, error) {
		return Plain{Options: opts}, nil
	})
}

// 📎 Plain builds URLs from the base URL without asking the host
type Plain struct {
	Options Options
}

// ExpectedURL implements Resolver
func (p Plain) ExpectedURL(ctx context.Context, owner, repo string) (string, error) {
	return CloneURL(p.Options, owner, repo)
}

// CloneURL builds <base>/<owner>/<repo>.git for https, git@<host>:<owner>/<repo>.git for ssh
func CloneURL(opts Options, owner, repo string) (string, error) {
	if owner == "" || repo == "" {
		return "", errors.Errorf("owner and repo are required, got %q/%q", owner, repo)
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://github.com"
	}

	if opts.Protocol != config.ProtocolSSH {
		return base + "/" + owner + "/" + repo + ".git", nil
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Errorf("parsing base url %q: %w", base, err)
	}
	if u.Host == "" {
		return "", errors.Errorf("base url %q has no host", base)
	}
	return "git@" + u.Hostname() + ":" + owner + "/" + repo + ".git", nil
}
