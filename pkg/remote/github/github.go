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

// Package github resolves repository URLs through the GitHub API.
package github

import (
	"context"
	"net/http"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"

	"github.com/walteh/envmirror/pkg/config"
	"github.com/walteh/envmirror/pkg/remote"
)

func init() {
	remote.Register("github", New)
}

// RepositoriesService is the part of the GitHub client the resolver uses
type RepositoriesService interface {
	Get(ctx context.Context, owner, repo string) (*github.Repository, *github.Response, error)
}

// 🎯 Resolver implements remote.Resolver for GitHub
type Resolver struct {
	repos RepositoriesService
	opts  remote.Options
}

// 🏭 New creates a resolver. Without a token it never calls the API.
func New(ctx context.Context, opts remote.Options) (remote.Resolver, error) {
	if opts.Token == "" {
		zerolog.Ctx(ctx).Debug().Msg("no GitHub token, repository urls are built from the base url")
		return &Resolver{opts: opts}, nil
	}

	tc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
	client := github.NewClient(tc)
	if opts.APIURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(opts.APIURL, opts.APIURL)
		if err != nil {
			return nil, errors.Errorf("configuring enterprise url: %w", err)
		}
	}
	return NewWithService(client.Repositories, opts), nil
}

// NewWithService creates a resolver around an existing repositories service
func NewWithService(repos RepositoriesService, opts remote.Options) *Resolver {
	return &Resolver{repos: repos, opts: opts}
}

// 🔍 ExpectedURL confirms the repository exists and returns its clone URL
func (r *Resolver) ExpectedURL(ctx context.Context, owner, repo string) (string, error) {
	if r.repos == nil {
		return remote.CloneURL(r.opts, owner, repo)
	}

	rep, resp, err := r.repos.Get(ctx, owner, repo)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return "", errors.Errorf("%w: %s/%s", remote.ErrRepositoryNotFound, owner, repo)
	}
	if err != nil {
		return "", errors.Errorf("getting repository %s/%s: %w", owner, repo, err)
	}

	u := rep.GetCloneURL()
	if r.opts.Protocol == config.ProtocolSSH {
		u = rep.GetSSHURL()
	}
	if u == "" {
		return remote.CloneURL(r.opts, owner, repo)
	}

	zerolog.Ctx(ctx).Debug().Str("repository", rep.GetFullName()).Str("url", u).Msg("resolved repository url")
	return u, nil
}
