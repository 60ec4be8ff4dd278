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
	"context"
	"time"

	"github.com/walteh/envmirror/pkg/config"
	"github.com/walteh/envmirror/pkg/gitexec"
	"github.com/walteh/envmirror/pkg/manifest"
	"github.com/walteh/envmirror/pkg/mirror"
	"github.com/walteh/envmirror/pkg/remote"
	"github.com/walteh/envmirror/pkg/status"
	"github.com/walteh/envmirror/pkg/verify"
	"gitlab.com/tozd/go/errors"
)

// 🎯 Operator defines the commands of envmirror
type Operator interface {
	// Sync mirrors, transforms, verifies and publishes the target environment
	Sync(ctx context.Context) (*Summary, error)
	// Status runs everything up to verification and reports what a sync would publish
	Status(ctx context.Context) (*Summary, error)
	// Verify compares the cached working copies without touching any remote
	Verify(ctx context.Context) (*verify.Report, error)
	// Clean removes the cached working copies of this run's environments
	Clean(ctx context.Context) error
}

// 🔧 Options contains configuration for the operator
type Options struct {
	// Config is a validated run configuration
	Config *config.Config
	// Git runs every git command
	Git *gitexec.Runner
	// Resolver maps owner/repo to clone URLs
	Resolver remote.Resolver
	// Scope owns the temp files of this run; nil gets a private scope
	Scope *status.Scope

	// Manifest renders the deployment manifest after publishing; nil skips it
	Manifest *manifest.Generator
	// Apply applies the generated manifest to the cluster
	Apply bool

	ShowDiff bool
	Now      func() time.Time
}

// 🏭 New creates a new operator with the given options
func New(opts Options) (Operator, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Git == nil {
		return nil, errors.New("git runner is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("remote resolver is required")
	}
	if opts.Scope == nil {
		opts.Scope = status.NewScope()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &operator{opts: opts}, nil
}

// 🎮 operator implements the Operator interface
type operator struct {
	opts Options
}

// 🏃 Run is the state shared by the operations of one pipeline run
type Run struct {
	Config *config.Config
	Git    *gitexec.Runner
	Scope  *status.Scope

	// set by the resolve operation
	SourceURL string
	TargetURL string
	Mirror    *mirror.Mirror

	Summary *Summary
}

func (o *operator) newRun() *Run {
	return &Run{
		Config:  o.opts.Config,
		Git:     o.opts.Git,
		Scope:   o.opts.Scope,
		Summary: &Summary{Source: o.opts.Config.Source, Target: o.opts.Config.Target},
	}
}

// mirrorOperations are the stages shared by Sync and Status
func (o *operator) mirrorOperations() []Operation {
	return []Operation{
		NewResolveOperation(o.opts.Resolver),
		NewMirrorOperation(),
		NewPrepareOperation(),
		NewCopyOperation(),
		NewTransformOperation(o.opts.ShowDiff),
		NewVerifyOperation(),
	}
}
