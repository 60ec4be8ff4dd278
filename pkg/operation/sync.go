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
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/envmirror/pkg/log"
	"github.com/walteh/envmirror/pkg/manifest"
	"github.com/walteh/envmirror/pkg/mirror"
	"github.com/walteh/envmirror/pkg/publish"
	"github.com/walteh/envmirror/pkg/remote"
	"github.com/walteh/envmirror/pkg/verify"
	"gitlab.com/tozd/go/errors"
)

// 🔄 Sync runs the full pipeline. The summary is returned even on failure so
// callers can report how far the run got.
func (o *operator) Sync(ctx context.Context) (*Summary, error) {
	logger := zerolog.Ctx(ctx)
	run := o.newRun()

	log.FromContext(ctx).Header(fmt.Sprintf("mirroring %s into %s", run.Config.Source.Namespace, run.Config.Target.Namespace))

	ops := o.mirrorOperations()
	ops = append(ops, NewPublishOperation(o.opts.Now))
	if o.opts.Manifest != nil {
		ops = append(ops, NewManifestOperation(o.opts.Manifest, o.opts.Apply))
	}

	if err := NewRunner(logger).Run(ctx, run, ops...); err != nil {
		return run.Summary, err
	}
	return run.Summary, nil
}

// 🔗 resolveOperation turns owner/repo pairs into clone URLs
type resolveOperation struct {
	resolver remote.Resolver
}

// NewResolveOperation creates the stage that resolves both repositories
func NewResolveOperation(resolver remote.Resolver) Operation {
	return &resolveOperation{resolver: resolver}
}

func (op *resolveOperation) Name() string { return "resolve" }

func (op *resolveOperation) Detail(run *Run) string {
	return fmt.Sprintf("%s/%s -> %s/%s",
		run.Config.Source.Owner, run.Config.Source.Repo,
		run.Config.Target.Owner, run.Config.Target.Repo)
}

func (op *resolveOperation) Execute(ctx context.Context, run *Run) error {
	cfg := run.Config

	src, err := op.resolver.ExpectedURL(ctx, cfg.Source.Owner, cfg.Source.Repo)
	if err != nil {
		return errors.Errorf("%w: %w", mirror.ErrSourceUnavailable, err)
	}
	tgt, err := op.resolver.ExpectedURL(ctx, cfg.Target.Owner, cfg.Target.Repo)
	if err != nil {
		return errors.Errorf("%w: %w", mirror.ErrTargetUnavailable, err)
	}

	run.SourceURL, run.TargetURL = src, tgt
	run.Summary.SourceURL, run.Summary.TargetURL = src, tgt
	run.Mirror = mirror.New(run.Git,
		mirror.Repo{URL: src, Branch: cfg.Source.Branch, Dir: cfg.SourceDir()},
		mirror.Repo{URL: tgt, Branch: cfg.Target.Branch, Dir: cfg.TargetDir()},
	)

	zerolog.Ctx(ctx).Debug().Str("source_url", src).Str("target_url", tgt).Msg("resolved repositories")
	return nil
}

// 🪞 mirrorOperation refreshes the source working copy
type mirrorOperation struct{}

// NewMirrorOperation creates the stage that syncs the source working copy
func NewMirrorOperation() Operation {
	return &mirrorOperation{}
}

func (op *mirrorOperation) Name() string { return "mirror" }

func (op *mirrorOperation) Detail(run *Run) string {
	return run.Config.Source.String()
}

func (op *mirrorOperation) Execute(ctx context.Context, run *Run) error {
	state, err := run.Mirror.SyncSource(ctx)
	if err != nil {
		return err
	}
	if state.Stale != nil {
		run.Summary.SourceStale = state.Stale
		log.FromContext(ctx).Warningf("source refresh failed, mirroring the cached copy: %v", state.Stale)
	}

	// a gap here is reported, the verify stage decides whether it is fatal
	missing, err := verify.CheckRequired(ctx, state.Dir, run.Config.Verify.RequiredFiles)
	if err != nil {
		return err
	}
	run.Summary.SourceMissing = missing
	if len(missing) > 0 {
		log.FromContext(ctx).Warningf("source is missing required files: %s", strings.Join(missing, ", "))
	}
	return nil
}

// 🎯 prepareOperation checks out the target branch
type prepareOperation struct{}

// NewPrepareOperation creates the stage that prepares the target working copy
func NewPrepareOperation() Operation {
	return &prepareOperation{}
}

func (op *prepareOperation) Name() string { return "prepare" }

func (op *prepareOperation) Detail(run *Run) string {
	return run.Config.Target.String()
}

func (op *prepareOperation) Execute(ctx context.Context, run *Run) error {
	_, err := run.Mirror.PrepareTarget(ctx)
	return err
}

// 📤 publishOperation commits and pushes the target working copy
type publishOperation struct {
	now func() time.Time
}

// NewPublishOperation creates the stage that publishes the target branch
func NewPublishOperation(now func() time.Time) Operation {
	return &publishOperation{now: now}
}

func (op *publishOperation) Name() string { return "publish" }

func (op *publishOperation) Detail(run *Run) string {
	return fmt.Sprintf("%s (%s)", run.TargetURL, run.Config.Publish.Policy)
}

func (op *publishOperation) Execute(ctx context.Context, run *Run) error {
	cfg := run.Config
	p := publish.New(run.Git, publish.Options{
		Source:      cfg.Source,
		Target:      cfg.Target,
		RemoteURL:   run.TargetURL,
		Policy:      cfg.Publish.Policy,
		AuthorName:  cfg.Git.AuthorName,
		AuthorEmail: cfg.Git.AuthorEmail,
		Now:         op.now,
	})

	outcome, err := p.Publish(ctx, run.Mirror.TargetDir())
	run.Summary.Publish = &outcome
	if err != nil {
		return err
	}

	console := log.FromContext(ctx)
	switch {
	case !outcome.Committed:
		console.Info("target already matches source, nothing to commit")
	case outcome.ConflictResolution == publish.ResolutionForce:
		console.Warningf("pushed %s by force", outcome.Commit)
	default:
		console.Successf("pushed %s", outcome.Commit)
	}
	return nil
}

// 📜 manifestOperation renders the deployment manifest for the target
type manifestOperation struct {
	generator *manifest.Generator
	apply     bool
}

// NewManifestOperation creates the stage that generates, and optionally applies, the manifest
func NewManifestOperation(generator *manifest.Generator, apply bool) Operation {
	return &manifestOperation{generator: generator, apply: apply}
}

func (op *manifestOperation) Name() string { return "manifest" }

func (op *manifestOperation) Detail(run *Run) string {
	return run.Config.Target.Namespace
}

func (op *manifestOperation) Execute(ctx context.Context, run *Run) error {
	mode := ""
	if run.Summary.Transform != nil {
		mode = run.Summary.Transform.DatabaseMode
	}

	out, err := op.generator.Run(ctx, run.Config.Source, run.Config.Target, mode, op.apply)
	if out != nil {
		run.Summary.Manifest = out
	}
	if err != nil {
		return err
	}

	console := log.FromContext(ctx)
	if out.Applied {
		console.Successf("applied %s", out.Path)
	} else {
		console.Infof("manifest written, apply with: %s", out.ManualCommand)
	}
	return nil
}
