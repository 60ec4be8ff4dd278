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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/envmirror/pkg/log"
	"github.com/walteh/envmirror/pkg/mirror"
	"github.com/walteh/envmirror/pkg/verify"
	"gitlab.com/tozd/go/errors"
)

// 🔍 Status runs the pipeline up to verification and lists the target paths a
// sync would commit. Nothing is committed or pushed.
func (o *operator) Status(ctx context.Context) (*Summary, error) {
	logger := zerolog.Ctx(ctx)
	run := o.newRun()

	log.FromContext(ctx).Header(fmt.Sprintf("checking %s against %s", run.Config.Target.Namespace, run.Config.Source.Namespace))

	if err := NewRunner(logger).Run(ctx, run, o.mirrorOperations()...); err != nil {
		return run.Summary, err
	}

	res, err := run.Git.WithDir(run.Mirror.TargetDir()).Run(ctx, "status", "--porcelain", "-z", "--untracked-files=all")
	if err != nil {
		return run.Summary, errors.Errorf("reading target status: %w", err)
	}
	run.Summary.Pending = parsePorcelain(res.Stdout)

	logger.Info().Int("pending", len(run.Summary.Pending)).Msg("status complete")
	return run.Summary, nil
}

// parsePorcelain extracts paths from `git status --porcelain -z` output
func parsePorcelain(out string) []string {
	paths := []string{}
	for _, entry := range strings.Split(out, "\x00") {
		if len(entry) < 4 {
			continue
		}
		paths = append(paths, entry[3:])
	}
	sort.Strings(paths)
	return paths
}

// ✅ verifyOperation checks the transformed target against the source
type verifyOperation struct{}

// NewVerifyOperation creates the stage that verifies the target tree
func NewVerifyOperation() Operation {
	return &verifyOperation{}
}

func (op *verifyOperation) Name() string { return "verify" }

func (op *verifyOperation) Detail(run *Run) string {
	return fmt.Sprintf("%d required entries", len(run.Config.Verify.RequiredFiles))
}

func (op *verifyOperation) Execute(ctx context.Context, run *Run) error {
	report, err := verify.Verify(ctx, run.Mirror.SourceDir(), run.Mirror.TargetDir(), run.Config.Verify.RequiredFiles)
	if report != nil {
		run.Summary.Verify = report
	}
	return err
}

// ✅ Verify compares the cached working copies as they are on disk
func (o *operator) Verify(ctx context.Context) (*verify.Report, error) {
	cfg := o.opts.Config

	if !isGitDir(cfg.SourceDir()) {
		return nil, errors.Errorf("%w: no working copy at %s", mirror.ErrSourceUnavailable, cfg.SourceDir())
	}
	if !isGitDir(cfg.TargetDir()) {
		return nil, errors.Errorf("%w: no working copy at %s", mirror.ErrTargetUnavailable, cfg.TargetDir())
	}
	return verify.Verify(ctx, cfg.SourceDir(), cfg.TargetDir(), cfg.Verify.RequiredFiles)
}

func isGitDir(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
