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

	"github.com/walteh/envmirror/pkg/log"
	"github.com/walteh/envmirror/pkg/transform"
)

// 📋 copyOperation replaces the target tree with the source tree
type copyOperation struct{}

// NewCopyOperation creates the stage that wipes the target and copies the source in
func NewCopyOperation() Operation {
	return &copyOperation{}
}

func (op *copyOperation) Name() string { return "copy" }

func (op *copyOperation) Detail(run *Run) string {
	return fmt.Sprintf("%s -> %s", run.Mirror.SourceDir(), run.Mirror.TargetDir())
}

func (op *copyOperation) Execute(ctx context.Context, run *Run) error {
	tree, err := run.Mirror.ResetAndCopy(ctx)
	if err != nil {
		return err
	}
	run.Summary.Tree = tree

	console := log.FromContext(ctx)
	for _, s := range tree.Skipped {
		console.Warningf("skipped symlink %s", s)
	}
	return nil
}

// 🔄 transformOperation rewrites the copied tree for the target environment
type transformOperation struct {
	showDiff bool
}

// NewTransformOperation creates the stage that runs the dispatcher over the target tree
func NewTransformOperation(showDiff bool) Operation {
	return &transformOperation{showDiff: showDiff}
}

func (op *transformOperation) Name() string { return "transform" }

func (op *transformOperation) Detail(run *Run) string {
	return fmt.Sprintf("%s -> %s", run.Config.Source.Namespace, run.Config.Target.Namespace)
}

func (op *transformOperation) Execute(ctx context.Context, run *Run) error {
	d, err := transform.NewDispatcher(transform.OptionsFromConfig(run.Config, run.Scope, op.showDiff))
	if err != nil {
		return err
	}

	report, err := d.ProcessTree(ctx, run.Mirror.TargetDir())
	if err != nil {
		return err
	}
	run.Summary.Transform = report

	console := log.FromContext(ctx)
	for _, w := range report.Warnings {
		console.Warning(w)
	}
	return nil
}
