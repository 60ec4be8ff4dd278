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

	"github.com/rs/zerolog"
	"github.com/walteh/envmirror/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// ⚙️ Operation is one stage of a pipeline run
type Operation interface {
	// Name is the short stage name shown in the console
	Name() string
	// Detail describes what the stage works on; it may be empty
	Detail(run *Run) string
	// Execute runs the stage against the shared run state
	Execute(ctx context.Context, run *Run) error
}

// 🏃 OperationRunner executes operations in order
type OperationRunner struct {
	logger *zerolog.Logger
}

// 🏗️ NewRunner creates a new runner
func NewRunner(logger *zerolog.Logger) *OperationRunner {
	return &OperationRunner{logger: logger}
}

// 🏃 Run executes ops one after another and stops at the first failure.
// Cancellation is checked before every stage.
func (r *OperationRunner) Run(ctx context.Context, run *Run, ops ...Operation) error {
	console := log.FromContext(ctx)

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return errors.Errorf("operation cancelled before %s: %w", op.Name(), err)
		}

		console.StartStage(ctx, log.Stage{
			Step:   i + 1,
			Total:  len(ops),
			Name:   op.Name(),
			Detail: op.Detail(run),
		})
		r.logger.Debug().Str("stage", op.Name()).Msg("executing operation")

		err := op.Execute(ctx, run)
		console.EndStage(ctx)
		if err != nil {
			r.logger.Error().Err(err).Str("stage", op.Name()).Msg("operation failed")
			return errors.Errorf("%s: %w", op.Name(), err)
		}
	}
	return nil
}
