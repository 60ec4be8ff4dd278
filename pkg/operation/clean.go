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
	"os"

	"github.com/rs/zerolog"
	"github.com/walteh/envmirror/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// 🧹 Clean removes the source and target working copies. The manifest
// template cache is kept so the next run does not need the cluster.
func (o *operator) Clean(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	console := log.FromContext(ctx)
	cfg := o.opts.Config

	for _, dir := range []string{cfg.SourceDir(), cfg.TargetDir()} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			logger.Debug().Str("dir", dir).Msg("nothing to clean")
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return errors.Errorf("removing %s: %w", dir, err)
		}
		console.Infof("removed %s", dir)
	}
	return nil
}
