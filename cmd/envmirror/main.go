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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/walteh/envmirror/cmd/envmirror/opts"
	"github.com/walteh/envmirror/pkg/log"
	"github.com/walteh/envmirror/pkg/status"

	_ "github.com/walteh/envmirror/pkg/remote/github"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the command line and returns the exit code. Temp files are
// released on every path, interrupts included.
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &opts.RootOpts{Scope: status.NewScope()}
	cmd := newRootCmd(root, os.Stdout, os.Stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)

	console := root.Console
	if console == nil {
		console = log.New(os.Stderr, zerolog.Nop())
	}
	if rerr := root.Scope.Release(context.WithoutCancel(ctx)); rerr != nil {
		console.Errorf("cleaning up: %v", rerr)
	}

	if err != nil {
		console.Errorf("%v", err)
		return 1
	}
	return 0
}
