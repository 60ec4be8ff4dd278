package commands

import (
	"github.com/spf13/cobra"
	"github.com/walteh/envmirror/cmd/envmirror/opts"
	"github.com/walteh/envmirror/pkg/log"
	"github.com/walteh/envmirror/pkg/manifest"
	"github.com/walteh/envmirror/pkg/operation"
	"gitlab.com/tozd/go/errors"
)

// NewSyncCmd creates a new sync command
func NewSyncCmd(root *opts.RootOpts) *cobra.Command {
	var (
		showDiff     bool
		withManifest bool
		apply        bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror the source environment into the target repository",
		Long: `Sync rebuilds the target configuration from the source environment.
It will:
1. Refresh the source working copy
2. Replace the target tree with the source tree
3. Rewrite environment-scoped values for the target
4. Verify required files and file counts
5. Commit and push the target branch
6. Optionally generate and apply the deployment manifest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console := log.FromContext(ctx)

			var gen *manifest.Generator
			if withManifest || apply {
				var err error
				if gen, err = root.Generator(ctx, apply); err != nil {
					return err
				}
			}

			op, err := root.Operator(gen, apply, showDiff)
			if err != nil {
				return err
			}

			summary, err := op.Sync(ctx)
			if summary != nil {
				console.LogNewline()
				console.Table(summary.Rows())
			}
			if err != nil {
				if gen != nil {
					reportManualApply(console, gen, summary, root.Config.Target.Namespace)
				}
				return errors.Errorf("syncing %s: %w", root.Config.Target.Namespace, err)
			}

			console.Successf("%s is in sync with %s", root.Config.Target.Namespace, root.Config.Source.Namespace)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showDiff, "show-diff", false, "log a line diff for every modified file")
	cmd.Flags().BoolVar(&withManifest, "manifest", false, "generate the deployment manifest after publishing")
	cmd.Flags().BoolVar(&apply, "apply", false, "generate and apply the deployment manifest")

	return cmd
}

// reportManualApply prints how to apply the manifest when a run that asked
// for one failed, whether or not the manifest stage was reached
func reportManualApply(console *log.Logger, gen *manifest.Generator, summary *operation.Summary, namespace string) {
	if summary != nil && summary.Manifest != nil {
		console.Errorf("apply the manifest by hand: %s", summary.Manifest.ManualCommand)
		return
	}
	console.Errorf("generate the manifest with `envmirror manifest`, then apply it by hand: %s", gen.ManualCommand(namespace))
}
