package commands

import (
	"github.com/spf13/cobra"
	"github.com/walteh/envmirror/cmd/envmirror/opts"
	"github.com/walteh/envmirror/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// NewStatusCmd creates a new status command
func NewStatusCmd(root *opts.RootOpts) *cobra.Command {
	var showDiff bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what a sync would publish",
		Long: `Status runs the pipeline up to verification without committing.
It will:
1. Refresh both working copies
2. Copy and transform the tree
3. Verify the result
4. List the target paths a sync would commit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console := log.FromContext(ctx)

			op, err := root.Operator(nil, false, showDiff)
			if err != nil {
				return err
			}

			summary, err := op.Status(ctx)
			if summary != nil {
				console.LogNewline()
				console.Table(summary.Rows())
			}
			if err != nil {
				return errors.Errorf("checking status: %w", err)
			}

			if len(summary.Pending) == 0 {
				console.Success("target is up to date")
				return nil
			}
			for _, p := range summary.Pending {
				console.Infof("pending %s", p)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showDiff, "show-diff", false, "log a line diff for every modified file")

	return cmd
}
