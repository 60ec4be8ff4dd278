package commands

import (
	"github.com/spf13/cobra"
	"github.com/walteh/envmirror/cmd/envmirror/opts"
	"github.com/walteh/envmirror/pkg/log"
)

// NewVerifyCmd creates a new verify command
func NewVerifyCmd(root *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the cached target against the cached source",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console := log.FromContext(ctx)

			op, err := root.Operator(nil, false, false)
			if err != nil {
				return err
			}

			report, err := op.Verify(ctx)
			if err != nil {
				return err
			}

			console.Successf("%d files verified, %d required entries present", report.TargetCount, len(root.Config.Verify.RequiredFiles))
			if !report.CountsMatch() {
				console.Warningf("source has %d files, target has %d", report.SourceCount, report.TargetCount)
			}
			return nil
		},
	}

	return cmd
}
