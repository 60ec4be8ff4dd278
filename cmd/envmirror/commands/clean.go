package commands

import (
	"github.com/spf13/cobra"
	"github.com/walteh/envmirror/cmd/envmirror/opts"
	"gitlab.com/tozd/go/errors"
)

// NewCleanCmd creates a new clean command
func NewCleanCmd(root *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the cached working copies",
		Long: `Clean removes the source and target working copies from the cache
directory. The next sync clones both repositories again. The cached manifest
template is kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := root.Operator(nil, false, false)
			if err != nil {
				return err
			}
			if err := op.Clean(cmd.Context()); err != nil {
				return errors.Errorf("cleaning cache: %w", err)
			}
			return nil
		},
	}

	return cmd
}
