package commands

import (
	"github.com/spf13/cobra"
	"github.com/walteh/envmirror/cmd/envmirror/opts"
	"github.com/walteh/envmirror/pkg/cluster"
	"github.com/walteh/envmirror/pkg/config"
	"github.com/walteh/envmirror/pkg/log"
	"github.com/walteh/envmirror/pkg/transform"
	"gitlab.com/tozd/go/errors"
)

// NewManifestCmd creates a new manifest command
func NewManifestCmd(root *opts.RootOpts) *cobra.Command {
	var (
		apply        bool
		remove       bool
		databaseMode string
	)

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Generate the deployment manifest for the target environment",
		Long: `Manifest renders the deployment manifest for the target environment from
the source environment's template. The template is read from the cache, or
fetched from the live source resource and cached on first use.

The database mode defaults to the mode of the target's database mapping.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console := log.FromContext(ctx)
			cfg := root.Config

			if remove {
				clients, err := root.Cluster()
				if err != nil {
					return errors.Errorf("connecting to cluster: %w", err)
				}
				envs := cluster.NewEnvironments(clients.Dynamic, cluster.ResourceFromConfig(cfg.Manifest), cfg.Manifest.Name)
				if err := envs.DeleteLiveManifest(ctx, cfg.Target.Namespace); err != nil {
					return err
				}
				console.Successf("deleted %s/%s", cfg.Target.Namespace, cfg.Manifest.Name)
				return nil
			}

			switch databaseMode {
			case "":
				if m, _ := transform.ResolveMapping(cfg.Target.Namespace, cfg.Database.Mappings); m != nil {
					databaseMode = m.Mode
				}
			case config.ModeLocal, config.ModeRemote:
			default:
				return errors.Errorf("--database-mode must be %q or %q, got %q", config.ModeLocal, config.ModeRemote, databaseMode)
			}

			gen, err := root.Generator(ctx, apply)
			if err != nil {
				return err
			}

			out, err := gen.Run(ctx, cfg.Source, cfg.Target, databaseMode, apply)
			if err != nil {
				if out != nil {
					console.Errorf("apply the manifest by hand: %s", out.ManualCommand)
				}
				return errors.Errorf("generating manifest: %w", err)
			}

			if out.Applied {
				console.Successf("applied %s", out.Path)
			} else {
				console.Successf("wrote %s", out.Path)
				console.Infof("apply with: %s", out.ManualCommand)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "apply the manifest to the cluster")
	cmd.Flags().BoolVar(&remove, "delete", false, "delete the live resource of the target environment instead")
	cmd.Flags().StringVar(&databaseMode, "database-mode", "", "override the databaseMode written into the manifest (local or remote)")
	cmd.MarkFlagsMutuallyExclusive("apply", "delete")

	return cmd
}
