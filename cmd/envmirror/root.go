package main

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/envmirror/cmd/envmirror/commands"
	"github.com/walteh/envmirror/cmd/envmirror/opts"
	"github.com/walteh/envmirror/pkg/log"
)

// skipConfig marks commands that run without a config file
const skipConfig = "envmirror/skip-config"

// newRootCmd builds the command tree around root
func newRootCmd(root *opts.RootOpts, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "envmirror",
		Short: "Mirror a golden environment configuration into a target environment",
		Long: `envmirror clones the configuration tree of a source environment, reproduces
it in the target environment's repository, rewrites every environment-scoped
value for the target and publishes the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := setupLogging(cmd, root, stdout, stderr)
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return root.Init(ctx)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	addRootFlags(cmd, root)

	cmd.AddCommand(
		commands.NewSyncCmd(root),
		commands.NewStatusCmd(root),
		commands.NewVerifyCmd(root),
		commands.NewCleanCmd(root),
		commands.NewManifestCmd(root),
		newVersionCmd(),
	)

	return cmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, root *opts.RootOpts) {
	f := cmd.PersistentFlags()
	f.StringVarP(&root.ConfigFile, "config", "c", "envmirror.yaml", "config file path (.yaml, .yml, .hcl or .json)")
	f.BoolVarP(&root.Debug, "debug", "d", false, "enable debug logging")
	f.StringVar(&root.Kubeconfig, "kubeconfig", "", "kubeconfig path; defaults to in-cluster, then KUBECONFIG")

	o := &root.Overrides
	f.StringVar(&o.SourceNamespace, "source-namespace", "", "override source.namespace")
	f.StringVar(&o.SourceBranch, "source-branch", "", "override source.branch")
	f.StringVar(&o.TargetNamespace, "target-namespace", "", "override target.namespace")
	f.StringVar(&o.TargetOwner, "target-owner", "", "override target.owner")
	f.StringVar(&o.TargetRepo, "target-repo", "", "override target.repo")
	f.StringVar(&o.TargetBranch, "target-branch", "", "override target.branch")
	f.StringVar(&o.Policy, "policy", "", "override publish.policy (rebase or force)")
}

// setupLogging puts a zerolog logger and a console logger into the command context
func setupLogging(cmd *cobra.Command, root *opts.RootOpts, stdout, stderr io.Writer) context.Context {
	level := zerolog.WarnLevel
	if root.Debug {
		level = zerolog.DebugLevel
	}

	zl := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).With().Timestamp().Logger().Level(level)
	root.Console = log.New(stdout, zl)

	ctx := log.NewContext(zl.WithContext(cmd.Context()), root.Console)
	cmd.SetContext(ctx)
	return ctx
}
