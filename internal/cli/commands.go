package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExecCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "exec [command...]",
		Short:   "Execute a command, or open a bash shell, within the dotrun environment",
		GroupID: "environment",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer a.closeSession(sess)

			_, err = sess.Exec(cmd.Context(), args, false)
			return err
		},
	}
	// `dotrun exec ls -la` passes -la to ls.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newInstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "install",
		Short:   "Reinstall node and python dependencies",
		GroupID: "environment",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer a.closeSession(sess)

			return sess.Install(cmd.Context(), true)
		},
	}
}

func newCleanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "clean",
		Short:   "Run the `clean` script and remove all dotrun files",
		GroupID: "environment",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer a.closeSession(sess)

			return sess.Clean(cmd.Context())
		},
	}
}

func newCleanCacheCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "clean-cache",
		Short:   "Delete the cache, including yarn & pip caches",
		GroupID: "environment",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer a.closeSession(sess)

			return sess.CleanCache(cmd.Context())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Print the dotrun version",
		Args:    cobra.NoArgs,
		GroupID: "cli-tooling",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dotrun v%s\n", version)
		},
	}
}
