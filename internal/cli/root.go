package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/canonical/dotrun-image/internal/project"
)

// DefaultScript is run when no command is given.
const DefaultScript = "start"

const helpScript = "help"

var version = "dev"

// SetVersion sets the version reported by `dotrun version`.
func SetVersion(v string) {
	if v == "" {
		return
	}
	version = v
}

// app holds the global flags and the state shared by one invocation.
type app struct {
	skipInstall bool
	envs        []string
	verbose     bool

	logger *zap.Logger
}

// newRootCmd builds the dotrun command tree.
func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dotrun [flags] [command] [args...]",
		Short: "Project-level dependency management and package.json commands",
		Long: `dotrun installs a project's node and python dependencies when they change,
then runs a package.json script inside that environment.

Simply typing ` + "`dotrun`" + ` runs the ` + "`start`" + ` script. Any other command is run
with ` + "`yarn run <command>`" + ` (or npm when there is no yarn.lock), passing the
remaining arguments through unchanged.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initLogger()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScript(cmd, args)
		},
	}
	rootCmd.SetVersionTemplate("dotrun v{{.Version}}\n")
	rootCmd.SetHelpFunc(customHelpFunc)

	// Everything after the script name belongs to the script.
	rootCmd.Flags().SetInterspersed(false)

	rootCmd.PersistentFlags().BoolVarP(&a.skipInstall, "skip-install", "s", false, "Don't check for python or node dependencies before running")
	rootCmd.PersistentFlags().StringArrayVarP(&a.envs, "env", "e", nil, "Environment variables (KEY=VALUE) to use when running commands.\nThese override what's in .env or .env.local")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Print debug logs")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "environment",
		Title: "Environment:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "cli-tooling",
		Title: "CLI & Tooling:",
	})

	rootCmd.AddCommand(newExecCmd(a))
	rootCmd.AddCommand(newInstallCmd(a))
	rootCmd.AddCommand(newCleanCmd(a))
	rootCmd.AddCommand(newCleanCacheCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	// A package.json "help" script takes precedence over dotrun's own help.
	helpCmd := &cobra.Command{
		Use:     "help [command]",
		Short:   "Help about any command (runs the project's help script if it has one)",
		GroupID: "cli-tooling",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectDeclaresScript(helpScript) {
				return a.runScript(cmd, append([]string{helpScript}, args...))
			}
			return cmd.Root().Help()
		},
	}
	helpCmd.Flags().SetInterspersed(false)
	rootCmd.SetHelpCommand(helpCmd)

	return rootCmd
}

// initLogger builds the debug logger. Debug output is only enabled with
// --verbose.
func (a *app) initLogger() error {
	if a.logger != nil {
		return nil
	}
	config := zap.NewProductionConfig()
	if a.verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *app) syncLogger() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// runScript installs dependencies unless told not to, then runs the
// package.json script named by the first argument.
func (a *app) runScript(cmd *cobra.Command, args []string) error {
	name := DefaultScript
	var rest []string
	if len(args) > 0 {
		if args[0] != "" {
			name = args[0]
		}
		rest = args[1:]
	}

	sess, err := a.openSession(cmd)
	if err != nil {
		return err
	}
	defer a.closeSession(sess)

	ctx := cmd.Context()
	if !a.skipInstall {
		if err := sess.Install(ctx, false); err != nil {
			return err
		}
	}

	found, err := sess.HasScript(name)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(cmd.ErrOrStderr(), "usage: %s\n", cmd.UseLine())
		return fmt.Errorf("%w: `%s` script not found in `package.json`", project.ErrScriptNotFound, name)
	}

	a.logger.Debug("running script", zap.String("script", name), zap.Strings("args", rest))
	_, err = sess.RunScript(ctx, name, rest, true)
	return err
}

// Execute runs dotrun with the given command-line arguments.
func Execute(ctx context.Context, args []string) error {
	a := &app{}
	defer a.syncLogger()

	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// customHelpFunc prints help with colored section titles and grouped
// commands.
func customHelpFunc(cmd *cobra.Command, args []string) {
	var help strings.Builder

	if cmd.Long != "" {
		help.WriteString(cmd.Long)
		help.WriteString("\n\n")
	} else if cmd.Short != "" {
		help.WriteString(cmd.Short)
		help.WriteString("\n\n")
	}

	help.WriteString(sectionTitleColor.Sprint("Usage:"))
	help.WriteString("\n")
	fmt.Fprintf(&help, "  %s\n\n", cmd.UseLine())

	for _, group := range cmd.Groups() {
		help.WriteString(groupTitleColor.Sprint(group.Title))
		help.WriteString("\n")

		for _, c := range cmd.Commands() {
			if c.GroupID == group.ID && !c.Hidden {
				fmt.Fprintf(&help, "  %-12s %s\n", c.Name(), c.Short)
			}
		}
		help.WriteString("\n")
	}

	if cmd.HasAvailableLocalFlags() || cmd.HasAvailablePersistentFlags() {
		help.WriteString(sectionTitleColor.Sprint("Flags:"))
		help.WriteString("\n")
		help.WriteString(cmd.LocalFlags().FlagUsages())
		help.WriteString(cmd.InheritedFlags().FlagUsages())
		help.WriteString("\n")
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(&help, "Use \"%s help [command]\" for more information about a command.\n", cmd.CommandPath())
	}

	fmt.Fprint(cmd.OutOrStdout(), help.String())
}
