// Package cli provides the command-line interface for GridWeaver.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/leapstack-labs/gridweaver/internal/cli/commands"
	"github.com/leapstack-labs/gridweaver/internal/cli/config"
	sharedcfg "github.com/leapstack-labs/gridweaver/internal/config"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "gridweaver",
		Short: "GridWeaver - Declarative data grids",
		Long: `GridWeaver stores code-free table definitions, serves them over HTTP and
turns them into live grids backed by paged JSON endpoints.

Definitions declare columns, renderer names and formatter expressions. The
server validates and persists them; the CLI checks, translates and previews
them.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			logger, err := sharedcfg.NewLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			if file := config.GetConfigFileUsed(); file != "" {
				logger.Debug("using config file", "path", file)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = context.WithValue(ctx, config.ConfigKey(), cfg)
			ctx = context.WithValue(ctx, config.LoggerKey(), logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./gridweaver.yaml)")
	flags.String("addr", "", "API listen address")
	flags.String("storage", "", "Storage type (memory|sqlite|postgres)")
	flags.String("dsn", "", "Storage connection string")
	flags.String("secret", "", "Mutation secret (prefer GRIDWEAVER_MUTATION__SECRET)")
	flags.String("base-url", "", "Base URL for relative data endpoints")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("log-format", "", "Log format (text|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("storage", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"memory", "sqlite", "postgres"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewTranslateCommand())
	rootCmd.AddCommand(commands.NewPreviewCommand())
	rootCmd.AddCommand(commands.NewReplCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for GridWeaver.

To load completions:

Bash:
  $ source <(gridweaver completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ gridweaver completion bash > /etc/bash_completion.d/gridweaver
  # macOS:
  $ gridweaver completion bash > $(brew --prefix)/etc/bash_completion.d/gridweaver

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ gridweaver completion zsh > "${fpath[1]}/_gridweaver"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ gridweaver completion fish | source

  # To load completions for each session, execute once:
  $ gridweaver completion fish > ~/.config/fish/completions/gridweaver.fish

PowerShell:
  PS> gridweaver completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> gridweaver completion powershell > gridweaver.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
