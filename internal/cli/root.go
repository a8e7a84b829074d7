// Package cli provides the command-line interface for ncopds.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/logging"
	"github.com/ncopds/ncopds/internal/version"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	quiet   bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command. Without a subcommand it starts the
// interactive browser.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ncopds",
		Short: "Browse OPDS catalogs and download books from the terminal",
		Long: `ncopds ` + version.Version + ` - Built: ` + version.BuildTime + `
Terminal browser for OPDS (Atom) e-book catalogs.

Interactive mode (default, or "ncopds tui"):
  Navigate catalogs, search, download books and manage the
  download directory.

Commands:
  browse, get, ls, login, logout and connections work without
  the interactive display and are suitable for scripts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFiles(".env", filepath.Join(config.ConfigDirectory(), ".env")); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
			logger = logging.NewDefaultCLILogger()
			logging.SetGlobalLevel(logLevel(os.Getenv(config.EnvLogLevel)))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default: "+defaultConfigPathHint()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only show warnings and errors; no progress bars")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.Version = version.String()

	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for ncopds.

Examples:
  source <(ncopds completion bash)
  ncopds completion zsh > "${fpath[1]}/_ncopds"
  ncopds completion fish > ~/.config/fish/completions/ncopds.fish
  ncopds completion powershell | Out-String | Invoke-Expression`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletion(out)
			}
			return fmt.Errorf("unsupported shell %q", args[0])
		},
	}
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// logLevel applies --verbose/--quiet over the configured level.
func logLevel(configured string) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return logging.ParseLevel(configured)
	}
}

func defaultConfigPathHint() string {
	p, err := config.DefaultConfigPath()
	if err != nil {
		return "config.ini"
	}
	return p
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Every signal cancels the root context; repeats are harmless.
	go func() {
		for sig := range sigChan {
			if sig != nil {
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.ExecuteContext(rootContext)

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newTUICmd())
	rootCmd.AddCommand(newBrowseCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newConnectionsCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
