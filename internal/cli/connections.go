package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/credential"
)

func newConnectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connections",
		Aliases: []string{"conn"},
		Short:   "Manage catalog connections",
	}
	cmd.AddCommand(newConnectionsListCmd())
	cmd.AddCommand(newConnectionsAddCmd())
	cmd.AddCommand(newConnectionsRemoveCmd())
	return cmd
}

func newConnectionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured connections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cfg.Connections) == 0 {
				fmt.Fprintln(out, "No connections configured. Add one with \"ncopds connections add <name> <url>\".")
				return nil
			}
			t := newTable([]string{"NAME", "URL", "USERNAME"})
			for _, c := range cfg.Connections {
				user := c.Username
				if user == "" {
					user = "-"
				}
				t.Row(c.Name, c.URL, user)
			}
			_, err = fmt.Fprintln(out, t.Render())
			return err
		},
	}
}

func newConnectionsAddCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Add a catalog connection",
		Long: `Add a named connection to the configuration file.

Examples:
  ncopds connections add gutenberg https://www.gutenberg.org/ebooks.opds/
  ncopds connections add home https://books.example.org/opds --username alice`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn := config.Connection{Name: args[0], URL: args[1], Username: username}
			if err := cfg.AddConnection(conn); err != nil {
				return err
			}
			path, err := saveConfig(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added connection %s (%s)\n", conn.Name, path)
			if username != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Run \"ncopds login %s\" to store its password\n", conn.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username for HTTP basic authentication")
	return cmd
}

func newConnectionsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a catalog connection and its stored password",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, _ := cfg.Connection(args[0])
			if err := cfg.RemoveConnection(args[0]); err != nil {
				return err
			}
			if _, err := saveConfig(cfg); err != nil {
				return err
			}
			if conn.Username != "" {
				if err := newStore().Delete(conn); err != nil && !errors.Is(err, credential.ErrNotFound) {
					GetLogger().Warn().Err(err).Str("connection", conn.Name).Msg("Failed to remove stored password")
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed connection %s\n", args[0])
			return nil
		},
	}
}

func saveConfig(cfg *config.Config) (string, error) {
	path, err := configPath()
	if err != nil {
		return "", err
	}
	if err := config.Save(cfg, path); err != nil {
		return "", fmt.Errorf("failed to save config: %w", err)
	}
	return path, nil
}
