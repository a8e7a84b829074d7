package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/credential"
)

// newPrompter asks for passwords outside the browser. Tests replace it.
var newPrompter = func() credential.Prompter {
	return credential.NewTerminalPrompter()
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <connection>",
		Short: "Store a connection's password in the system keyring",
		Long: `Prompt for a connection's password and store it in the system keyring.

The connection must have a username. The stored password is used for
every request to the connection until it is rejected by the server or
removed with "ncopds logout". When stdin is not a terminal the password
is read from the first line of input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := authConnection(args[0])
			if err != nil {
				return err
			}
			secret, err := newPrompter().Prompt(cmd.Context(), conn)
			if err != nil {
				return err
			}
			if err := newStore().Set(conn, secret); err != nil {
				return fmt.Errorf("failed to store password: %w", err)
			}
			GetLogger().Debug().Str("connection", conn.Name).Msg("Password stored")
			fmt.Fprintf(cmd.OutOrStdout(), "Password for %s at %s stored\n", conn.Username, conn.Name)
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout <connection>",
		Short: "Remove a connection's stored password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := authConnection(args[0])
			if err != nil {
				return err
			}
			err = newStore().Delete(conn)
			switch {
			case errors.Is(err, credential.ErrNotFound):
				fmt.Fprintf(cmd.OutOrStdout(), "No password stored for %s\n", conn.Name)
				return nil
			case err != nil:
				return fmt.Errorf("failed to remove password: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password for %s removed\n", conn.Name)
			return nil
		},
	}
}

func authConnection(name string) (config.Connection, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Connection{}, err
	}
	conn, ok := cfg.Connection(name)
	if !ok {
		return config.Connection{}, fmt.Errorf("%w: %s", config.ErrUnknownConnection, name)
	}
	if conn.Username == "" {
		return config.Connection{}, fmt.Errorf("connection %s has no username; add one with \"ncopds connections add\"", name)
	}
	return conn, nil
}
