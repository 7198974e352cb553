package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"supplies-portal/internal/auth"
	"supplies-portal/internal/config"

	"github.com/spf13/cobra"
)

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash to paste into the secrets file",
		Long: `Print the bcrypt hash of a password. Without an argument the password
is read from the first line of standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newGenSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-secret",
		Short: "Print a random value for JWT_SECRET or CSRF_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := auth.GenerateSecret()
			if err != nil {
				return fmt.Errorf("generate secret: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}

func newUsersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List the users configured in the secrets file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadForTools()
			if err != nil {
				return err
			}
			secrets, err := config.LoadSecrets(cfg.Store.SecretsPath, false)
			if err != nil {
				return err
			}

			creds := make(map[string]auth.Credential, len(secrets.Users))
			for username, u := range secrets.Users {
				creds[username] = auth.Credential{Name: u.Name, PasswordHash: u.Password}
			}
			store := auth.NewCredentialStore(creds)

			type userRow struct {
				Username string `json:"username"`
				Name     string `json:"name"`
			}
			var rows []userRow
			for _, username := range store.Usernames() {
				rows = append(rows, userRow{Username: username, Name: secrets.Users[username].Name})
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, rows)
			}
			for _, r := range rows {
				fmt.Fprintf(out, "%s\t%s\n", r.Username, r.Name)
			}
			return nil
		},
	}
}
