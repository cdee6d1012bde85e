package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/giantswarm/oauth-pkce/storage/static"
)

var secretHashCmd = &cobra.Command{
	Use:   "secret-hash [secret]",
	Short: "Print the bcrypt hash of a client secret for the clients file",
	Long: `Print the bcrypt hash of a client secret for the client_secret_hash
field of the clients file. The secret is read from stdin when no argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := ""
		if len(args) == 1 {
			secret = args[0]
		} else {
			scanner := bufio.NewScanner(cmd.InOrStdin())
			if scanner.Scan() {
				secret = strings.TrimSpace(scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read secret: %w", err)
			}
		}

		hash, err := static.HashSecret(secret)
		if err != nil {
			return fmt.Errorf("hash secret: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
		return err
	},
}
