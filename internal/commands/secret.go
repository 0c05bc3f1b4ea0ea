package commands

import (
	"fmt"

	"github.com/pliu/hush/internal/crypto"
	"github.com/spf13/cobra"
)

// secret: print a random pair room secret.
func secretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Print a fresh random room secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := crypto.GenerateSecret()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
}
