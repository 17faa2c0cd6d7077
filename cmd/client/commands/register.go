package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtroode/srplogin/internal/client"
	"github.com/dtroode/srplogin/internal/model"
)

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register [account]",
		Short: "Create an account on the login server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := conn.Register(cmd.Context(), client.Credentials{AccountName: args[0], Password: password})
			if err != nil {
				return err
			}
			if result != model.ResultAccountCreated {
				return fmt.Errorf("registration failed: %s", result)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Account created")
			return nil
		},
	}
	return cmd
}
