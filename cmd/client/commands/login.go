package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dtroode/srplogin/internal/client"
	"github.com/dtroode/srplogin/internal/model"
)

func loginCmd() *cobra.Command {
	var hold bool

	cmd := &cobra.Command{
		Use:   "login [account]",
		Short: "Log in and print the world-entry ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := conn.Login(cmd.Context(), client.Credentials{AccountName: args[0], Password: password})
			if err != nil {
				return err
			}
			if session.Result != model.ResultSuccess {
				return fmt.Errorf("login failed: %s", session.Result)
			}
			defer session.Close()

			fmt.Fprintln(cmd.OutOrStdout(), session.Ticket)
			if !hold {
				return nil
			}

			// Stay online until interrupted or the server drops us.
			waitCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := session.Wait(waitCtx); err != nil && waitCtx.Err() == nil {
				return fmt.Errorf("disconnected: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&hold, "hold", false, "keep the session online until interrupted")
	return cmd
}
