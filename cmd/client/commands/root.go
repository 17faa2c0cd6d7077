package commands

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dtroode/srplogin/internal/client"
)

var (
	serverAddr string
	caFile     string
	useTLS     bool
	password   string
	timeout    time.Duration

	conn *client.Client
)

func Execute() error {
	root := &cobra.Command{
		Use:          "srplogin",
		Short:        "Log in to or register with a login server",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("SRPLOGIN_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("password is required (--password or SRPLOGIN_PASSWORD)")
			}

			opts := client.Options{HandshakeTimeout: timeout}
			if useTLS || caFile != "" {
				cfg, err := tlsConfig(caFile)
				if err != nil {
					return err
				}
				opts.TLS = cfg
			}

			c, err := client.Dial(serverAddr, opts)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if conn != nil {
				return conn.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s", "127.0.0.1:50051", "login server address")
	root.PersistentFlags().BoolVar(&useTLS, "tls", false, "connect with TLS")
	root.PersistentFlags().StringVar(&caFile, "ca", "", "PEM file with the server CA (implies --tls)")
	root.PersistentFlags().StringVarP(&password, "password", "p", "", "account password (default $SRPLOGIN_PASSWORD)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "handshake timeout")

	root.AddCommand(loginCmd(), registerCmd())
	return root.Execute()
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}

	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates in %s", caFile)
	}
	cfg.RootCAs = pool
	return cfg, nil
}
