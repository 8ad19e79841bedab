package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/portaoweb/portao-core/internal/auth"
	"github.com/portaoweb/portao-core/internal/gate"
)

func newComandoCmd(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:     "comando <name>",
		Short:   "Send a command to the gate (see 'comandos')",
		GroupID: "gate",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := gate.ParseCommand(name); err != nil {
				return err
			}

			result, err := client.Command(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("sending %s: %w", name, err)
			}
			if !result.Success {
				return fmt.Errorf("%s failed: %s", name, result.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", name)
			return nil
		},
	}
}

func newComandosCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "comandos",
		Short:   "List the commands the gate accepts",
		GroupID: "gate",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range gate.Commands() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func newStatusCmd(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show the current gate status",
		GroupID: "gate",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := client.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func newReportCmd(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:     "report <status>",
		Short:   "Report a gate status as the controller would",
		GroupID: "gate",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := client.Report(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newWatchCmd(client *apiClient) *cobra.Command {
	var (
		path  string
		count int
	)

	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Print every status pushed by the bridge",
		GroupID: "gate",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seen := 0
			return client.Watch(cmd.Context(), path, func(status string) bool {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", time.Now().Format(time.TimeOnly), status)
				seen++
				return count <= 0 || seen < count
			})
		},
	}

	cmd.Flags().StringVar(&path, "path", "/ws", "WebSocket path on the server")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many updates (0 = run until interrupted)")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		ttl     int
	)

	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Mint an access token for /comando",
		GroupID: "system",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret is required (or set PORTAO_JWT_SECRET)")
			}
			token, err := auth.GenerateAccessToken(subject, secret, ttl)
			if err != nil {
				return fmt.Errorf("minting token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("PORTAO_JWT_SECRET"), "signing secret (security.jwt.secret)")
	cmd.Flags().StringVar(&subject, "subject", "painel", "token subject, logged with every command")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in minutes (0 = server default)")
	return cmd
}
