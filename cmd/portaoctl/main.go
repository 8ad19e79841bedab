// Portaoctl talks to a running portao bridge: it sends gate commands,
// reads and reports the status, follows status pushes and mints access
// tokens.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func defaultServer() string {
	if s := os.Getenv("PORTAO_SERVER"); s != "" {
		return s
	}
	return "http://localhost:3000"
}

// newRootCmd builds the command tree. Each invocation gets its own flag
// state so tests can run commands side by side.
func newRootCmd() *cobra.Command {
	var (
		serverURL string
		token     string
	)
	client := &apiClient{}

	rootCmd := &cobra.Command{
		Use:           "portaoctl <command>",
		Short:         "CLI client for the portao gate bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			*client = *newAPIClient(serverURL, token)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "bridge base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("PORTAO_TOKEN"), "bearer token for /comando")

	rootCmd.AddGroup(
		&cobra.Group{ID: "gate", Title: "Gate:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	// Gate
	rootCmd.AddCommand(newComandoCmd(client))
	rootCmd.AddCommand(newComandosCmd())
	rootCmd.AddCommand(newStatusCmd(client))
	rootCmd.AddCommand(newReportCmd(client))
	rootCmd.AddCommand(newWatchCmd(client))

	// System
	rootCmd.AddCommand(newTokenCmd())

	return rootCmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		rootCmd.PrintErrln("Error:", err)
		cancel()
		os.Exit(1)
	}
}
