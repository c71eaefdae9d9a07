// Command gogated serves a small media API behind the goGate request gate.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gogated",
		Short:         "Authentication, session and access-control gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server. Configuration is read from GOGATE_* environment
variables; flags cover development conveniences only.`,
		Example: `  GOGATE_TOKEN_SIGNING_KEY=... GOGATE_REDIS_URL=redis://localhost:6379/0 gogated serve
  gogated serve --dev`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVar(&opts.dev, "dev", false, "use an embedded Redis and a generated signing key")
	cmd.Flags().StringVar(&opts.adminPassword, "admin-password", "", "password for the seeded admin account (generated when empty)")
	cmd.Flags().StringVar(&opts.userPassword, "user-password", "", "password for the seeded user account (generated when empty)")
	return cmd
}
