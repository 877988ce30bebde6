package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/userhub/internal/config"
)

// NewRootCmd builds the command tree around an already loaded config.
func NewRootCmd(cfg *config.AppConfig) *cobra.Command {
	root := &cobra.Command{
		Use:   "userhub",
		Short: "Users API with a bundled single-page frontend",
		Long: `userhub serves a small REST API for managing users together with the
single-page frontend that consumes it. It also builds the frontend and runs a
development server that proxies API calls to the backend.`,
		SilenceUsage: true,
	}

	root.AddCommand(NewServeCmd(cfg))
	root.AddCommand(NewDevCmd(cfg))
	root.AddCommand(NewBuildCmd(cfg))
	root.AddCommand(NewVersionCmd())
	root.AddCommand(NewUpdateCmd(cfg))
	return root
}

// Execute loads configuration and runs the root command.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := NewRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
