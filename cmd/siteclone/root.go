// Package main provides the entry point for the siteclone CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for siteclone.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "siteclone",
		Short: "Clone websites into self-contained local copies",
		Long: `siteclone crawls a website and rebuilds it as a local directory that
works offline: pages, stylesheets, scripts, images, fonts, and the 3D
assets (models, textures, environment maps) that modern scene-heavy
sites ship. It fingerprints the frontend build tool and rewrites asset
references to match that tool's path conventions.

Use "clone" for a one-shot clone from the terminal, or "serve" to run
the WebSocket push-channel server that UIs connect to.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCloneCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
