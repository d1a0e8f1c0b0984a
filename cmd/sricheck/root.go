// Package main provides the entry point for the sricheck CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sricheck.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sricheck",
		Short: "Subresource Integrity checker for web pages",
		Long: `sricheck verifies Subresource Integrity (SRI) hashes of the scripts and
stylesheets referenced by web pages.

For every <script src> and <link rel="stylesheet" href> on a page it reports
references without an integrity attribute, fetches the referenced resource and
checks that its sha256, sha384 or sha512 digest matches the declared hash.

Page URLs are given to the scan subcommand, not to sricheck itself:

  sricheck scan https://example.com/ https://example.com/about`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
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
