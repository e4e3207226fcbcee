// minthttp is a command-line HTTP client built on a pooled connection layer.
//
// Usage:
//
//	minthttp get <url> [flags]
//	minthttp config init <path>
//	minthttp version
//
// Settings are read from a TOML file given with --config. A missing file
// means defaults. Set DEBUG_I2P=debug to see pool and connection logs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/go-i2p/minthttp/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "minthttp",
		Short:         "HTTP client with connection pooling",
		Version:       version.Full(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "config file path (TOML)")

	root.AddCommand(newGetCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "minthttp version %s\n", version.Full())
		},
	}
}
