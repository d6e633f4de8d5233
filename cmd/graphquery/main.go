// Package main provides the graphquery CLI entry point.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "graphquery",
		Short: "graphquery - transactional command batches over a property graph",
		Long: `graphquery executes batches of graph commands (add node, add edge,
query node with neighbor expansion) as single transactions against an
in-memory property graph, served over TCP and NNG.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "graphquery v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the query server",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "Path to a YAML configuration file")
	serveCmd.Flags().String("tcp-addr", "", "TCP listen address (overrides config)")
	serveCmd.Flags().String("nng-addr", "", "NNG listen URL, e.g. tcp://:7001 (overrides config)")
	serveCmd.Flags().String("metrics-addr", "", "Serve /metrics and /health on this address (overrides config)")
	rootCmd.AddCommand(serveCmd)

	execCmd := &cobra.Command{
		Use:   "exec [batch.yaml]",
		Short: "Send a YAML batch to a server and print the responses",
		Args:  cobra.ExactArgs(1),
		RunE:  runExec,
	}
	execCmd.Flags().String("addr", "127.0.0.1:7000", "Server TCP address")
	execCmd.Flags().String("nng", "", "Send over NNG to this URL instead of TCP")
	execCmd.Flags().Bool("compress", false, "Snappy-compress the request")
	execCmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")
	rootCmd.AddCommand(execCmd)

	return rootCmd
}
