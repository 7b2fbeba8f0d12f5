package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version    string
	configPath string
	verbose    bool
	logPath    string
)

var rootCmd = &cobra.Command{
	Use:   "routed",
	Short: "Global routing for simulated networks",
	Long: `routed reads a topology file, computes the shortest path routing table
every router would converge to, and serves the results over a local socket.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/routed/topology.yaml", "path to topology file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log SPF details")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-file", "", "also write logs to this file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
