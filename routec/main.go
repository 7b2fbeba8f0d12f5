package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/davidbalbert/globalrouting/api"
	"github.com/spf13/cobra"
)

var (
	socketPath string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "routec",
	Short:        "Query a running routed",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "/var/run/routed.sock", "path to routed socket")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the daemon's version",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, client *api.Client, args []string) error {
			version, err := client.GetVersion(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "v%s\n", version)

			return nil
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "routes ROUTER",
		Short: "Show a router's routing table",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, client *api.Client, args []string) error {
			routes, err := client.GetRoutes(ctx, args[0])
			if err != nil {
				return err
			}

			for _, r := range routes {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}

			return nil
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "database",
		Short: "Show the link state database",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, client *api.Client, args []string) error {
			lsas, err := client.GetDatabase(ctx)
			if err != nil {
				return err
			}

			for _, lsa := range lsas {
				fmt.Fprintln(cmd.OutOrStdout(), lsa)
			}

			return nil
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "recompute",
		Short: "Rebuild every routing table from the current topology",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, client *api.Client, args []string) error {
			return client.Recompute(ctx)
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:       "interface ROUTER INTERFACE up|down",
		Short:     "Bring a router's interface up or down",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"up", "down"},
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, client *api.Client, args []string) error {
			var up bool
			switch args[2] {
			case "up":
				up = true
			case "down":
			default:
				return fmt.Errorf("expected up or down, got %q", args[2])
			}

			return client.SetInterface(ctx, args[0], args[1], up)
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "shutdown",
		Short: "Stop routed",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, client *api.Client, args []string) error {
			return client.Shutdown(ctx)
		}),
	})
}

type clientFunc func(ctx context.Context, cmd *cobra.Command, client *api.Client, args []string) error

func withClient(fn clientFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, err := api.NewClient(socketPath)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		return fn(ctx, cmd, client, args)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
