package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/davidbalbert/globalrouting/config"
	"github.com/davidbalbert/globalrouting/ospf"
	"github.com/davidbalbert/globalrouting/topology"
	"github.com/spf13/cobra"
)

var (
	computeRouter   string
	computeDatabase bool
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute routes once and print every routing table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closer, err := newLogger(stderrFile(cmd))
		if err != nil {
			return err
		}
		defer closer.Close()

		conf, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		network, manager, err := computeRoutes(conf, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		if computeDatabase {
			printDatabase(out, manager.Database())
			return nil
		}

		nodes := network.Nodes()
		if computeRouter != "" {
			n, err := network.FindRouter(computeRouter)
			if err != nil {
				return err
			}
			nodes = []*topology.Node{n}
		}

		for i, n := range nodes {
			if i > 0 {
				fmt.Fprintln(out)
			}
			printTable(out, n)
		}

		return nil
	},
}

func init() {
	computeCmd.Flags().StringVarP(&computeRouter, "router", "r", "", "only print this router's table (name or router id)")
	computeCmd.Flags().BoolVar(&computeDatabase, "database", false, "print the link state database instead of routing tables")
	rootCmd.AddCommand(computeCmd)
}

func computeRoutes(conf *config.Config, logger *slog.Logger) (*topology.Network, *ospf.RouteManager, error) {
	network, err := topology.FromConfig(conf)
	if err != nil {
		return nil, nil, err
	}

	manager := ospf.NewRouteManager(network, logger)
	manager.SetStubDefaultRoutes(conf.Routing.StubDefaultRoutes)
	if err := manager.Populate(); err != nil {
		return nil, nil, err
	}

	return network, manager, nil
}

func printTable(w io.Writer, n *topology.Node) {
	fmt.Fprintf(w, "%s (router id %s)\n", n.Name, n.RouterID())
	for _, r := range n.Table().Routes() {
		fmt.Fprintf(w, "  %s\n", r)
	}
}

func printDatabase(w io.Writer, db *ospf.LSDB) {
	for _, lsa := range db.LSAs() {
		fmt.Fprintln(w, lsa)
	}
}
