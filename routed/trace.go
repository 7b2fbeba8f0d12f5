package main

import (
	"fmt"
	"net/netip"

	"github.com/davidbalbert/globalrouting/config"
	"github.com/spf13/cobra"
)

var traceCmd = &cobra.Command{
	Use:   "trace ROUTER DESTINATION",
	Short: "Follow the computed routes from a router to an address",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst, err := netip.ParseAddr(args[1])
		if err != nil {
			return err
		}

		logger, closer, err := newLogger(stderrFile(cmd))
		if err != nil {
			return err
		}
		defer closer.Close()

		conf, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		network, _, err := computeRoutes(conf, logger)
		if err != nil {
			return err
		}

		src, err := network.FindRouter(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		hops, err := network.Trace(src, dst)
		for i, h := range hops {
			fmt.Fprintf(out, "%2d  %s  %s\n", i+1, h.Node.Name, h.Route)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%2d  %s\n", len(hops)+1, dst)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
}
