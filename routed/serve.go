package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davidbalbert/globalrouting/api"
	"github.com/davidbalbert/globalrouting/config"
	"github.com/davidbalbert/globalrouting/ospf"
	"github.com/davidbalbert/globalrouting/routed/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	socketPath  string
	metricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Compute routes and serve them until stopped",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closer, err := newLogger(stderrFile(cmd))
		if err != nil {
			return err
		}
		defer closer.Close()

		logger.Info("starting routed", "version", version, "uid", os.Getuid())

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		configManager, err := config.NewConfigManager(configPath, logger)
		if err != nil {
			return err
		}

		metrics := ospf.NewMetrics(prometheus.DefaultRegisterer)

		routeService, err := services.NewRouteService(configManager, metrics, logger)
		if err != nil {
			return err
		}

		// a stale socket from an unclean exit would make Listen fail
		if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		runners := []services.Runner{
			configManager,
			routeService,
			api.NewServer(routeService, socketPath, cancel, version),
		}

		if metricsAddr != "" {
			runners = append(runners, &metricsServer{addr: metricsAddr})
		}

		err = services.RunAll(ctx, runners...)
		if err != nil {
			logger.Error("routed exited", "error", err)
		}

		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&socketPath, "socket", "/var/run/routed.sock", "path to routed socket")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(serveCmd)
}

type metricsServer struct {
	addr string
}

func (m *metricsServer) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              m.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func stderrFile(cmd *cobra.Command) *os.File {
	if f, ok := cmd.ErrOrStderr().(*os.File); ok {
		return f
	}

	return os.Stderr
}
