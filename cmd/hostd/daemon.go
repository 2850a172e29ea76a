package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/hostd/pkg/config"
	"github.com/cuemby/hostd/pkg/log"
	"github.com/cuemby/hostd/pkg/metrics"
	"github.com/cuemby/hostd/pkg/rpcserver"
)

const shutdownTimeout = 10 * time.Second

// daemonCmd implements §6's daemon verb: a long-running process hosting
// the agent's passive surfaces (Prometheus metrics, gRPC health) between
// CLI-driven servicing invocations. It never drives the engine itself.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the agent's long-running metrics and health surfaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		processConfigPath, _ := rootCmd.PersistentFlags().GetString("process-config")
		cfg, err := config.LoadProcessConfig(processConfigPath)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var metricsSrv *http.Server
		if cfg.MetricsAddress != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			metricsSrv = &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
			go func() {
				log.Logger.Info().Str("addr", cfg.MetricsAddress).Msg("metrics server listening")
				if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Logger.Error().Err(err).Msg("metrics server failed")
				}
			}()
		}

		var rpcSrv *rpcserver.Server
		if cfg.GRPCEnabled {
			rpcSrv = rpcserver.New()
			go func() {
				if err := rpcSrv.Serve(cfg.GRPCAddress); err != nil {
					log.Logger.Error().Err(err).Msg("grpc health server failed")
				}
			}()
		}

		fmt.Println("hostd daemon running; press Ctrl+C to stop")
		<-ctx.Done()
		fmt.Println("\nShutting down...")

		if metricsSrv != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		if rpcSrv != nil {
			rpcSrv.Stop()
		}
		return nil
	},
}
