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

	"github.com/xiaot623/gogo/marketing/internal/config"
	"github.com/xiaot623/gogo/marketing/internal/observe"
	"github.com/xiaot623/gogo/marketing/internal/service"
	handler "github.com/xiaot623/gogo/marketing/internal/transport/http"
	"github.com/xiaot623/gogo/marketing/internal/transport/rpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and the JSON-RPC listener when RPC_ADDR is set)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	obs := observe.NewJSON(os.Stdout, cfg.LogLevel)
	defer obs.Close()
	logger := obs.Log()

	logger.Info().Int("http_port", cfg.HTTPPort).Str("database", cfg.DatabaseURL).Str("report_dir", cfg.ReportDir).Msg("starting marketing orchestrator")
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	ctx := context.Background()
	svc, err := service.Build(ctx, cfg, obs, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	server := handler.NewServer(svc, cfg.CORSOrigins)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start http server")
		}
	}()
	logger.Info().Int("port", cfg.HTTPPort).Msg("http api started")

	var rpcServer *rpc.Server
	if cfg.RPCAddr != "" {
		rpcServer, err = rpc.NewServer(svc, logger)
		if err != nil {
			return err
		}
		if _, err := rpcServer.Listen(cfg.RPCAddr); err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.RPCAddr, err)
		}
		go func() {
			if err := rpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("rpc server stopped")
			}
		}()
		logger.Info().Str("addr", cfg.RPCAddr).Msg("json-rpc listener started")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down marketing orchestrator")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to shutdown http server gracefully")
	}
	if rpcServer != nil {
		if err := rpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to shutdown rpc server gracefully")
		}
	}

	logger.Info().Msg("marketing orchestrator stopped")
	return nil
}
