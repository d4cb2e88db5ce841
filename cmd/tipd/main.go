package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tipchain/config"
	"tipchain/core"
	"tipchain/core/genesis"
	"tipchain/observability/logging"
	telemetry "tipchain/observability/otel"
)

const (
	genesisPathEnv = "TIP_GENESIS"
	devOwnerEnv    = "TIP_DEV_OWNER"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides TIP_GENESIS and config GenesisFile)")
	devOwnerFlag := flag.String("dev-owner", "", "DEV ONLY: seed an empty ledger owned by this address when no genesis is configured")
	allowMigrateFlag := flag.Bool("allow-migrate", false, "Allow starting with a mismatched state schema (manual migrations only)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := logging.SetupWithOptions("tipd", cfg.Env, logging.Options{Level: level})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ApplyEnv(telemetry.Config{
		ServiceName: "tipd",
		Environment: cfg.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Metrics:     cfg.Telemetry.Enabled && cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Enabled && cfg.Telemetry.Traces,
	}))
	if err != nil {
		logger.Error("Failed to initialise telemetry", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	opts := core.Options{AllowMigrate: *allowMigrateFlag, DevOwner: firstNonEmpty(*devOwnerFlag, os.Getenv(devOwnerEnv))}
	if path := firstNonEmpty(*genesisFlag, os.Getenv(genesisPathEnv), cfg.GenesisFile); path != "" {
		spec, err := genesis.LoadSpec(path)
		if err != nil {
			logger.Error("Failed to load genesis", slog.String("path", path), slog.Any("error", err))
			os.Exit(1)
		}
		opts.Genesis = spec
	}

	node, err := core.NewNode(cfg, logger, opts)
	if err != nil {
		logger.Error("Failed to create node", slog.Any("error", err))
		os.Exit(1)
	}
	defer node.Close()

	router, err := node.Handler()
	if err != nil {
		logger.Error("Failed to configure routes", slog.Any("error", err))
		os.Exit(1)
	}
	handler := http.Handler(router)
	if cfg.Telemetry.Enabled && cfg.Telemetry.Traces {
		handler = otelhttp.NewHandler(router, "tipd")
	}

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		logger.Error("Failed to listen", slog.String("address", cfg.ListenAddress), slog.Any("error", err))
		os.Exit(1)
	}

	workers := make(chan struct{})
	go func() {
		defer close(workers)
		_ = node.Run(ctx)
	}()
	go func() {
		logger.Info("API listening", slog.String("address", listener.Addr().String()), slog.Uint64("height", node.Height()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Serve failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown failed", slog.Any("error", err))
	}
	<-workers
	logger.Info("tipd stopped", slog.Uint64("height", node.Height()))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
