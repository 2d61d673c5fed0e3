package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/lobbysync/internal/api"
	"github.com/mcoot/lobbysync/internal/config"
	"github.com/mcoot/lobbysync/internal/factory"
	"github.com/mcoot/lobbysync/internal/transport/redisbus"
	"github.com/mcoot/lobbysync/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(slog.Default())
	if err != nil {
		return err
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway := ws.DefaultConfig()
	gateway.AllowedOrigin = cfg.FrontendURL
	gateway.HandshakeTimeout = cfg.ConnectTimeout
	gateway.PingInterval = cfg.PingInterval
	gateway.PingTimeout = cfg.PingTimeout
	gateway.SendBuffer = cfg.SendBuffer

	factoryCfg := factory.Config{
		Logger:        logger,
		BroadcastMode: cfg.BroadcastMode,
		Gateway:       gateway,
	}
	if cfg.BroadcastMode == config.BroadcastModeRedis {
		redisCfg := redisbus.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(ctx, factoryCfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = cfg.Addr()
	server := api.NewServer(app.Handler(), serverCfg, logger)

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()
	appErr := make(chan error, 1)
	go func() { appErr <- app.Run(appCtx) }()

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	logger.Info("lobby coordinator started",
		slog.String("addr", server.Addr()),
		slog.String("broadcast_mode", cfg.BroadcastMode),
	)

	select {
	case err = <-serverErr:
	case err = <-appErr:
		if err == nil {
			err = errors.New("background workers stopped unexpectedly")
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if shutdownErr := server.Shutdown(context.Background()); shutdownErr != nil {
		logger.Error("shutdown error", slog.String("error", shutdownErr.Error()))
	}
	cancelApp()

	logger.Info("server stopped")
	return err
}
