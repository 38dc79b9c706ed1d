// g2d is the daemon: it connects to a configured pair of glasses over
// BlueZ, authenticates the primary eye, and serves the HTTP/websocket API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openg2/g2ctl/internal/config"
	"github.com/openg2/g2ctl/internal/device"
	"github.com/openg2/g2ctl/internal/logging"
	"github.com/openg2/g2ctl/internal/observability"
	"github.com/openg2/g2ctl/internal/protocol/session"
	"github.com/openg2/g2ctl/internal/server"
	"github.com/openg2/g2ctl/internal/transport"
	"github.com/openg2/g2ctl/internal/transport/bluez"
)

func main() {
	configPath := flag.String("config", "g2ctl.toml", "path to the TOML config")
	initConfig := flag.Bool("init-config", false, "write a starter config and exit")
	flag.Parse()

	if *initConfig {
		if err := config.WriteTemplate(*configPath, false); err != nil {
			fmt.Fprintf(os.Stderr, "g2d: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *configPath)
		return
	}

	logging.ConfigureRuntime()
	logger := observability.InitLogger("g2d")

	if err := run(*configPath); err != nil {
		logger.Error().Err(err).Msg("daemon exited")
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := observability.InitLogger("g2d")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var left, right transport.Transport
	if cfg.Left.Address != "" {
		c, err := bluez.Connect(ctx, cfg.Adapter, cfg.Left.Address, logger)
		if err != nil {
			return fmt.Errorf("left eye: %w", err)
		}
		left = c
	}
	if cfg.Right.Address != "" {
		c, err := bluez.Connect(ctx, cfg.Adapter, cfg.Right.Address, logger)
		if err != nil {
			return fmt.Errorf("right eye: %w", err)
		}
		right = c
	}

	hub := server.NewEventHub()
	ctrl := device.New(left, right, device.Options{
		Pacing: cfg.DevicePacing(),
		Logger: logger,
		OnSend: hub.BroadcastFrame,
	})
	defer ctrl.Close()

	for ep, tr := range map[session.Endpoint]transport.Transport{
		session.EndpointLeft:  left,
		session.EndpointRight: right,
	} {
		if tr == nil {
			continue
		}
		if err := ctrl.Subscribe(ctx, ep); err != nil {
			return fmt.Errorf("subscribe %s: %w", ep, err)
		}
	}

	// The right eye carries channel traffic; the left stays companion-only
	// until an operation needs more.
	if right != nil {
		if err := ctrl.Authenticate(ctx, session.EndpointRight); err != nil {
			return fmt.Errorf("authenticate right: %w", err)
		}
	}

	srv := server.New(cfg, ctrl, hub, logger)
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve() }()
	logger.Info().Str("addr", cfg.Server.Addr).Msg("api listening")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		return nil
	case err := <-errc:
		return err
	}
}
