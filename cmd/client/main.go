package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/driftsync/driftsync/internal/client"
	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/core/engine"
	"github.com/driftsync/driftsync/internal/core/events/bus"
	"github.com/driftsync/driftsync/internal/core/observability/log"
	"github.com/driftsync/driftsync/internal/core/protocol"
	"github.com/driftsync/driftsync/internal/core/protocol/quic"
	"github.com/driftsync/driftsync/internal/core/protocol/websocket"
	"github.com/driftsync/driftsync/internal/core/render"
	"github.com/driftsync/driftsync/internal/core/world"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	localID := flag.String("id", "", "local entity id (random when empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := log.New(log.ParseLevel(cfg.Log.Level))

	id := protocol.EntityID(*localID)
	if id == "" {
		id = protocol.EntityID(uuid.NewString())
	}

	transportCfg := protocol.Config{
		DialTimeout:  cfg.Network.DialTimeout,
		WriteTimeout: cfg.Network.WriteTimeout,
		MaxFrameSize: 1024 * 1024,
	}
	var transport protocol.Transport
	switch cfg.Network.Transport {
	case "quic":
		transport = quic.NewTransport(transportCfg, nil, logger)
	default:
		transport = websocket.NewTransport(transportCfg, logger)
	}

	stage := render.NewMemoryStage()
	events := bus.New()
	eng := engine.New(cfg.Engine, id, world.Vec3{}, stage, events, logger,
		engine.WithInboundCapacity(cfg.Network.InboundQueueSize))

	session := client.NewSession(cfg, transport, eng, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting sync client",
		log.String("entity_id", string(id)),
		log.String("transport", cfg.Network.Transport),
		log.String("server_addr", cfg.Network.ServerAddr))

	if err := session.Run(ctx); err != nil {
		logger.Error("session ended", log.Err(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
