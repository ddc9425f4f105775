package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"courier/internal/config"
	"courier/internal/engine"
	"courier/internal/logging"
	"courier/internal/netmon"
	"courier/internal/queue"
	"courier/internal/remote"
	"courier/internal/transcode"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}
	defer store.Close()

	monitor := netmon.NewProbeMonitor(cfg, logger)
	writer := remote.New(cfg, logger)
	transcoder := transcode.New(cfg, logger)

	eng, err := engine.New(cfg, store, monitor, engine.DefaultHandlers(transcoder, writer), logger)
	if err != nil {
		logger.Error("create engine", logging.Error(err))
		return
	}

	if err := monitor.Start(ctx); err != nil {
		logger.Error("start network monitor", logging.Error(err))
		return
	}
	defer monitor.Stop()

	if cfg.Network.NetlinkEvents {
		watcher := netmon.NewNetlinkWatcher(monitor, logger)
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("start netlink watcher", logging.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	if err := eng.Start(ctx); err != nil {
		logger.Error("start engine", logging.Error(err))
		return
	}
	defer eng.Stop()

	<-ctx.Done()
	logger.Info("courierd shutting down")
}
