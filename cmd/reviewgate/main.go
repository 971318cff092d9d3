// Command reviewgate runs the Review Gate V2 MCP server: a stdio
// JSON-RPC server whose tools open popups in Cursor through temp-dir
// signal files and block until the user answers.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"reviewgate/pkg/config"
	"reviewgate/pkg/gate"
	"reviewgate/pkg/logx"
	"reviewgate/pkg/mcpserver"
	"reviewgate/pkg/metrics"
	"reviewgate/pkg/persistence"
	"reviewgate/pkg/signals"
	"reviewgate/pkg/speech"
	"reviewgate/pkg/tools"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file (YAML, optional)")
	flag.Parse()

	logger := logx.NewLogger("main")

	if err := config.Load(configPath); err != nil {
		logger.Error("❌ Failed to load config: %v", err)
		os.Exit(1)
	}
	cfg := config.Get()

	sessionID := uuid.NewString()
	store := signals.NewStore(cfg.SignalDir)

	logger.Info("🚀 Review Gate V2 server starting (session: %s)", sessionID)
	logger.Info("📂 Signal directory: %s", store.Dir())
	logger.Info("📝 Log file: %s", logx.LogFilePath())
	g := gate.New(store)
	defer g.Close()

	shutdown := gate.NewShutdown()

	if cfg.HistoryDBPath != "" {
		if err := persistence.Initialize(cfg.HistoryDBPath, sessionID); err != nil {
			logger.Warn("⚠️ History disabled: %v", err)
		} else {
			defer func() { _ = persistence.Close() }()
		}
	}

	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr, logger)
	}

	var transcriber speech.Transcriber
	if ct, err := speech.NewCommandTranscriber(cfg.WhisperBinary); err != nil {
		logger.Warn("⚠️ Speech-to-text unavailable: %v", err)
	} else {
		transcriber = ct
	}
	monitor := speech.NewMonitor(store, transcriber)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go g.MonitorShutdown(ctx, shutdown)
	go monitor.Run(ctx, shutdown)

	// OS signals request the same graceful path as the shutdown tool.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("🛑 Received signal %v, shutting down", sig)
		shutdown.Request("OS signal: " + sig.String())
	}()

	provider := tools.NewProvider(tools.GateContext{
		Gate:     g,
		Shutdown: shutdown,
	}, tools.DefaultTools)

	server := mcpserver.NewServer(provider, logx.NewLogger("mcp-server"))

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ctx) }()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("❌ Server error: %v", err)
			shutdown.Request("server error: " + err.Error())
		} else {
			shutdown.Request("stdin closed")
		}
	case <-shutdown.Done():
	}

	// The lifecycle monitor closes Done only after trigger cleanup, so
	// waiting here guarantees no stale popups survive the process.
	<-shutdown.Done()

	logger.Info("👋 Review Gate V2 server stopped: %s", shutdown.Reason())
}
