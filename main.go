package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rook-computer/deckx/internal/app"
	"github.com/rook-computer/deckx/internal/config"
	"github.com/rook-computer/deckx/internal/logging"
	"github.com/rook-computer/deckx/internal/system"
	"go.uber.org/zap"
)

func main() {
	env := config.DaemonFromEnv()

	configPath := flag.String("config", env.ConfigPath, "configuration file (.json or .yaml); also configurable via "+config.EnvConfigPath)
	deviceID := flag.String("device", env.Device, "Stream Deck serial, or fb:/dev/fb0 for the framebuffer simulator; also configurable via "+config.EnvDevice)
	debug := flag.Bool("debug", false, "enable debug logging, also written to ./deckx-debug.log")
	stdioLog := flag.String("stdio-log", env.StdioLog, "redirect stdout+stderr (including panics) to this file; also configurable via "+config.EnvStdioLog)
	flag.Parse()

	// Best-effort: keep crash output when the panel owns the console.
	if err := system.RedirectStdio(*stdioLog); err != nil {
		fmt.Println("stdio log redirect error:", err)
	}

	opts := logging.Options{Level: env.LogLevel, Debug: *debug}
	if *debug {
		opts.DebugFile = "./deckx-debug.log"
	}
	zl, err := logging.New(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()
	logger := logging.NewZap(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(*configPath, *deviceID, logger)
	if err := a.Start(ctx); err != nil {
		zl.Error("deckx stopped", zap.Error(err))
		stop()
		_ = zl.Sync()
		os.Exit(1)
	}
	logger.Infof("main", "shutdown complete")
}
