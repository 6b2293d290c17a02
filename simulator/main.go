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
	"github.com/rook-computer/deckx/internal/device"
	"github.com/rook-computer/deckx/internal/fbdeck"
	"github.com/rook-computer/deckx/internal/logging"
)

func main() {
	env := config.DaemonFromEnv()

	configPath := flag.String("config", env.ConfigPath, "configuration file (.json or .yaml); also configurable via "+config.EnvConfigPath)
	fbPath := flag.String("fb", "/dev/fb0", "framebuffer device to draw the grid on")
	columns := flag.Int("columns", 5, "simulated key columns")
	rows := flag.Int("rows", 3, "simulated key rows")
	keySize := flag.Int("key-size", 72, "simulated key size in pixels")
	debug := flag.Bool("debug", false, "enable debug logging, also written to ./deckx-debug.log")
	flag.Parse()

	opts := logging.Options{Level: env.LogLevel, Debug: *debug}
	if *debug {
		opts.DebugFile = "./deckx-debug.log"
	}
	zl, err := logging.New(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = zl.Sync() }()
	logger := logging.NewZap(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(*configPath, app.FramebufferPrefix+*fbPath, logger)
	a.Open = func(id string, log logging.Logger, exit func()) (device.Device, error) {
		return fbdeck.Open(*fbPath, fbdeck.Options{
			Columns: *columns,
			Rows:    *rows,
			KeySize: *keySize,
			Logger:  log,
			OnExit:  exit,
		})
	}

	fmt.Printf("deckx simulator on %s: %dx%d keys, rows 1-0 Q-P A-L Z-M press keys, F4 exits\n", *fbPath, *columns, *rows)
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "simulator stopped:", err)
		stop()
		os.Exit(1)
	}
}
