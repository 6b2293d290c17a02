package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rook-computer/deckx/internal/config"
	"github.com/rook-computer/deckx/internal/deck"
	"github.com/rook-computer/deckx/internal/device"
	"github.com/rook-computer/deckx/internal/logging"
)

// ErrDeviceGone is returned by Start when the device stops delivering presses.
var ErrDeviceGone = errors.New("device disconnected")

// Opener opens the device named by id. exit lets a device ask the app to stop.
type Opener func(id string, log logging.Logger, exit func()) (device.Device, error)

type App struct {
	ConfigPath string
	// Device overrides the device named in the configuration.
	Device string
	Logger logging.Logger
	Open   Opener
	// Options are passed to deck.New after the logger.
	Options []deck.Option

	exitOnce atomic.Bool
	exitCh   chan error
}

func New(configPath, deviceID string, logger logging.Logger) *App {
	if logger == nil {
		logger = logging.Noop{}
	}
	return &App{
		ConfigPath: configPath,
		Device:     deviceID,
		Logger:     logger,
		Open:       OpenDevice,
		exitCh:     make(chan error, 1),
	}
}

// Exit requests the app to stop running.
func (app *App) Exit(err error) {
	if app.exitCh == nil {
		return
	}
	if !app.exitOnce.CompareAndSwap(false, true) {
		return
	}
	select {
	case app.exitCh <- err:
	default:
	}
}

// Start loads the configuration, opens the device, shows the default page and
// routes presses until ctx is done, Exit is called or the device goes away.
// A nil error means a requested shutdown.
func (app *App) Start(ctx context.Context) error {
	if app.exitCh == nil {
		app.exitCh = make(chan error, 1)
	}
	app.exitOnce.Store(false)
	if app.Open == nil {
		app.Open = OpenDevice
	}

	cfg, err := config.LoadOptional(app.ConfigPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	id := app.Device
	if id == "" && cfg != nil {
		id = cfg.Device
	}
	dev, err := app.Open(id, app.Logger, func() { app.Exit(nil) })
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			app.Logger.Errorf("app", "close device: %v", err)
		}
	}()

	if cfg == nil {
		app.Logger.Infof("app", "no configuration at %s, using the default layout", app.ConfigPath)
		cfg = config.Default(dev.Keys())
	}
	if err := cfg.ValidateKeys(dev.Keys()); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Sticky buttons draw as soon as the manager exists.
	if err := dev.ClearAll(); err != nil {
		app.Logger.Errorf("app", "clear: %v", err)
	}
	opts := append([]deck.Option{deck.WithLogger(app.Logger)}, app.Options...)
	m, err := deck.New(dev, cfg, opts...)
	if err != nil {
		return err
	}
	defer m.Close()

	m.SetBrightness(cfg.Brightness)
	m.ChangePage(config.DefaultPage)
	app.Logger.Infof("app", "running with %d keys", dev.Keys())

	presses := dev.Presses()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-app.exitCh:
			return err
		case key, ok := <-presses:
			if !ok {
				return ErrDeviceGone
			}
			m.ButtonPressed(key)
		}
	}
}
