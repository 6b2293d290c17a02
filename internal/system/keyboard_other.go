//go:build !linux

package system

import (
	"context"

	"github.com/rook-computer/deckx/internal/logging"
)

// WatchKeys needs evdev and does nothing on this platform.
func WatchKeys(ctx context.Context, logger logging.Logger, onKey func(code uint16)) {
	if logger != nil {
		logger.Infof("input", "keyboard input is only supported on linux")
	}
}
