package app

import (
	"strings"

	"github.com/rook-computer/deckx/internal/device"
	"github.com/rook-computer/deckx/internal/fbdeck"
	"github.com/rook-computer/deckx/internal/logging"
	"github.com/rook-computer/deckx/internal/streamdeck"
)

// FramebufferPrefix selects the framebuffer simulator, e.g. "fb:/dev/fb0".
const FramebufferPrefix = "fb:"

// OpenDevice opens a Stream Deck by serial number, the first one attached
// when id is empty, or the framebuffer simulator for "fb:<path>".
func OpenDevice(id string, log logging.Logger, exit func()) (device.Device, error) {
	if path, ok := strings.CutPrefix(id, FramebufferPrefix); ok {
		if path == "" {
			path = "/dev/fb0"
		}
		return fbdeck.Open(path, fbdeck.Options{Logger: log, OnExit: exit})
	}
	return streamdeck.Open(id, log)
}
