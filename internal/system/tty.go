package system

import (
	"errors"
	"fmt"
	"os"

	"github.com/rook-computer/deckx/internal/logging"
	"golang.org/x/sys/unix"
)

// KD console modes from linux/kd.h
const (
	kdText     = 0x00
	kdGraphics = 0x01
	kdSetMode  = 0x4B3A // KDSETMODE ioctl
)

// Prefer /dev/tty (active VT), fallback to /dev/tty0.
var vtPaths = []string{"/dev/tty", "/dev/tty0"}

// Console owns the virtual terminal the framebuffer simulator draws over.
type Console struct {
	Logger logging.Logger
}

// Acquire switches the console to graphics mode and hides the cursor so
// neither is drawn over the panel.
func (c Console) Acquire() error {
	err := setKDMode(kdGraphics)
	c.log(err, "KD_GRAPHICS")
	c.log(writeVT("\x1b[?25l"), "hide cursor")
	return err
}

// Release restores text mode and the cursor.
func (c Console) Release() error {
	c.log(writeVT("\x1b[?25h"), "show cursor")
	err := setKDMode(kdText)
	c.log(err, "KD_TEXT")
	return err
}

func (c Console) log(err error, what string) {
	if c.Logger == nil {
		return
	}
	if err != nil {
		c.Logger.Errorf("tty", "%s failed: %v", what, err)
		return
	}
	c.Logger.Infof("tty", "%s ok", what)
}

func setKDMode(mode int) error {
	var errs []error
	for _, p := range vtPaths {
		fd, err := unix.Open(p, unix.O_RDONLY, 0)
		if err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", p, err))
			continue
		}
		err = unix.IoctlSetInt(fd, kdSetMode, mode)
		_ = unix.Close(fd)
		if err != nil {
			errs = append(errs, fmt.Errorf("KDSETMODE %d on %s: %w", mode, p, err))
			continue
		}
		return nil
	}
	return errors.Join(errs...)
}

func writeVT(s string) error {
	var errs []error
	for _, p := range vtPaths {
		f, err := os.OpenFile(p, os.O_WRONLY, 0)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_, err = f.WriteString(s)
		_ = f.Close()
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("write VT failed: %w", errors.Join(errs...))
}
