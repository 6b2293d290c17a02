//go:build linux

package system

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/rook-computer/deckx/internal/logging"
	"golang.org/x/sys/unix"
)

const evKey = 0x01

// WatchKeys reads Linux evdev devices under /dev/input/event* and calls onKey
// with the code of every key-down event until ctx is done. onKey may be called
// from several goroutines at once.
//
// It is best-effort: if no input devices are available, it logs and returns.
func WatchKeys(ctx context.Context, logger logging.Logger, onKey func(code uint16)) {
	if onKey == nil {
		return
	}
	if logger == nil {
		logger = logging.Noop{}
	}

	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil || len(paths) == 0 {
		logger.Infof("input", "no evdev devices found")
		return
	}
	for _, path := range paths {
		go readEvents(ctx, path, onKey)
	}
}

// eventLayout returns the input_event record size and the timeval size that
// prefixes it: timeval + u16 type + u16 code + s32 value.
func eventLayout() (size, tvSize int) {
	tvSize = binary.Size(unix.Timeval{})
	return tvSize + 2 + 2 + 4, tvSize
}

func readEvents(ctx context.Context, path string, onKey func(uint16)) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return
	}
	f := os.NewFile(uintptr(fd), path)
	defer func() {
		_ = f.Close()
	}()

	eventSize, _ := eventLayout()
	buf := make([]byte, 64*eventSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pollFds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		if _, err := unix.Poll(pollFds, 250); err != nil {
			if err == unix.EINTR {
				continue
			}
			// Device might have gone away.
			return
		}
		if pollFds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}
		for _, code := range keyDowns(buf[:n]) {
			onKey(code)
		}
	}
}

// keyDowns parses a sequence of input_event records and returns the codes of
// key presses. Repeats (value 2) and releases are skipped.
func keyDowns(data []byte) []uint16 {
	eventSize, tvSize := eventLayout()
	var codes []uint16
	for off := 0; off+eventSize <= len(data); off += eventSize {
		rec := data[off : off+eventSize]
		typ := binary.LittleEndian.Uint16(rec[tvSize : tvSize+2])
		code := binary.LittleEndian.Uint16(rec[tvSize+2 : tvSize+4])
		value := int32(binary.LittleEndian.Uint32(rec[tvSize+4 : tvSize+8]))
		if typ == evKey && value == 1 {
			codes = append(codes, code)
		}
	}
	return codes
}
