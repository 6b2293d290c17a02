package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rook-computer/deckx/internal/config"
	"github.com/rook-computer/deckx/internal/device"
	"github.com/rook-computer/deckx/internal/logging"
)

type stubDevice struct {
	mu         sync.Mutex
	filled     map[int]bool
	brightness []int
	clearAll   int
	closed     bool
	presses    chan int
}

func newStubDevice() *stubDevice {
	return &stubDevice{filled: make(map[int]bool), presses: make(chan int)}
}

func (d *stubDevice) Keys() int    { return 6 }
func (d *stubDevice) Columns() int { return 3 }
func (d *stubDevice) Rows() int    { return 2 }
func (d *stubDevice) KeySize() int { return 16 }

func (d *stubDevice) FillKey(key int, rgb []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filled[key] = true
	return nil
}

func (d *stubDevice) FillPanel(rgb []byte) error { return nil }

func (d *stubDevice) SetBrightness(percent int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.brightness = append(d.brightness, percent)
	return nil
}

func (d *stubDevice) ClearKey(key int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.filled, key)
	return nil
}

func (d *stubDevice) ClearAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filled = make(map[int]bool)
	d.clearAll++
	return nil
}

func (d *stubDevice) Presses() <-chan int { return d.presses }

func (d *stubDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *stubDevice) isFilled(key int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filled[key]
}

func (d *stubDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func start(t *testing.T, a *App) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- a.Start(context.Background()) }()
	return done
}

func result(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
		return nil
	}
}

func TestStartRoutesPresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	doc := `{
  "brightness": 30,
  "device": "from-config",
  "pages": [
    {"pageName": "default", "buttons": [
      {"keyIndex": 0, "text": "a"},
      {"keyIndex": 1, "text": "go", "changePage": "other"}
    ]},
    {"pageName": "other", "buttons": [{"keyIndex": 2, "text": "b"}]}
  ]
}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	dev := newStubDevice()
	var openedID string
	a := New(path, "", logging.Noop{})
	a.Open = func(id string, _ logging.Logger, _ func()) (device.Device, error) {
		openedID = id
		return dev, nil
	}
	done := start(t, a)

	waitFor(t, "default page", func() bool { return dev.isFilled(0) && dev.isFilled(1) })
	if openedID != "from-config" {
		t.Errorf("opened %q", openedID)
	}
	dev.mu.Lock()
	if dev.clearAll == 0 || len(dev.brightness) == 0 || dev.brightness[0] != 30 {
		t.Errorf("startup clear %d brightness %v", dev.clearAll, dev.brightness)
	}
	dev.mu.Unlock()

	dev.presses <- 1
	waitFor(t, "other page", func() bool { return dev.isFilled(2) && !dev.isFilled(0) })

	close(dev.presses)
	if err := result(t, done); !errors.Is(err, ErrDeviceGone) {
		t.Errorf("Start returned %v", err)
	}
	if !dev.isClosed() {
		t.Error("device not closed")
	}
}

func TestStartDefaultLayout(t *testing.T) {
	dev := newStubDevice()
	a := New(filepath.Join(t.TempDir(), "missing.json"), "fb:", logging.Noop{})
	var exit func()
	a.Open = func(id string, _ logging.Logger, e func()) (device.Device, error) {
		if id != "fb:" {
			t.Errorf("opened %q, flag should win", id)
		}
		exit = e
		return dev, nil
	}
	done := start(t, a)

	waitFor(t, "every key", func() bool {
		for k := 0; k < 6; k++ {
			if !dev.isFilled(k) {
				return false
			}
		}
		return true
	})
	exit()
	if err := result(t, done); err != nil {
		t.Errorf("Start returned %v", err)
	}
}

func TestStartErrors(t *testing.T) {
	t.Run("open failure", func(t *testing.T) {
		boom := errors.New("no deck")
		a := New(filepath.Join(t.TempDir(), "missing.json"), "", nil)
		a.Open = func(string, logging.Logger, func()) (device.Device, error) { return nil, boom }
		if err := a.Start(context.Background()); !errors.Is(err, boom) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("key outside the grid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		doc := `{"pages": [{"pageName": "default", "buttons": [{"keyIndex": 9, "text": "x"}]}]}`
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		dev := newStubDevice()
		a := New(path, "", nil)
		a.Open = func(string, logging.Logger, func()) (device.Device, error) { return dev, nil }
		err := a.Start(context.Background())
		var verr *config.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("got %v", err)
		}
		if !dev.isClosed() {
			t.Error("device left open")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		a := New(filepath.Join(t.TempDir(), "missing.json"), "", nil)
		a.Open = func(string, logging.Logger, func()) (device.Device, error) { return newStubDevice(), nil }
		if err := a.Start(ctx); err != nil {
			t.Errorf("got %v", err)
		}
	})
}
