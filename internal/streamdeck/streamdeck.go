// Package streamdeck drives Elgato Stream Deck panels over USB HID.
package streamdeck

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/karalabe/hid"
	"github.com/rook-computer/deckx/internal/device"
	"github.com/rook-computer/deckx/internal/logging"
)

// Presses closer together than this on the same key are dropped.
const debounce = 100 * time.Millisecond

var ErrNotFound = errors.New("streamdeck: no matching device")

// hidDevice is the subset of *hid.Device the driver uses.
type hidDevice interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	SendFeatureReport(b []byte) (int, error)
	Close() error
}

// Deck is an open Stream Deck. It implements device.Device.
type Deck struct {
	model  Model
	serial string
	log    logging.Logger

	mu     sync.Mutex
	dev    hidDevice
	closed bool

	presses chan int
	done    chan struct{}
	now     func() time.Time
}

var _ device.Device = (*Deck)(nil)

// Open opens the Stream Deck with the given serial number, or the first one
// found when serial is empty.
func Open(serial string, log logging.Logger) (*Deck, error) {
	if log == nil {
		log = logging.Noop{}
	}
	for _, info := range hid.Enumerate(vendorID, 0) {
		model, ok := LookupModel(info.ProductID)
		if !ok {
			continue
		}
		if serial != "" && info.Serial != serial {
			continue
		}
		dev, err := info.Open()
		if err != nil {
			return nil, fmt.Errorf("streamdeck: open %s %s: %w", model.Name, info.Serial, err)
		}
		log.Infof("streamdeck", "opened %s serial %s", model.Name, info.Serial)
		return newDeck(dev, model, info.Serial, log), nil
	}
	if serial != "" {
		return nil, fmt.Errorf("%w: serial %q", ErrNotFound, serial)
	}
	return nil, ErrNotFound
}

func newDeck(dev hidDevice, model Model, serial string, log logging.Logger) *Deck {
	d := &Deck{
		model:   model,
		serial:  serial,
		log:     log,
		dev:     dev,
		presses: make(chan int, 16),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	if _, err := dev.SendFeatureReport(model.resetReport()); err != nil {
		log.Errorf("streamdeck", "reset: %v", err)
	}
	go d.readLoop()
	return d
}

func (d *Deck) Keys() int    { return d.model.Keys() }
func (d *Deck) Columns() int { return d.model.Columns }
func (d *Deck) Rows() int    { return d.model.Rows }
func (d *Deck) KeySize() int { return d.model.KeySize }

// FillKey uploads packed RGB24 pixels to one key.
func (d *Deck) FillKey(key int, rgb []byte) error {
	if key < 0 || key >= d.Keys() {
		return fmt.Errorf("streamdeck: key %d out of range", key)
	}
	img, err := d.model.encodeKey(rgb)
	if err != nil {
		return fmt.Errorf("streamdeck: key %d: %w", key, err)
	}
	reports := d.model.imageReports(d.model.hardwareKey(key), img)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrClosed
	}
	for _, r := range reports {
		if _, err := d.dev.Write(r); err != nil {
			return fmt.Errorf("streamdeck: write key %d: %w", key, err)
		}
	}
	return nil
}

// FillPanel spreads one panel-sized image across every key.
func (d *Deck) FillPanel(rgb []byte) error {
	tiles := device.SplitPanel(rgb, d.model.Columns, d.model.Rows, d.model.KeySize)
	var errs []error
	for key, tile := range tiles {
		if err := d.FillKey(key, tile); err != nil {
			if errors.Is(err, device.ErrClosed) {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Deck) SetBrightness(percent int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrClosed
	}
	if _, err := d.dev.SendFeatureReport(d.model.brightnessReport(percent)); err != nil {
		return fmt.Errorf("streamdeck: brightness: %w", err)
	}
	return nil
}

func (d *Deck) ClearKey(key int) error {
	return d.FillKey(key, make([]byte, d.model.KeySize*d.model.KeySize*3))
}

func (d *Deck) ClearAll() error {
	black := make([]byte, d.model.KeySize*d.model.KeySize*3)
	for key := 0; key < d.Keys(); key++ {
		if err := d.FillKey(key, black); err != nil {
			return err
		}
	}
	return nil
}

// Presses delivers the index of every debounced key press. The channel is
// closed when the device is closed or unplugged.
func (d *Deck) Presses() <-chan int { return d.presses }

// Close blanks the panel and releases the device.
func (d *Deck) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	close(d.done)
	if _, err := d.dev.SendFeatureReport(d.model.resetReport()); err != nil {
		d.log.Errorf("streamdeck", "reset: %v", err)
	}
	return d.dev.Close()
}

func (d *Deck) readLoop() {
	defer close(d.presses)
	buf := make([]byte, 512)
	var down []bool
	last := make([]time.Time, d.Keys())
	for {
		n, err := d.dev.Read(buf)
		select {
		case <-d.done:
			return
		default:
		}
		if err != nil {
			d.log.Errorf("streamdeck", "read: %v", err)
			return
		}
		var pressed []int
		down, pressed = d.model.parseInput(buf[:n], down)
		for _, key := range pressed {
			now := d.now()
			if now.Sub(last[key]) < debounce {
				continue
			}
			last[key] = now
			select {
			case d.presses <- key:
			case <-d.done:
				return
			}
		}
	}
}

// parseInput decodes one input report against the previous key states and
// returns the new states plus the keys that went down.
func (m Model) parseInput(report []byte, prev []bool) ([]bool, []int) {
	if len(prev) != m.Keys() {
		prev = make([]bool, m.Keys())
	}
	if len(report) == 0 || report[0] != 0x01 {
		return prev, nil
	}
	next := make([]bool, m.Keys())
	var pressed []int
	off := m.inputOffset()
	for hw := 0; hw < m.Keys() && off+hw < len(report); hw++ {
		key := m.hardwareKey(hw)
		next[key] = report[off+hw] != 0
		if next[key] && !prev[key] {
			pressed = append(pressed, key)
		}
	}
	return next, pressed
}
