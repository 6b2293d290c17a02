// Package device defines the contract between the deck core and a key grid
// peripheral. Implementations must be safe for concurrent use.
package device

import "errors"

// ErrClosed is returned by drawing calls after Close.
var ErrClosed = errors.New("device closed")

// Device is a grid of keys that display images and report presses.
// Keys are numbered row by row from the top left. Pixel buffers are packed
// RGB24, KeySize x KeySize for one key and (Columns*KeySize) x
// (Rows*KeySize) for the whole panel.
type Device interface {
	Keys() int
	Columns() int
	Rows() int
	KeySize() int

	FillKey(key int, rgb []byte) error
	FillPanel(rgb []byte) error
	// SetBrightness takes a percentage in [0, 100].
	SetBrightness(percent int) error
	ClearKey(key int) error
	ClearAll() error

	// Presses delivers the index of each pressed key. It is closed when the
	// device goes away.
	Presses() <-chan int
	Close() error
}

// PanelSize returns the full panel size in pixels.
func PanelSize(d Device) (width, height int) {
	return d.Columns() * d.KeySize(), d.Rows() * d.KeySize()
}

// SplitPanel cuts a packed RGB24 panel image into one buffer per key. Drivers
// without a native full-panel write use it to implement FillPanel.
func SplitPanel(rgb []byte, columns, rows, keySize int) [][]byte {
	width := columns * keySize
	keys := make([][]byte, columns*rows)
	for k := range keys {
		col, row := k%columns, k/columns
		buf := make([]byte, 0, keySize*keySize*3)
		for y := 0; y < keySize; y++ {
			start := ((row*keySize+y)*width + col*keySize) * 3
			end := start + keySize*3
			if end > len(rgb) {
				buf = append(buf, make([]byte, keySize*3)...)
				continue
			}
			buf = append(buf, rgb[start:end]...)
		}
		keys[k] = buf
	}
	return keys
}
