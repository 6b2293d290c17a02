package fbdeck

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/rook-computer/deckx/internal/device"
	"github.com/rook-computer/deckx/internal/system"
)

func solid(size int, c color.RGBA) []byte {
	return bytes.Repeat([]byte{c.R, c.G, c.B}, size*size)
}

func testDeck(t *testing.T, screen *image.RGBA, opts Options) *Deck {
	t.Helper()
	closed := false
	d := newDeck(screen, func() error { closed = true; return nil }, opts)
	t.Cleanup(func() {
		_ = d.Close()
		if !closed {
			t.Error("Close did not release the screen")
		}
	})
	return d
}

func TestFit(t *testing.T) {
	tests := []struct {
		name   string
		grid   image.Point
		screen image.Rectangle
		want   viewport
	}{
		{"exact", image.Pt(100, 50), image.Rect(0, 0, 100, 50), viewport{image.Pt(0, 0), 1}},
		{"doubled and centred", image.Pt(100, 50), image.Rect(0, 0, 220, 120), viewport{image.Pt(10, 10), 2}},
		{"too small", image.Pt(100, 50), image.Rect(0, 0, 80, 40), viewport{image.Pt(-10, -5), 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fit(tt.grid, tt.screen); got != tt.want {
				t.Errorf("fit = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDim(t *testing.T) {
	got := dim(color.RGBA{R: 200, G: 100, B: 0, A: 0xFF}, 50)
	if got != (color.RGBA{R: 100, G: 50, B: 0, A: 0xFF}) {
		t.Errorf("dim = %v", got)
	}
}

func TestFillKey(t *testing.T) {
	opts := Options{Columns: 2, Rows: 2, KeySize: 4, Gap: 1}
	// Grid is 11x11; a 22x22 screen doubles it.
	screen := image.NewRGBA(image.Rect(0, 0, 22, 22))
	d := testDeck(t, screen, opts)

	red := color.RGBA{R: 0xFF, A: 0xFF}
	if err := d.FillKey(3, solid(4, red)); err != nil {
		t.Fatal(err)
	}
	// Key 3 is the bottom right tile at canvas (6,6)-(10,10).
	if got := screen.RGBAAt(12, 12); got != red {
		t.Errorf("tile pixel = %v", got)
	}
	if got := screen.RGBAAt(19, 19); got != red {
		t.Errorf("tile corner = %v", got)
	}
	if got := screen.RGBAAt(2, 2); got != background {
		t.Errorf("key 0 pixel = %v", got)
	}

	t.Run("brightness dims the screen", func(t *testing.T) {
		if err := d.SetBrightness(50); err != nil {
			t.Fatal(err)
		}
		if got := screen.RGBAAt(12, 12); got.R != 0x7F {
			t.Errorf("dimmed pixel = %v", got)
		}
		_ = d.SetBrightness(100)
	})

	t.Run("clear", func(t *testing.T) {
		if err := d.ClearAll(); err != nil {
			t.Fatal(err)
		}
		if got := screen.RGBAAt(12, 12); got != (color.RGBA{A: 0xFF}) {
			t.Errorf("cleared pixel = %v", got)
		}
	})

	t.Run("panel", func(t *testing.T) {
		if err := d.FillPanel(solid(8, red)); err != nil {
			t.Fatal(err)
		}
		for key := 0; key < 4; key++ {
			r := d.tile(key)
			if got := d.canvas.RGBAAt(r.Min.X, r.Min.Y); got != red {
				t.Errorf("key %d = %v", key, got)
			}
		}
	})

	if err := d.FillKey(4, solid(4, red)); err == nil {
		t.Error("out of range key accepted")
	}
}

func TestHandleKey(t *testing.T) {
	exits := 0
	d := testDeck(t, image.NewRGBA(image.Rect(0, 0, 10, 10)), Options{
		Columns: 3, Rows: 2, KeySize: 2,
		OnExit: func() { exits++ },
	})

	d.handleKey(system.KeyQ + 1)
	d.handleKey(system.Key1 + 5)
	d.handleKey(system.KeyZ)
	d.handleKey(system.KeyF4)

	if got := <-d.Presses(); got != 4 {
		t.Errorf("W pressed key %d, want 4", got)
	}
	select {
	case got := <-d.Presses():
		t.Errorf("unexpected press %d", got)
	default:
	}
	if exits != 1 {
		t.Errorf("exits = %d", exits)
	}

	_ = d.Close()
	d.handleKey(system.KeyQ)
	if _, ok := <-d.Presses(); ok {
		t.Error("press delivered after Close")
	}
	if err := d.FillKey(0, solid(2, color.RGBA{})); !errors.Is(err, device.ErrClosed) {
		t.Errorf("FillKey after Close: %v", err)
	}
}
