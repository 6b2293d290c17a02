// Package fbdeck simulates a key grid on the Linux framebuffer. Keys are drawn
// as tiles on /dev/fb0 and pressed from the keyboard: the rows 1-0, Q-P, A-L
// and Z-M map onto the grid rows, and F4 asks the host to exit.
package fbdeck

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	fb "github.com/gonutz/framebuffer"
	"github.com/rook-computer/deckx/internal/device"
	"github.com/rook-computer/deckx/internal/logging"
	"github.com/rook-computer/deckx/internal/render"
	"github.com/rook-computer/deckx/internal/system"
)

// Options shape the simulated grid.
type Options struct {
	Columns int
	Rows    int
	KeySize int
	// Gap is the spacing between tiles, in grid pixels.
	Gap    int
	Logger logging.Logger
	// OnExit runs when F4 is pressed.
	OnExit func()
}

func (o *Options) defaults() {
	if o.Columns <= 0 {
		o.Columns = 5
	}
	if o.Rows <= 0 {
		o.Rows = 3
	}
	if o.KeySize <= 0 {
		o.KeySize = 72
	}
	if o.Gap <= 0 {
		o.Gap = o.KeySize / 8
	}
	if o.Logger == nil {
		o.Logger = logging.Noop{}
	}
}

var background = color.RGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xFF}

// Deck is a framebuffer-backed device.Device.
type Deck struct {
	opts    Options
	console *system.Console

	mu         sync.Mutex
	screen     draw.Image
	closer     func() error
	canvas     *image.RGBA
	brightness int
	view       viewport
	closed     bool

	presses chan int
	cancel  context.CancelFunc
}

var _ device.Device = (*Deck)(nil)

// Open takes over the framebuffer at path and the console in front of it, and
// starts reading the keyboard.
func Open(path string, opts Options) (*Deck, error) {
	opts.defaults()
	dev, err := fb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fbdeck: open %s: %w", path, err)
	}
	b := dev.Bounds()
	opts.Logger.Infof("fb", "framebuffer %s open, bounds=%dx%d", path, b.Dx(), b.Dy())

	console := &system.Console{Logger: opts.Logger}
	_ = console.Acquire()

	d := newDeck(dev, func() error { dev.Close(); return nil }, opts)
	d.console = console

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	system.WatchKeys(ctx, opts.Logger, d.handleKey)
	return d, nil
}

func newDeck(screen draw.Image, closer func() error, opts Options) *Deck {
	opts.defaults()
	grid := gridSize(opts)
	d := &Deck{
		opts:       opts,
		screen:     screen,
		closer:     closer,
		canvas:     image.NewRGBA(image.Rectangle{Max: grid}),
		brightness: 100,
		view:       fit(grid, screen.Bounds()),
		presses:    make(chan int, 16),
	}
	draw.Draw(d.canvas, d.canvas.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)
	draw.Draw(screen, screen.Bounds(), image.Black, image.Point{}, draw.Src)
	d.blitLocked(d.canvas.Bounds())
	return d
}

func gridSize(o Options) image.Point {
	return image.Pt(
		o.Columns*o.KeySize+(o.Columns+1)*o.Gap,
		o.Rows*o.KeySize+(o.Rows+1)*o.Gap,
	)
}

func (d *Deck) Keys() int    { return d.opts.Columns * d.opts.Rows }
func (d *Deck) Columns() int { return d.opts.Columns }
func (d *Deck) Rows() int    { return d.opts.Rows }
func (d *Deck) KeySize() int { return d.opts.KeySize }

// tile returns the canvas rectangle of a key.
func (d *Deck) tile(key int) image.Rectangle {
	col, row := key%d.opts.Columns, key/d.opts.Columns
	step := d.opts.KeySize + d.opts.Gap
	at := image.Pt(d.opts.Gap+col*step, d.opts.Gap+row*step)
	return image.Rectangle{Min: at, Max: at.Add(image.Pt(d.opts.KeySize, d.opts.KeySize))}
}

func (d *Deck) FillKey(key int, rgb []byte) error {
	if key < 0 || key >= d.Keys() {
		return fmt.Errorf("fbdeck: key %d out of range", key)
	}
	img := render.UnpackRGB(rgb, d.opts.KeySize, d.opts.KeySize)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrClosed
	}
	r := d.tile(key)
	draw.Draw(d.canvas, r, img, image.Point{}, draw.Src)
	d.blitLocked(r)
	return nil
}

func (d *Deck) FillPanel(rgb []byte) error {
	for key, tile := range device.SplitPanel(rgb, d.opts.Columns, d.opts.Rows, d.opts.KeySize) {
		if err := d.FillKey(key, tile); err != nil {
			return err
		}
	}
	return nil
}

// SetBrightness dims every pixel sent to the framebuffer.
func (d *Deck) SetBrightness(percent int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrClosed
	}
	d.brightness = min(max(percent, 0), 100)
	d.blitLocked(d.canvas.Bounds())
	return nil
}

func (d *Deck) ClearKey(key int) error {
	return d.FillKey(key, make([]byte, d.opts.KeySize*d.opts.KeySize*3))
}

func (d *Deck) ClearAll() error {
	for key := 0; key < d.Keys(); key++ {
		if err := d.ClearKey(key); err != nil {
			return err
		}
	}
	return nil
}

func (d *Deck) Presses() <-chan int { return d.presses }

// handleKey turns a keyboard event into a key press or an exit request.
func (d *Deck) handleKey(code uint16) {
	if code == system.KeyF4 {
		d.opts.Logger.Infof("fb", "exit key pressed")
		if d.opts.OnExit != nil {
			d.opts.OnExit()
		}
		return
	}
	key, ok := system.GridKey(code, d.opts.Columns)
	if !ok || key >= d.Keys() {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.presses <- key:
	default:
		d.opts.Logger.Errorf("fb", "press on key %d dropped", key)
	}
}

// Close stops reading the keyboard, blanks the screen and gives the console
// back.
func (d *Deck) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.cancel != nil {
		d.cancel()
	}
	close(d.presses)
	draw.Draw(d.screen, d.screen.Bounds(), image.Black, image.Point{}, draw.Src)
	if d.console != nil {
		_ = d.console.Release()
	}
	if d.closer != nil {
		return d.closer()
	}
	return nil
}

// viewport places the grid canvas on the screen at an integer scale.
type viewport struct {
	origin image.Point
	scale  int
}

// fit returns the largest integer scale at which grid fits inside screen,
// centred. A screen smaller than the grid still gets scale 1.
func fit(grid image.Point, screen image.Rectangle) viewport {
	scale := 1
	if grid.X > 0 && grid.Y > 0 {
		scale = max(min(screen.Dx()/grid.X, screen.Dy()/grid.Y), 1)
	}
	off := image.Pt((screen.Dx()-grid.X*scale)/2, (screen.Dy()-grid.Y*scale)/2)
	return viewport{origin: screen.Min.Add(off), scale: scale}
}

// blitLocked copies the canvas region r to the screen with nearest-neighbour
// scaling, applying brightness.
func (d *Deck) blitLocked(r image.Rectangle) {
	r = r.Intersect(d.canvas.Bounds())
	s := d.view.scale
	clip := d.screen.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := dim(d.canvas.RGBAAt(x, y), d.brightness)
			px := d.view.origin.Add(image.Pt(x*s, y*s))
			for dy := 0; dy < s; dy++ {
				for dx := 0; dx < s; dx++ {
					p := px.Add(image.Pt(dx, dy))
					if p.In(clip) {
						d.screen.Set(p.X, p.Y, c)
					}
				}
			}
		}
	}
}

func dim(c color.RGBA, percent int) color.RGBA {
	return color.RGBA{
		R: uint8(int(c.R) * percent / 100),
		G: uint8(int(c.G) * percent / 100),
		B: uint8(int(c.B) * percent / 100),
		A: 0xFF,
	}
}
