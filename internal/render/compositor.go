package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/rook-computer/deckx/internal/config"
	"github.com/rook-computer/deckx/internal/render/layout"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// TextColor is the caption colour used when no fillStyle is given.
var TextColor = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// Compositor renders button looks and screensaver animations into frames.
// It owns one off-screen caption canvas shared by every render; the mutex
// serialises access to it and to the font caches.
type Compositor struct {
	keySize int

	mu          sync.Mutex
	strip       *image.RGBA
	defaultFont *truetype.Font
	fonts       map[string]*truetype.Font
	faces       map[faceKey]font.Face
}

type faceKey struct {
	path string
	size float64
}

func NewCompositor(keySize int) (*Compositor, error) {
	if keySize <= 0 {
		return nil, fmt.Errorf("invalid key size %d", keySize)
	}
	ttf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse default font: %w", err)
	}
	return &Compositor{
		keySize:     keySize,
		strip:       image.NewRGBA(image.Rect(0, 0, keySize, keySize-keySize*4/5)),
		defaultFont: ttf,
		fonts:       make(map[string]*truetype.Font),
		faces:       make(map[faceKey]font.Face),
	}, nil
}

func (c *Compositor) KeySize() int { return c.keySize }

// RenderButton produces the frames for a button's text and icon. Without an
// icon the result is one black frame with the text centred. With an icon
// there is one frame per source frame, and text shrinks the icon to make room
// for a caption strip along the bottom.
func (c *Compositor) RenderButton(b config.Button) (FrameSet, error) {
	key := image.Rect(0, 0, c.keySize, c.keySize)

	if b.Icon == "" {
		img := newBlack(key)
		if b.Text != "" {
			if err := c.caption(img, layout.CenterIn(key, c.strip.Bounds().Size()), b.Text, b.TextSettings); err != nil {
				return nil, err
			}
		}
		return FrameSet{{Pixels: PackRGB(img)}}, nil
	}

	iconRect, captionRect := key, image.Rectangle{}
	if b.Text != "" {
		iconRect, captionRect = layout.Captioned(key)
	}
	frames, err := Decode(b.Icon, iconRect.Size())
	if err != nil {
		return nil, err
	}
	out := make(FrameSet, 0, len(frames))
	for _, f := range frames {
		img := newBlack(key)
		src := f.Image.Bounds()
		xdraw.CatmullRom.Scale(img, layout.Fit(iconRect, src.Size()), f.Image, src, xdraw.Over, nil)
		if b.Text != "" {
			if err := c.caption(img, captionRect, b.Text, b.TextSettings); err != nil {
				return nil, err
			}
		}
		out = append(out, Frame{Pixels: PackRGB(img), Delay: f.Delay})
	}
	return out, nil
}

// RenderPanel produces full-panel frames for src, scaled to cover the panel.
func (c *Compositor) RenderPanel(src string, width, height int) (FrameSet, error) {
	panel := image.Rect(0, 0, width, height)
	frames, err := Decode(src, panel.Size())
	if err != nil {
		return nil, err
	}
	out := make(FrameSet, 0, len(frames))
	for _, f := range frames {
		img := newBlack(panel)
		b := f.Image.Bounds()
		xdraw.CatmullRom.Scale(img, layout.Cover(panel, b.Size()), f.Image, b, xdraw.Over, nil)
		out = append(out, Frame{Pixels: PackRGB(img), Delay: f.Delay})
	}
	return out, nil
}

// caption draws text centred on the shared strip canvas, then composites the
// strip onto dst at rect.
func (c *Compositor) caption(dst *image.RGBA, rect image.Rectangle, text string, ts config.TextSettings) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	face, err := c.faceLocked(ts)
	if err != nil {
		return err
	}
	fill := TextColor
	if parsed, ok := ParseColor(ts.FillStyle); ok {
		fill = parsed
	}

	draw.Draw(c.strip, c.strip.Bounds(), image.Transparent, image.Point{}, draw.Src)
	drawer := &font.Drawer{Dst: c.strip, Src: image.NewUniform(fill), Face: face}
	metrics := face.Metrics()
	textWidth := drawer.MeasureString(text).Ceil()
	xPos := (c.strip.Bounds().Dx() - textWidth) / 2
	baseline := (c.strip.Bounds().Dy() + metrics.Ascent.Ceil() - metrics.Descent.Ceil()) / 2
	drawer.Dot = fixed.P(xPos, baseline)
	drawer.DrawString(text)

	draw.Draw(dst, rect, c.strip, image.Point{}, draw.Over)
	return nil
}

func (c *Compositor) faceLocked(ts config.TextSettings) (font.Face, error) {
	size := ts.FontSize
	if size <= 0 {
		size = float64(c.keySize) / 6
	}
	key := faceKey{path: ts.Font, size: size}
	if face, ok := c.faces[key]; ok {
		return face, nil
	}
	ttf := c.defaultFont
	if ts.Font != "" {
		loaded, ok := c.fonts[ts.Font]
		if !ok {
			data, err := os.ReadFile(ts.Font)
			if err == nil {
				loaded, err = truetype.Parse(data)
			}
			if err != nil {
				return nil, &SourceError{Source: ts.Font, Err: err}
			}
			c.fonts[ts.Font] = loaded
		}
		ttf = loaded
	}
	face := truetype.NewFace(ttf, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
	c.faces[key] = face
	return face, nil
}

func newBlack(rect image.Rectangle) *image.RGBA {
	img := image.NewRGBA(rect)
	draw.Draw(img, rect, image.Black, image.Point{}, draw.Src)
	return img
}
