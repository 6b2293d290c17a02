package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// SourceFrame is one decoded frame of an icon or animation source.
type SourceFrame struct {
	Image image.Image
	Delay time.Duration
}

// SourceError reports a source that could not be decoded. Source is
// abbreviated so inline data URIs do not flood the log.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

var errEmptySource = errors.New("empty image source")

// Decode loads every frame of src. src is a file path, a data URI, or a
// "qr:" payload. size is the target size, used to rasterize vector sources.
func Decode(src string, size image.Point) ([]SourceFrame, error) {
	frames, err := decode(src, size)
	if err != nil {
		return nil, &SourceError{Source: Abbreviate(src), Err: err}
	}
	if len(frames) == 0 {
		return nil, &SourceError{Source: Abbreviate(src), Err: errors.New("no frames")}
	}
	return frames, nil
}

func decode(src string, size image.Point) ([]SourceFrame, error) {
	switch {
	case src == "":
		return nil, errEmptySource
	case strings.HasPrefix(src, qrPrefix):
		img, err := GenerateQRCodeImage(strings.TrimPrefix(src, qrPrefix), size.X)
		if err != nil {
			return nil, err
		}
		if img == nil {
			return nil, errors.New("empty QR payload")
		}
		return []SourceFrame{{Image: img}}, nil
	case strings.HasPrefix(src, "data:"):
		mediaType, data, err := parseDataURI(src)
		if err != nil {
			return nil, err
		}
		return decodeBytes(data, strings.Contains(mediaType, "svg"), size)
	default:
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		return decodeBytes(data, strings.EqualFold(filepath.Ext(src), ".svg"), size)
	}
}

func decodeBytes(data []byte, svg bool, size image.Point) ([]SourceFrame, error) {
	if svg {
		img, err := rasterizeSVG(data, size)
		if err != nil {
			return nil, err
		}
		return []SourceFrame{{Image: img}}, nil
	}
	if bytes.HasPrefix(data, []byte("GIF8")) {
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return gifFrames(g), nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return []SourceFrame{{Image: img}}, nil
}

// parseDataURI handles data:[<mediatype>][;base64],<data>.
func parseDataURI(uri string) (string, []byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return "", nil, errors.New("malformed data URI")
	}
	meta := strings.TrimPrefix(uri[:comma], "data:")
	payload := uri[comma+1:]
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(payload)
		}
		if err != nil {
			return "", nil, fmt.Errorf("data URI payload: %w", err)
		}
		return strings.TrimSuffix(meta, ";base64"), data, nil
	}
	data, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("data URI payload: %w", err)
	}
	return meta, []byte(data), nil
}

func rasterizeSVG(data []byte, size image.Point) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	w, h := size.X, size.Y
	if w <= 0 || h <= 0 {
		w, h = int(icon.ViewBox.W), int(icon.ViewBox.H)
	}
	if w <= 0 || h <= 0 {
		return nil, errors.New("svg has no size")
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)
	return img, nil
}

// gifFrames composites each GIF frame onto the logical screen so every
// returned image is complete, honouring the disposal methods.
func gifFrames(g *gif.GIF) []SourceFrame {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() && len(g.Image) > 0 {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewRGBA(bounds)
	frames := make([]SourceFrame, 0, len(g.Image))
	for i, frame := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		var previous *image.RGBA
		if disposal == gif.DisposalPrevious {
			previous = cloneRGBA(canvas)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

		var delay time.Duration
		if i < len(g.Delay) {
			delay = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		frames = append(frames, SourceFrame{Image: cloneRGBA(canvas), Delay: delay})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}
	return frames
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

// Abbreviate shortens inline sources for log output.
func Abbreviate(src string) string {
	const limit = 64
	if strings.HasPrefix(src, "data:") && len(src) > limit {
		return src[:limit] + "..."
	}
	return src
}
