package streamdeck

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/gift"
	"github.com/rook-computer/deckx/internal/render"
	"golang.org/x/image/bmp"
)

const vendorID = 0x0fd9

type imageFormat int

const (
	formatBMP imageFormat = iota
	formatJPEG
)

// generation selects the report layout. The first devices use 16-byte image
// headers and 17-byte feature reports; later ones share a common 8-byte
// header.
type generation int

const (
	gen1 generation = iota
	gen2
)

// Model describes one Stream Deck variant.
type Model struct {
	Name      string
	ProductID uint16
	Columns   int
	Rows      int
	KeySize   int

	gen          generation
	format       imageFormat
	reportLength int
	// The panel is mounted so images must be transformed before upload.
	flipH, flipV bool
	rotate90     bool
	// The original model numbers keys right to left within each row.
	reversedColumns bool
	pageBase        int
}

var models = []Model{
	{
		Name: "Stream Deck Original", ProductID: 0x0060, Columns: 5, Rows: 3, KeySize: 72,
		gen: gen1, format: formatBMP, reportLength: 8191, flipH: true, flipV: true,
		reversedColumns: true, pageBase: 1,
	},
	{
		Name: "Stream Deck Mini", ProductID: 0x0063, Columns: 3, Rows: 2, KeySize: 80,
		gen: gen1, format: formatBMP, reportLength: 1024, flipV: true, rotate90: true,
	},
	{
		Name: "Stream Deck Mini MK.2", ProductID: 0x0090, Columns: 3, Rows: 2, KeySize: 80,
		gen: gen1, format: formatBMP, reportLength: 1024, flipV: true, rotate90: true,
	},
	{
		Name: "Stream Deck Original V2", ProductID: 0x006d, Columns: 5, Rows: 3, KeySize: 72,
		gen: gen2, format: formatJPEG, reportLength: 1024, flipH: true, flipV: true,
	},
	{
		Name: "Stream Deck MK.2", ProductID: 0x0080, Columns: 5, Rows: 3, KeySize: 72,
		gen: gen2, format: formatJPEG, reportLength: 1024, flipH: true, flipV: true,
	},
	{
		Name: "Stream Deck XL", ProductID: 0x006c, Columns: 8, Rows: 4, KeySize: 96,
		gen: gen2, format: formatJPEG, reportLength: 1024, flipH: true, flipV: true,
	},
	{
		Name: "Stream Deck XL V2", ProductID: 0x008f, Columns: 8, Rows: 4, KeySize: 96,
		gen: gen2, format: formatJPEG, reportLength: 1024, flipH: true, flipV: true,
	},
}

// LookupModel returns the model with the given USB product id.
func LookupModel(productID uint16) (Model, bool) {
	for _, m := range models {
		if m.ProductID == productID {
			return m, true
		}
	}
	return Model{}, false
}

func (m Model) Keys() int { return m.Columns * m.Rows }

// hardwareKey maps a key index between the daemon's row-major numbering and
// the device's. The mapping is its own inverse.
func (m Model) hardwareKey(key int) int {
	if !m.reversedColumns {
		return key
	}
	col := key % m.Columns
	return key - col + (m.Columns - 1 - col)
}

func (m Model) headerLength() int {
	if m.gen == gen1 {
		return 16
	}
	return 8
}

func (m Model) imageHeader(key, page, length int, last bool) []byte {
	var isLast byte
	if last {
		isLast = 1
	}
	if m.gen == gen1 {
		h := make([]byte, 16)
		h[0], h[1] = 0x02, 0x01
		h[2] = byte(page + m.pageBase)
		h[4] = isLast
		h[5] = byte(key + 1)
		return h
	}
	return []byte{
		0x02, 0x07, byte(key), isLast,
		byte(length & 0xff), byte(length >> 8),
		byte(page & 0xff), byte(page >> 8),
	}
}

// imageReports splits an encoded key image into padded output reports.
func (m Model) imageReports(key int, img []byte) [][]byte {
	payload := m.reportLength - m.headerLength()
	if m.gen == gen1 && m.reportLength > 1024 {
		// The original model takes the image in two halves.
		payload = (len(img) + 1) / 2
	}
	var reports [][]byte
	for page, sent := 0, 0; sent < len(img) || page == 0; page++ {
		n := min(payload, len(img)-sent)
		report := make([]byte, 0, m.reportLength)
		report = append(report, m.imageHeader(key, page, n, sent+n == len(img))...)
		report = append(report, img[sent:sent+n]...)
		report = report[:m.reportLength]
		reports = append(reports, report)
		sent += n
	}
	return reports
}

func (m Model) brightnessReport(percent int) []byte {
	percent = min(max(percent, 0), 100)
	if m.gen == gen1 {
		r := make([]byte, 17)
		copy(r, []byte{0x05, 0x55, 0xaa, 0xd1, 0x01, byte(percent)})
		return r
	}
	r := make([]byte, 32)
	copy(r, []byte{0x03, 0x08, byte(percent)})
	return r
}

func (m Model) resetReport() []byte {
	if m.gen == gen1 {
		r := make([]byte, 17)
		copy(r, []byte{0x0b, 0x63})
		return r
	}
	r := make([]byte, 32)
	copy(r, []byte{0x03, 0x02})
	return r
}

// inputOffset is where key states start in an input report.
func (m Model) inputOffset() int {
	if m.gen == gen1 {
		return 1
	}
	return 4
}

// encodeKey converts packed RGB24 key pixels into the device's image format.
func (m Model) encodeKey(pixels []byte) ([]byte, error) {
	if want := m.KeySize * m.KeySize * 3; len(pixels) != want {
		return nil, fmt.Errorf("key image is %d bytes, want %d", len(pixels), want)
	}
	src := render.UnpackRGB(pixels, m.KeySize, m.KeySize)

	var filters []gift.Filter
	if m.rotate90 {
		filters = append(filters, gift.Rotate90())
	}
	if m.flipH {
		filters = append(filters, gift.FlipHorizontal())
	}
	if m.flipV {
		filters = append(filters, gift.FlipVertical())
	}
	g := gift.New(filters...)
	dst := image.NewRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)

	var buf bytes.Buffer
	var err error
	switch m.format {
	case formatBMP:
		err = bmp.Encode(&buf, dst)
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 95})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
