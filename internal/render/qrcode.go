package render

import (
	"image"

	"github.com/skip2/go-qrcode"
)

const (
	qrPrefix            = "qr:"
	defaultQRCodeSizePx = 256
)

// GenerateQRCodeImage returns a QR code image for the given payload.
// If payload is empty, it returns (nil, nil).
func GenerateQRCodeImage(payload string, sizePx int) (image.Image, error) {
	if payload == "" {
		return nil, nil
	}
	if sizePx <= 0 {
		sizePx = defaultQRCodeSizePx
	}

	qrCode, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	// Keys are small; the quiet zone would waste most of them.
	qrCode.DisableBorder = sizePx < 128

	return qrCode.Image(sizePx), nil
}
