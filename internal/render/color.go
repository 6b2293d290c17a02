package render

import (
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ParseColor understands the CSS colour forms used for fillStyle: names,
// #rgb, #rrggbb, #rrggbbaa, rgb() and rgba(). ok is false for anything else.
func ParseColor(s string) (c color.RGBA, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return color.RGBA{}, false
	}
	if named, found := colornames.Map[s]; found {
		return named, true
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}
	if args, found := cutFunc(s, "rgba"); found {
		return parseRGB(args, true)
	}
	if args, found := cutFunc(s, "rgb"); found {
		return parseRGB(args, false)
	}
	return color.RGBA{}, false
}

func cutFunc(s, name string) (string, bool) {
	if !strings.HasPrefix(s, name+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return s[len(name)+1 : len(s)-1], true
}

func parseHex(h string) (color.RGBA, bool) {
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]}) + "ff"
	case 6:
		h += "ff"
	case 8:
	default:
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return premultiply(uint8(v>>24), uint8(v>>16), uint8(v>>8), uint8(v)), true
}

func parseRGB(args string, alpha bool) (color.RGBA, bool) {
	parts := strings.Split(args, ",")
	if (alpha && len(parts) != 4) || (!alpha && len(parts) != 3) {
		return color.RGBA{}, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return color.RGBA{}, false
		}
		ch[i] = uint8(v)
	}
	a := uint8(0xFF)
	if alpha {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || f < 0 || f > 1 {
			return color.RGBA{}, false
		}
		a = uint8(f*255 + 0.5)
	}
	return premultiply(ch[0], ch[1], ch[2], a), true
}

// premultiply converts straight alpha to the premultiplied form color.RGBA uses.
func premultiply(r, g, b, a uint8) color.RGBA {
	return color.RGBA{
		R: uint8(uint16(r) * uint16(a) / 255),
		G: uint8(uint16(g) * uint16(a) / 255),
		B: uint8(uint16(b) * uint16(a) / 255),
		A: a,
	}
}
