package layout

import "image"

// Normalize ensures Min is <= Max on both axes.
func Normalize(rect image.Rectangle) image.Rectangle {
	if rect.Min.X > rect.Max.X {
		rect.Min.X, rect.Max.X = rect.Max.X, rect.Min.X
	}
	if rect.Min.Y > rect.Max.Y {
		rect.Min.Y, rect.Max.Y = rect.Max.Y, rect.Min.Y
	}
	return rect
}

// SplitHorizontal splits rect into top and bottom parts.
// topHeightPx is clamped to [0, rect.Dy()].
func SplitHorizontal(rect image.Rectangle, topHeightPx int) (top image.Rectangle, bottom image.Rectangle) {
	rect = Normalize(rect)
	height := rect.Dy()
	if topHeightPx < 0 {
		topHeightPx = 0
	}
	if topHeightPx > height {
		topHeightPx = height
	}
	top = image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+topHeightPx)
	bottom = image.Rect(rect.Min.X, rect.Min.Y+topHeightPx, rect.Max.X, rect.Max.Y)
	return top, bottom
}

// Captioned splits a key into an icon square, centred along the top, and a
// caption strip below it. The caption takes 1/5 of the height.
func Captioned(rect image.Rectangle) (icon image.Rectangle, caption image.Rectangle) {
	rect = Normalize(rect)
	iconSize := rect.Dy() * 4 / 5
	top, caption := SplitHorizontal(rect, iconSize)
	return CenterIn(top, image.Pt(iconSize, iconSize)), caption
}

// CenterIn returns a rectangle of the given size centred in rect. A size
// larger than rect overflows evenly on both sides.
func CenterIn(rect image.Rectangle, size image.Point) image.Rectangle {
	rect = Normalize(rect)
	x := rect.Min.X + (rect.Dx()-size.X)/2
	y := rect.Min.Y + (rect.Dy()-size.Y)/2
	return image.Rect(x, y, x+size.X, y+size.Y)
}

// Fit scales src to the largest size that fits inside rect, keeping its
// aspect ratio, and centres it.
func Fit(rect image.Rectangle, src image.Point) image.Rectangle {
	return scaled(rect, src, false)
}

// Cover scales src to the smallest size that covers rect, keeping its aspect
// ratio, and centres it. The result may extend past rect.
func Cover(rect image.Rectangle, src image.Point) image.Rectangle {
	return scaled(rect, src, true)
}

func scaled(rect image.Rectangle, src image.Point, cover bool) image.Rectangle {
	rect = Normalize(rect)
	if src.X <= 0 || src.Y <= 0 {
		return rect
	}
	// Compare src.X/src.Y with rect.Dx()/rect.Dy() without floats.
	wider := src.X*rect.Dy() > rect.Dx()*src.Y
	var size image.Point
	if wider != cover {
		size = image.Pt(rect.Dx(), src.Y*rect.Dx()/src.X)
	} else {
		size = image.Pt(src.X*rect.Dy()/src.Y, rect.Dy())
	}
	return CenterIn(rect, size)
}
