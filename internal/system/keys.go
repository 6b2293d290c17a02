package system

// Key codes from Linux input-event-codes.h.
const (
	KeyEsc = 1
	Key1   = 2
	Key0   = 11
	KeyQ   = 16
	KeyP   = 25
	KeyA   = 30
	KeyL   = 38
	KeyZ   = 44
	KeyM   = 50
	KeyF4  = 62
)

// keyboardRows are the first code and length of each letter/digit row, top
// to bottom.
var keyboardRows = [][2]uint16{
	{Key1, Key0 - Key1 + 1},
	{KeyQ, KeyP - KeyQ + 1},
	{KeyA, KeyL - KeyA + 1},
	{KeyZ, KeyM - KeyZ + 1},
}

// GridKey maps a keyboard key onto a deck key index, treating the rows
// 1-0, Q-P, A-L and Z-M as the rows of a grid with the given column count.
func GridKey(code uint16, columns int) (int, bool) {
	for row, r := range keyboardRows {
		if code < r[0] || code >= r[0]+r[1] {
			continue
		}
		col := int(code - r[0])
		if col >= columns {
			return 0, false
		}
		return row*columns + col, true
	}
	return 0, false
}
