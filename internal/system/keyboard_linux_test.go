//go:build linux

package system

import (
	"encoding/binary"
	"reflect"
	"testing"
)

func event(typ, code uint16, value int32) []byte {
	size, tvSize := eventLayout()
	rec := make([]byte, size)
	binary.LittleEndian.PutUint16(rec[tvSize:], typ)
	binary.LittleEndian.PutUint16(rec[tvSize+2:], code)
	binary.LittleEndian.PutUint32(rec[tvSize+4:], uint32(value))
	return rec
}

func TestKeyDowns(t *testing.T) {
	var data []byte
	data = append(data, event(evKey, KeyQ, 1)...)
	data = append(data, event(evKey, KeyQ, 0)...)
	data = append(data, event(0x00, 0, 0)...)
	data = append(data, event(evKey, KeyF4, 2)...)
	data = append(data, event(evKey, KeyF4, 1)...)
	data = append(data, 0x01, 0x02)

	got := keyDowns(data)
	want := []uint16{KeyQ, KeyF4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
