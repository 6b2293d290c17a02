package system

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

type recordingRunner struct {
	calls [][]string
	err   error
}

func (r *recordingRunner) Run(ctx context.Context, cmd string, args ...string) (string, string, error) {
	r.calls = append(r.calls, append([]string{cmd}, args...))
	return "", "boom", r.err
}

func TestParseHotkey(t *testing.T) {
	cases := []struct {
		in   string
		want Hotkey
	}{
		{"A", Hotkey{Key: "A"}},
		{"Shift+A", Hotkey{Modifiers: []string{"Shift"}, Key: "A"}},
		{"Ctrl+Alt+Delete", Hotkey{Modifiers: []string{"Ctrl", "Alt"}, Key: "Delete"}},
		{"Shift++", Hotkey{Modifiers: []string{"Shift"}, Key: "+"}},
		{"Ctrl+Shift++", Hotkey{Modifiers: []string{"Ctrl", "Shift"}, Key: "+"}},
		{"+", Hotkey{Key: "+"}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseHotkey(tc.in)
			if err != nil {
				t.Fatalf("ParseHotkey failed: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}

	for _, bad := range []string{"", "Shift++A+", "Ctrl++A"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			if _, err := ParseHotkey(bad); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHotkeyKeysym(t *testing.T) {
	h, _ := ParseHotkey("Shift++")
	if got := h.Keysym(); got != "shift+plus" {
		t.Errorf("Keysym = %q", got)
	}
	h, _ = ParseHotkey("Cmd+Enter")
	if got := h.Keysym(); got != "super+Return" {
		t.Errorf("Keysym = %q", got)
	}
}

func TestXdotool(t *testing.T) {
	r := &recordingRunner{}
	x := NewXdotool(r)

	if err := x.SendKey("Ctrl+c"); err != nil {
		t.Fatal(err)
	}
	if err := x.SendText("Hello World"); err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"xdotool", "key", "--clearmodifiers", "ctrl+c"},
		{"xdotool", "type", "--clearmodifiers", "--", "Hello World"},
	}
	if !reflect.DeepEqual(r.calls, want) {
		t.Errorf("calls = %q", r.calls)
	}

	r.err = errors.New("exit 1")
	err := x.SendText("x")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should carry stderr, got %v", err)
	}
}

func TestGridKey(t *testing.T) {
	cases := []struct {
		code    uint16
		columns int
		want    int
		ok      bool
	}{
		{Key1, 5, 0, true},
		{Key1 + 4, 5, 4, true},
		{Key1 + 5, 5, 0, false},
		{KeyQ, 5, 5, true},
		{KeyA + 2, 5, 12, true},
		{KeyZ, 8, 24, true},
		{KeyF4, 5, 0, false},
	}
	for _, tc := range cases {
		got, ok := GridKey(tc.code, tc.columns)
		if got != tc.want || ok != tc.ok {
			t.Errorf("GridKey(%d, %d) = %d, %v; want %d, %v", tc.code, tc.columns, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRingBuffer(t *testing.T) {
	r := &ringBuffer{max: 4}
	_, _ = r.Write([]byte("ab"))
	_, _ = r.Write([]byte("cde"))
	if got := r.String(); got != "bcde" {
		t.Errorf("got %q", got)
	}
	_, _ = r.Write([]byte("123456"))
	if got := r.String(); got != "3456" {
		t.Errorf("got %q", got)
	}
}

func collect(t *testing.T, p Process) []string {
	t.Helper()
	var lines []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-p.Output():
			if !ok {
				return lines
			}
			lines = append(lines, string(chunk))
		case <-timeout:
			t.Fatal("timed out waiting for output")
		}
	}
}

func TestShellSpawner(t *testing.T) {
	s := NewShellSpawner(nil)

	t.Run("one chunk per line", func(t *testing.T) {
		p, err := s.Spawn(`echo '{"text":"a"}'; echo second`)
		if err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
		got := collect(t, p)
		want := []string{`{"text":"a"}`, "second"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %q, want %q", got, want)
		}
		p.Kill()
	})

	t.Run("kill ends output", func(t *testing.T) {
		p, err := s.Spawn("echo ready; sleep 30")
		if err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
		if chunk := <-p.Output(); string(chunk) != "ready" {
			t.Fatalf("got %q", chunk)
		}
		p.Kill()
		p.Kill()
		if rest := collect(t, p); len(rest) != 0 {
			t.Errorf("unexpected output after kill: %q", rest)
		}
	})
}
