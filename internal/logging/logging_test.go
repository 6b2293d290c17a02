package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAddsComponent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewZap(zap.New(core))

	l.Infof("deck", "page %s bound", "default")
	l.Errorf("button", "icon %q failed", "bad.png")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Message != "page default bound" {
		t.Errorf("message = %q", entries[0].Message)
	}
	if got := entries[0].ContextMap()["component"]; got != "deck" {
		t.Errorf("component = %v, want deck", got)
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Errorf("level = %v, want error", entries[1].Level)
	}
}

func TestParseLevel(t *testing.T) {
	t.Run("empty is info", func(t *testing.T) {
		level, err := ParseLevel("")
		if err != nil || level != zapcore.InfoLevel {
			t.Fatalf("got %v, %v", level, err)
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		level, err := ParseLevel(" DEBUG ")
		if err != nil || level != zapcore.DebugLevel {
			t.Fatalf("got %v, %v", level, err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := ParseLevel("loud"); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestNewZapNil(t *testing.T) {
	// A nil zap logger must not panic.
	NewZap(nil).Infof("test", "hello")
}
