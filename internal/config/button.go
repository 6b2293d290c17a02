package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Button is one key binding. It is immutable input: dynamic buttons derive
// their effective spec with Overlay instead of mutating the baseline.
type Button struct {
	KeyIndex     int
	Text         string
	Icon         string
	TextSettings TextSettings

	// Refresh is nil for static buttons.
	Refresh Refresh

	ChangeBrightness *int
	SendKey          string
	SendText         string
	Command          string
	ChangePage       string
	StartScreensaver bool
}

// TextSettings overrides how the text strip is drawn.
type TextSettings struct {
	FillStyle string  `json:"fillStyle,omitempty" yaml:"fillStyle,omitempty"`
	FontSize  float64 `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
	// Font is a path to a TrueType file.
	Font string `json:"font,omitempty" yaml:"font,omitempty"`
}

// Refresh is either a TimedRefresh or a PersistentRefresh.
type Refresh interface {
	RefreshCommand() string
	isRefresh()
}

// TimedRefresh runs Command once per Interval.
type TimedRefresh struct {
	Command  string
	Interval time.Duration
}

func (r TimedRefresh) RefreshCommand() string { return r.Command }
func (TimedRefresh) isRefresh()               {}

// PersistentRefresh runs Command once and reads updates for as long as it lives.
type PersistentRefresh struct {
	Command string
}

func (r PersistentRefresh) RefreshCommand() string { return r.Command }
func (PersistentRefresh) isRefresh()               {}

// DirectiveKind enumerates activation effects in the order they fire.
type DirectiveKind int

const (
	DirectiveChangeBrightness DirectiveKind = iota
	DirectiveSendKey
	DirectiveSendText
	DirectiveCommand
	DirectiveChangePage
	DirectiveStartScreensaver
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveChangeBrightness:
		return "changeBrightness"
	case DirectiveSendKey:
		return "sendKey"
	case DirectiveSendText:
		return "sendText"
	case DirectiveCommand:
		return "command"
	case DirectiveChangePage:
		return "changePage"
	case DirectiveStartScreensaver:
		return "startScreensaver"
	}
	return fmt.Sprintf("directive(%d)", int(k))
}

// Directive is one activation effect. Only the field matching Kind is set.
type Directive struct {
	Kind       DirectiveKind
	Brightness int
	Value      string
}

// Directives lists the button's activation effects in firing order.
func (b Button) Directives() []Directive {
	var out []Directive
	if b.ChangeBrightness != nil {
		out = append(out, Directive{Kind: DirectiveChangeBrightness, Brightness: *b.ChangeBrightness})
	}
	if b.SendKey != "" {
		out = append(out, Directive{Kind: DirectiveSendKey, Value: b.SendKey})
	}
	if b.SendText != "" {
		out = append(out, Directive{Kind: DirectiveSendText, Value: b.SendText})
	}
	if b.Command != "" {
		out = append(out, Directive{Kind: DirectiveCommand, Value: b.Command})
	}
	if b.ChangePage != "" {
		out = append(out, Directive{Kind: DirectiveChangePage, Value: b.ChangePage})
	}
	if b.StartScreensaver {
		out = append(out, Directive{Kind: DirectiveStartScreensaver})
	}
	return out
}

// IsDynamic reports whether the button is driven by an external command.
func (b Button) IsDynamic() bool { return b.Refresh != nil }

// ButtonOverride is one update emitted by a dynamic button's command.
type ButtonOverride struct {
	Text         *string       `json:"text,omitempty"`
	Icon         *string       `json:"icon,omitempty"`
	TextSettings *TextSettings `json:"textSettings,omitempty"`
}

// Overlay returns a copy of b with the override's fields applied.
func (b Button) Overlay(o ButtonOverride) Button {
	if o.Text != nil {
		b.Text = *o.Text
	}
	if o.Icon != nil {
		b.Icon = *o.Icon
	}
	if o.TextSettings != nil {
		b.TextSettings = *o.TextSettings
	}
	return b
}

// ParseOverride decodes one chunk of dynamic button output.
func ParseOverride(data []byte) (ButtonOverride, error) {
	var o ButtonOverride
	if err := json.Unmarshal(data, &o); err != nil {
		return ButtonOverride{}, fmt.Errorf("parse button update: %w", err)
	}
	return o, nil
}

// PagePayload is one chunk of dynamic page generator output.
type PagePayload struct {
	Buttons []Button `json:"buttons"`
}

// ParsePagePayload decodes one chunk of dynamic page output.
func ParsePagePayload(data []byte) (PagePayload, error) {
	var p PagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return PagePayload{}, fmt.Errorf("parse page payload: %w", err)
	}
	return p, nil
}

type buttonDoc struct {
	KeyIndex         *int         `json:"keyIndex" yaml:"keyIndex"`
	Text             string       `json:"text" yaml:"text"`
	Icon             string       `json:"icon" yaml:"icon"`
	TextSettings     TextSettings `json:"textSettings" yaml:"textSettings"`
	Dynamic          *dynamicDoc  `json:"dynamic" yaml:"dynamic"`
	ChangeBrightness *int         `json:"changeBrightness" yaml:"changeBrightness"`
	SendKey          string       `json:"sendKey" yaml:"sendKey"`
	SendText         string       `json:"sendText" yaml:"sendText"`
	Command          string       `json:"command" yaml:"command"`
	ChangePage       string       `json:"changePage" yaml:"changePage"`
	StartScreensaver bool         `json:"startScreensaver" yaml:"startScreensaver"`
}

type dynamicDoc struct {
	Command string `json:"command" yaml:"command"`
	// Interval is in milliseconds.
	Interval   int  `json:"interval" yaml:"interval"`
	Persistent bool `json:"persistent" yaml:"persistent"`
}

func (d dynamicDoc) resolve() (Refresh, error) {
	if d.Command == "" {
		return nil, &ValidationError{Field: "dynamic.command", Msg: "is required"}
	}
	if d.Persistent {
		return PersistentRefresh{Command: d.Command}, nil
	}
	if d.Interval <= 0 {
		return nil, &ValidationError{Field: "dynamic.interval", Msg: "must be positive unless persistent is set"}
	}
	return TimedRefresh{Command: d.Command, Interval: time.Duration(d.Interval) * time.Millisecond}, nil
}

func (d buttonDoc) resolve() (Button, error) {
	if d.KeyIndex == nil {
		return Button{}, &ValidationError{Field: "keyIndex", Msg: "is required"}
	}
	b := Button{
		KeyIndex:         *d.KeyIndex,
		Text:             d.Text,
		Icon:             d.Icon,
		TextSettings:     d.TextSettings,
		ChangeBrightness: d.ChangeBrightness,
		SendKey:          d.SendKey,
		SendText:         d.SendText,
		Command:          d.Command,
		ChangePage:       d.ChangePage,
		StartScreensaver: d.StartScreensaver,
	}
	if d.Dynamic != nil {
		refresh, err := d.Dynamic.resolve()
		if err != nil {
			return Button{}, err
		}
		b.Refresh = refresh
	}
	return b, nil
}

func (b *Button) UnmarshalJSON(data []byte) error {
	var doc buttonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	resolved, err := doc.resolve()
	if err != nil {
		return err
	}
	*b = resolved
	return nil
}

func (b *Button) UnmarshalYAML(node *yaml.Node) error {
	var doc buttonDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}
	resolved, err := doc.resolve()
	if err != nil {
		return err
	}
	*b = resolved
	return nil
}
