package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Msg)
}

// Format selects the decoder used by Parse.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatForPath picks the decoder from the file extension. Anything that is
// not .yaml or .yml is treated as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte, format Format) (*Config, error) {
	var doc document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, err
	}
	cfg, err := doc.resolve()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type document struct {
	Brightness  *int         `json:"brightness" yaml:"brightness"`
	Device      string       `json:"device" yaml:"device"`
	Screensaver *Screensaver `json:"screensaver" yaml:"screensaver"`
	Sticky      []Button     `json:"sticky" yaml:"sticky"`
	Pages       []pageDoc    `json:"pages" yaml:"pages"`
}

type pageDoc struct {
	PageName    string       `json:"pageName" yaml:"pageName"`
	Buttons     []Button     `json:"buttons" yaml:"buttons"`
	DynamicPage *CommandSpec `json:"dynamicPage" yaml:"dynamicPage"`
}

// CommandSpec accepts either a bare command string or {"command": "..."}.
type CommandSpec struct {
	Command string `json:"command" yaml:"command"`
}

func (c *CommandSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Command = s
		return nil
	}
	type plain CommandSpec
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = CommandSpec(p)
	return nil
}

func (c *CommandSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&c.Command)
	}
	type plain CommandSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = CommandSpec(p)
	return nil
}

func (d document) resolve() (*Config, error) {
	cfg := &Config{
		Brightness:  DefaultBrightness,
		Device:      d.Device,
		Screensaver: d.Screensaver,
		Sticky:      d.Sticky,
	}
	if d.Brightness != nil {
		cfg.Brightness = *d.Brightness
	}
	for i, p := range d.Pages {
		switch {
		case p.DynamicPage != nil && len(p.Buttons) > 0:
			return nil, &ValidationError{Field: fmt.Sprintf("pages[%d]", i), Msg: "cannot have both buttons and dynamicPage"}
		case p.DynamicPage != nil:
			if p.DynamicPage.Command == "" {
				return nil, &ValidationError{Field: fmt.Sprintf("pages[%d].dynamicPage.command", i), Msg: "is required"}
			}
			cfg.Pages = append(cfg.Pages, DynamicPage{Name: p.PageName, Command: p.DynamicPage.Command})
		default:
			cfg.Pages = append(cfg.Pages, StaticPage{Name: p.PageName, Buttons: p.Buttons})
		}
	}
	return cfg, nil
}

// Validate checks everything that does not depend on the device.
func (c *Config) Validate() error {
	var errs []error
	if c.Brightness < 0 || c.Brightness > 100 {
		errs = append(errs, &ValidationError{Field: "brightness", Msg: "must be between 0 and 100"})
	}
	if ss := c.Screensaver; ss != nil {
		if ss.Animation == "" {
			errs = append(errs, &ValidationError{Field: "screensaver.animation", Msg: "is required"})
		}
		if ss.TimeoutMinutes <= 0 {
			errs = append(errs, &ValidationError{Field: "screensaver.timeoutMinutes", Msg: "must be positive"})
		}
		if ss.Brightness != nil && (*ss.Brightness < 0 || *ss.Brightness > 100) {
			errs = append(errs, &ValidationError{Field: "screensaver.brightness", Msg: "must be between 0 and 100"})
		}
	}
	errs = append(errs, uniqueKeys("sticky", c.Sticky)...)

	names := make(map[string]bool, len(c.Pages))
	for i, p := range c.Pages {
		name := p.PageName()
		if name == "" {
			errs = append(errs, &ValidationError{Field: fmt.Sprintf("pages[%d].pageName", i), Msg: "is required"})
			continue
		}
		if names[name] {
			errs = append(errs, &ValidationError{Field: fmt.Sprintf("pages[%d].pageName", i), Msg: fmt.Sprintf("%q is not unique", name)})
		}
		names[name] = true
		if sp, ok := p.(StaticPage); ok {
			errs = append(errs, uniqueKeys("pages."+name, sp.Buttons)...)
		}
	}
	if len(c.Pages) > 0 && !names[DefaultPage] {
		errs = append(errs, &ValidationError{Field: "pages", Msg: fmt.Sprintf("must include a %q page", DefaultPage)})
	}
	return errors.Join(errs...)
}

// ValidateKeys checks every configured key index against the device grid.
func (c *Config) ValidateKeys(keys int) error {
	var errs []error
	check := func(field string, buttons []Button) {
		for _, b := range buttons {
			if b.KeyIndex < 0 || b.KeyIndex >= keys {
				errs = append(errs, &ValidationError{Field: field, Msg: fmt.Sprintf("keyIndex %d outside [0, %d)", b.KeyIndex, keys)})
			}
		}
	}
	check("sticky", c.Sticky)
	for _, p := range c.Pages {
		if sp, ok := p.(StaticPage); ok {
			check("pages."+sp.Name, sp.Buttons)
		}
	}
	return errors.Join(errs...)
}

func uniqueKeys(field string, buttons []Button) []error {
	var errs []error
	seen := make(map[int]bool, len(buttons))
	for _, b := range buttons {
		if seen[b.KeyIndex] {
			errs = append(errs, &ValidationError{Field: field, Msg: fmt.Sprintf("keyIndex %d used twice", b.KeyIndex)})
		}
		seen[b.KeyIndex] = true
	}
	return errs
}
