package config

import (
	"strconv"
	"time"
)

const (
	DefaultBrightness = 90
	DefaultPage       = "default"
)

// Config is the resolved daemon configuration. It is read-only once loaded.
type Config struct {
	Brightness  int
	Device      string
	Screensaver *Screensaver
	Sticky      []Button
	Pages       []Page
}

// Screensaver describes the idle animation shown over the whole panel.
type Screensaver struct {
	Animation      string  `json:"animation" yaml:"animation"`
	TimeoutMinutes float64 `json:"timeoutMinutes" yaml:"timeoutMinutes"`
	// Brightness, when set, dims the panel while the screensaver plays.
	Brightness *int `json:"brightness,omitempty" yaml:"brightness,omitempty"`
}

// Timeout converts TimeoutMinutes to a duration.
func (s Screensaver) Timeout() time.Duration {
	return time.Duration(s.TimeoutMinutes * float64(time.Minute))
}

// Page is either a StaticPage or a DynamicPage.
type Page interface {
	PageName() string
	isPage()
}

// StaticPage lists its buttons in the configuration.
type StaticPage struct {
	Name    string
	Buttons []Button
}

func (p StaticPage) PageName() string { return p.Name }
func (StaticPage) isPage()            {}

// DynamicPage gets its buttons from a generator command each time it is shown.
type DynamicPage struct {
	Name    string
	Command string
}

func (p DynamicPage) PageName() string { return p.Name }
func (DynamicPage) isPage()            {}

// Page returns the page with the given name.
func (c *Config) Page(name string) (Page, bool) {
	for _, p := range c.Pages {
		if p.PageName() == name {
			return p, true
		}
	}
	return nil, false
}

// Default mirrors the layout used when no configuration file exists:
// one page where every key shows its own index.
func Default(keys int) *Config {
	buttons := make([]Button, keys)
	for i := range buttons {
		buttons[i] = Button{KeyIndex: i, Text: strconv.Itoa(i)}
	}
	return &Config{
		Brightness: DefaultBrightness,
		Pages:      []Page{StaticPage{Name: DefaultPage, Buttons: buttons}},
	}
}
