package deck

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/rook-computer/deckx/internal/config"
	"github.com/rook-computer/deckx/internal/device"
	"github.com/rook-computer/deckx/internal/logging"
	"github.com/rook-computer/deckx/internal/render"
	"github.com/rook-computer/deckx/internal/system"
)

var (
	ErrNoDevice = errors.New("deck: no device")
	ErrNoGrid   = errors.New("deck: device reports no keys")
	ErrNoConfig = errors.New("deck: no configuration")
)

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l logging.Logger) Option { return func(m *Manager) { m.log = l } }
func WithClock(c Clock) Option           { return func(m *Manager) { m.clock = c } }
func WithRenderer(r Renderer) Option     { return func(m *Manager) { m.renderer = r } }
func WithSpawner(s Spawner) Option       { return func(m *Manager) { m.spawner = s } }
func WithInjector(i Injector) Option     { return func(m *Manager) { m.injector = i } }

// State is a snapshot of the Manager for logs and tests.
type State struct {
	Page              string
	ScreensaverActive bool
	Brightness        int
	// Bound lists the keys that hold a controller, ascending.
	Bound []int
}

// Manager owns the key grid. It binds pages and sticky buttons to keys,
// routes presses, and runs the idle screensaver.
type Manager struct {
	cfg *config.Config
	deps

	mu          sync.Mutex
	grid        []*ButtonController
	sticky      map[int]*ButtonController
	pages       map[string][]*ButtonController
	dynamic     []*ButtonController
	current     string
	brightness  int
	saver       *ScreensaverController
	saverActive bool
	idle        *task
	idleSeq     uint64
	pageRun     uint64
	pageProc    system.Process
	closed      bool
	done        chan struct{}
}

// New builds the controllers for every sticky button and static page and
// starts their initial renders. No page is bound until ChangePage.
func New(dev device.Device, cfg *config.Config, opts ...Option) (*Manager, error) {
	if dev == nil {
		return nil, ErrNoDevice
	}
	if dev.Keys() <= 0 {
		return nil, ErrNoGrid
	}
	if cfg == nil {
		return nil, ErrNoConfig
	}

	m := &Manager{
		cfg:        cfg,
		grid:       make([]*ButtonController, dev.Keys()),
		sticky:     make(map[int]*ButtonController),
		pages:      make(map[string][]*ButtonController),
		brightness: cfg.Brightness,
		done:       make(chan struct{}),
	}
	m.dev = dev
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logging.Noop{}
	}
	if m.clock == nil {
		m.clock = realClock{}
	}
	if m.renderer == nil {
		comp, err := render.NewCompositor(dev.KeySize())
		if err != nil {
			return nil, fmt.Errorf("deck: %w", err)
		}
		m.renderer = comp
	}
	if m.spawner == nil {
		m.spawner = system.NewShellSpawner(m.log)
	}
	if m.injector == nil {
		m.injector = system.NewXdotool(nil)
	}
	m.idle = newTask(m.clock)

	if ss := cfg.Screensaver; ss != nil {
		m.saver = newScreensaverController(ss.Animation, m.deps)
		m.saver.Init()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range cfg.Sticky {
		if !m.inRange(b.KeyIndex) {
			m.log.Errorf("deck", "sticky keyIndex %d outside the grid", b.KeyIndex)
			continue
		}
		c := newButtonController(b, m.deps, m)
		c.Init()
		m.sticky[b.KeyIndex] = c
		m.grid[b.KeyIndex] = c
		m.startLocked(c)
	}
	for _, p := range cfg.Pages {
		sp, ok := p.(config.StaticPage)
		if !ok {
			continue
		}
		ctrls := make([]*ButtonController, 0, len(sp.Buttons))
		for _, b := range sp.Buttons {
			if !m.inRange(b.KeyIndex) {
				m.log.Errorf("deck", "page %q keyIndex %d outside the grid", sp.Name, b.KeyIndex)
				continue
			}
			c := newButtonController(b, m.deps, m)
			c.Init()
			ctrls = append(ctrls, c)
		}
		m.pages[sp.Name] = ctrls
	}
	m.armIdleLocked()
	return m, nil
}

func (m *Manager) inRange(key int) bool { return key >= 0 && key < len(m.grid) }

// startLocked starts c now if its first render is done, otherwise once it is.
// Nothing starts while the screensaver is up; StopScreensaver restarts every
// bound controller.
func (m *Manager) startLocked(c *ButtonController) {
	if !c.ready.resolved() {
		go m.startWhenReady(c)
		return
	}
	if !m.saverActive {
		c.Start()
	}
}

func (m *Manager) startWhenReady(c *ButtonController) {
	select {
	case <-c.ready.done:
	case <-m.done:
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.saverActive || m.grid[c.key] != c {
		return
	}
	c.Start()
}

// ButtonPressed routes a key press. While the screensaver runs, a press only
// wakes the panel.
func (m *Manager) ButtonPressed(key int) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if !m.inRange(key) {
		m.mu.Unlock()
		m.log.Errorf("deck", "press on unknown key %d", key)
		return
	}
	var target *ButtonController
	if m.saverActive {
		m.stopScreensaverLocked()
	} else {
		target = m.grid[key]
	}
	m.armIdleLocked()
	m.mu.Unlock()

	if target != nil {
		target.Activate()
	}
}

// ChangePage replaces every non-sticky binding with the named page.
func (m *Manager) ChangePage(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	for k, c := range m.grid {
		if c == nil || m.sticky[k] == c {
			continue
		}
		c.Stop()
		m.grid[k] = nil
		if err := m.dev.ClearKey(k); err != nil {
			m.log.Errorf("deck", "clear key %d: %v", k, err)
		}
	}
	m.stopGeneratorLocked()
	m.current = name

	page, ok := m.cfg.Page(name)
	if !ok {
		m.log.Errorf("deck", "unknown page %q", name)
		return
	}
	m.log.Infof("deck", "page %q", name)
	switch p := page.(type) {
	case config.StaticPage:
		for _, c := range m.pages[p.Name] {
			if m.grid[c.key] != nil {
				continue
			}
			m.grid[c.key] = c
			m.startLocked(c)
		}
	case config.DynamicPage:
		m.startGeneratorLocked(p)
	}
}

func (m *Manager) startGeneratorLocked(p config.DynamicPage) {
	run := m.pageRun
	proc, err := m.spawner.Spawn(p.Command)
	if err != nil {
		m.log.Errorf("deck", "page %q generator: %v", p.Name, err)
		return
	}
	m.pageProc = proc
	go func() {
		for chunk := range proc.Output() {
			if len(bytes.TrimSpace(chunk)) == 0 {
				continue
			}
			payload, err := config.ParsePagePayload(chunk)
			if err != nil {
				m.log.Errorf("deck", "page %q: %v", p.Name, err)
				continue
			}
			m.bindGenerated(run, payload.Buttons)
		}
	}()
}

// stopGeneratorLocked ends the current dynamic page, if any. Output still in
// flight from its generator is discarded.
func (m *Manager) stopGeneratorLocked() {
	m.pageRun++
	if m.pageProc != nil {
		m.pageProc.Kill()
		m.pageProc = nil
	}
	m.dynamic = nil
}

// bindGenerated binds generator buttons into empty slots only.
func (m *Manager) bindGenerated(run uint64, buttons []config.Button) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || run != m.pageRun {
		return
	}
	for _, b := range buttons {
		if !m.inRange(b.KeyIndex) {
			m.log.Errorf("deck", "generated keyIndex %d outside the grid", b.KeyIndex)
			continue
		}
		if m.grid[b.KeyIndex] != nil {
			continue
		}
		c := newButtonController(b, m.deps, m)
		c.Init()
		m.grid[b.KeyIndex] = c
		m.dynamic = append(m.dynamic, c)
		m.startLocked(c)
	}
}

// StartScreensaver suspends every binding and plays the screensaver. It does
// nothing if none is configured or it is already running.
func (m *Manager) StartScreensaver() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startScreensaverLocked()
}

func (m *Manager) startScreensaverLocked() {
	if m.closed || m.saver == nil || m.saverActive {
		return
	}
	m.saverActive = true
	m.cancelIdleLocked()
	for _, c := range m.grid {
		if c != nil {
			c.Stop()
		}
	}
	if err := m.dev.ClearAll(); err != nil {
		m.log.Errorf("deck", "clear: %v", err)
	}
	if b := m.cfg.Screensaver.Brightness; b != nil {
		if err := m.dev.SetBrightness(*b); err != nil {
			m.log.Errorf("deck", "brightness: %v", err)
		}
	}
	m.saver.Start()
	m.log.Infof("deck", "screensaver started")
}

// StopScreensaver restores the bindings that were suspended.
func (m *Manager) StopScreensaver() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopScreensaverLocked()
}

func (m *Manager) stopScreensaverLocked() {
	if !m.saverActive {
		return
	}
	m.saverActive = false
	m.cancelIdleLocked()
	m.saver.Stop()
	if err := m.dev.ClearAll(); err != nil {
		m.log.Errorf("deck", "clear: %v", err)
	}
	if err := m.dev.SetBrightness(m.brightness); err != nil {
		m.log.Errorf("deck", "brightness: %v", err)
	}
	for _, c := range m.grid {
		if c != nil {
			m.startLocked(c)
		}
	}
	m.log.Infof("deck", "screensaver stopped")
}

// SetBrightness clamps percent to [0, 100] and applies it. The value is
// restored when the screensaver ends.
func (m *Manager) SetBrightness(percent int) {
	percent = min(max(percent, 0), 100)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brightness = percent
	if err := m.dev.SetBrightness(percent); err != nil {
		m.log.Errorf("deck", "brightness: %v", err)
	}
}

func (m *Manager) armIdleLocked() {
	m.cancelIdleLocked()
	if m.saver == nil || m.closed {
		return
	}
	seq := m.idleSeq
	m.idle.Schedule(m.cfg.Screensaver.Timeout(), func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if seq != m.idleSeq {
			return
		}
		m.startScreensaverLocked()
	})
}

func (m *Manager) cancelIdleLocked() {
	m.idleSeq++
	m.idle.Cancel()
}

// Close stops every controller, the screensaver, the idle timer and any page
// generator.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
	m.cancelIdleLocked()
	if m.saver != nil {
		m.saver.Stop()
	}
	for _, c := range m.dynamic {
		c.Stop()
	}
	m.stopGeneratorLocked()
	for _, c := range m.sticky {
		c.Stop()
	}
	for _, ctrls := range m.pages {
		for _, c := range ctrls {
			c.Stop()
		}
	}
}

// State returns a snapshot of the Manager.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := State{Page: m.current, ScreensaverActive: m.saverActive, Brightness: m.brightness}
	for k, c := range m.grid {
		if c != nil {
			s.Bound = append(s.Bound, k)
		}
	}
	return s
}

// Controller returns the controller bound to key, if any.
func (m *Manager) Controller(key int) *ButtonController {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.inRange(key) {
		return nil
	}
	return m.grid[key]
}
