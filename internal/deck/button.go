package deck

import (
	"bytes"
	"context"
	"sync"

	"github.com/rook-computer/deckx/internal/config"
	"github.com/rook-computer/deckx/internal/device"
	"github.com/rook-computer/deckx/internal/logging"
	"github.com/rook-computer/deckx/internal/render"
	"github.com/rook-computer/deckx/internal/system"
)

// Renderer turns button and screensaver specifications into frames.
type Renderer interface {
	RenderButton(b config.Button) (render.FrameSet, error)
	RenderPanel(src string, width, height int) (render.FrameSet, error)
}

// Spawner starts external commands.
type Spawner interface {
	Spawn(command string) (system.Process, error)
}

// Injector sends keyboard input to the desktop session.
type Injector interface {
	SendKey(combo string) error
	SendText(text string) error
}

// host is the part of the Manager that activation effects reach back into.
type host interface {
	SetBrightness(percent int)
	ChangePage(name string)
	StartScreensaver()
}

// readiness resolves once, when a controller's initial render has finished.
type readiness struct {
	done chan struct{}
	err  error
}

func newReadiness() *readiness { return &readiness{done: make(chan struct{})} }

func (r *readiness) resolve(err error) {
	r.err = err
	close(r.done)
}

func (r *readiness) resolved() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the initial render finished and returns its error.
func (r *readiness) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deps are the collaborators shared by every controller of one Manager.
type deps struct {
	dev      device.Device
	renderer Renderer
	spawner  Spawner
	injector Injector
	clock    Clock
	log      logging.Logger
}

// ButtonController runs one button binding: its frames, its animation, the
// optional command that refreshes it, and what happens when it is pressed.
type ButtonController struct {
	key      int
	baseline config.Button
	deps
	host  host
	ready *readiness

	mu        sync.Mutex
	effective config.Button
	frames    render.FrameSet
	running   bool
	runID     uint64
	renderID  uint64
	proc      system.Process
	poll      *task
	player    *player
}

func newButtonController(b config.Button, d deps, h host) *ButtonController {
	c := &ButtonController{
		key:       b.KeyIndex,
		baseline:  b,
		deps:      d,
		host:      h,
		ready:     newReadiness(),
		effective: b,
		poll:      newTask(d.clock),
	}
	c.player = newPlayer(d.clock, func(px []byte) error {
		return d.dev.FillKey(c.key, px)
	}, func(err error) {
		d.log.Errorf("deck", "draw key %d: %v", c.key, err)
	})
	return c
}

// Key returns the key index the controller draws on.
func (c *ButtonController) Key() int { return c.key }

// Init starts the initial render. Static buttons render asynchronously;
// dynamic buttons are ready at once and render when their command reports.
func (c *ButtonController) Init() {
	if c.baseline.IsDynamic() {
		c.ready.resolve(nil)
		return
	}
	go func() {
		frames, err := c.renderer.RenderButton(c.baseline)
		if err != nil {
			c.log.Errorf("deck", "render key %d: %v", c.key, err)
			c.ready.resolve(err)
			return
		}
		c.mu.Lock()
		c.frames = frames
		c.mu.Unlock()
		c.ready.resolve(nil)
	}()
}

// Wait blocks until the initial render finished and returns its error.
func (c *ButtonController) Wait(ctx context.Context) error { return c.ready.Wait(ctx) }

// Start shows the button. A dynamic button also schedules its first refresh.
func (c *ButtonController) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltLocked()
	c.runID++
	c.running = true
	if len(c.frames) > 0 {
		c.player.Play(c.frames)
	}
	if c.baseline.IsDynamic() {
		run := c.runID
		c.poll.Schedule(0, func() { c.refresh(run) })
	}
}

// Stop cancels animation and refresh and kills the refresh command. It is
// safe to call in any state, any number of times.
func (c *ButtonController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.runID++
	c.haltLocked()
}

func (c *ButtonController) haltLocked() {
	c.player.Stop()
	c.poll.Cancel()
	if c.proc != nil {
		c.proc.Kill()
		c.proc = nil
	}
}

// currentLocked reports whether run is still the live run.
func (c *ButtonController) currentLocked(run uint64) bool {
	return c.running && c.runID == run
}

func (c *ButtonController) refresh(run uint64) {
	c.mu.Lock()
	if !c.currentLocked(run) {
		c.mu.Unlock()
		return
	}
	command := c.baseline.Refresh.RefreshCommand()
	c.mu.Unlock()

	proc, err := c.spawner.Spawn(command)
	if err != nil {
		c.log.Errorf("deck", "refresh key %d: %v", c.key, err)
		return
	}

	c.mu.Lock()
	if !c.currentLocked(run) {
		c.mu.Unlock()
		proc.Kill()
		return
	}
	if c.proc != nil {
		c.proc.Kill()
	}
	c.proc = proc
	c.mu.Unlock()

	go c.consume(run, proc)
}

func (c *ButtonController) consume(run uint64, proc system.Process) {
	for chunk := range proc.Output() {
		if len(bytes.TrimSpace(chunk)) == 0 {
			continue
		}
		c.update(run, chunk)
	}
	c.mu.Lock()
	if c.proc == proc {
		c.proc = nil
	}
	c.mu.Unlock()
}

// update applies one chunk of refresh output.
func (c *ButtonController) update(run uint64, chunk []byte) {
	override, parseErr := config.ParseOverride(chunk)

	c.mu.Lock()
	if !c.currentLocked(run) {
		c.mu.Unlock()
		return
	}
	c.scheduleNextLocked(run)
	if parseErr != nil {
		c.mu.Unlock()
		c.log.Errorf("deck", "key %d: %v", c.key, parseErr)
		return
	}

	regenerate := (override.Text != nil && *override.Text != c.effective.Text) ||
		(override.Icon != nil && *override.Icon != c.effective.Icon) ||
		(override.TextSettings != nil && *override.TextSettings != c.effective.TextSettings)
	c.effective = c.baseline.Overlay(override)
	if !regenerate && len(c.frames) > 0 {
		c.mu.Unlock()
		return
	}
	c.renderID++
	id := c.renderID
	spec := c.effective
	c.mu.Unlock()

	frames, err := c.renderer.RenderButton(spec)
	if err != nil {
		c.log.Errorf("deck", "render key %d: %v", c.key, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(run) || id != c.renderID {
		return
	}
	c.frames = frames
	c.player.Play(frames)
}

// scheduleNextLocked arms the next poll of a timed refresh.
func (c *ButtonController) scheduleNextLocked(run uint64) {
	timed, ok := c.baseline.Refresh.(config.TimedRefresh)
	if !ok {
		return
	}
	c.poll.Schedule(timed.Interval, func() { c.refresh(run) })
}

// Activate fires the button's directives in order. It must not be called with
// the Manager lock held, since directives call back into the Manager.
func (c *ButtonController) Activate() {
	for _, d := range c.baseline.Directives() {
		switch d.Kind {
		case config.DirectiveChangeBrightness:
			c.host.SetBrightness(d.Brightness)
		case config.DirectiveSendKey:
			if err := c.injector.SendKey(d.Value); err != nil {
				c.log.Errorf("deck", "key %d sendKey: %v", c.key, err)
			}
		case config.DirectiveSendText:
			if err := c.injector.SendText(d.Value); err != nil {
				c.log.Errorf("deck", "key %d sendText: %v", c.key, err)
			}
		case config.DirectiveCommand:
			proc, err := c.spawner.Spawn(d.Value)
			if err != nil {
				c.log.Errorf("deck", "key %d command: %v", c.key, err)
				continue
			}
			go func() {
				for range proc.Output() {
				}
			}()
		case config.DirectiveChangePage:
			c.host.ChangePage(d.Value)
		case config.DirectiveStartScreensaver:
			c.host.StartScreensaver()
		}
	}
}

// Effective returns the spec currently shown, after any refresh overrides.
func (c *ButtonController) Effective() config.Button {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effective
}
