package deck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rook-computer/deckx/internal/config"
	"github.com/rook-computer/deckx/internal/render"
	"github.com/rook-computer/deckx/internal/system"
)

// fakeDevice records what was drawn on each key.
type fakeDevice struct {
	keys, columns, rows, keySize int

	mu         sync.Mutex
	shown      map[int]string
	draws      map[int]int
	cleared    map[int]int
	panel      []string
	brightness []int
	clearAll   int
}

func newFakeDevice(columns, rows int) *fakeDevice {
	return &fakeDevice{
		keys:    columns * rows,
		columns: columns,
		rows:    rows,
		keySize: 72,
		shown:   make(map[int]string),
		draws:   make(map[int]int),
		cleared: make(map[int]int),
	}
}

func (d *fakeDevice) Keys() int    { return d.keys }
func (d *fakeDevice) Columns() int { return d.columns }
func (d *fakeDevice) Rows() int    { return d.rows }
func (d *fakeDevice) KeySize() int { return d.keySize }

func (d *fakeDevice) FillKey(key int, rgb []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown[key] = string(rgb)
	d.draws[key]++
	return nil
}

func (d *fakeDevice) FillPanel(rgb []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.panel = append(d.panel, string(rgb))
	return nil
}

func (d *fakeDevice) SetBrightness(percent int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.brightness = append(d.brightness, percent)
	return nil
}

func (d *fakeDevice) ClearKey(key int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.shown, key)
	d.cleared[key]++
	return nil
}

func (d *fakeDevice) ClearAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = make(map[int]string)
	d.clearAll++
	return nil
}

func (d *fakeDevice) Presses() <-chan int { return nil }
func (d *fakeDevice) Close() error        { return nil }

func (d *fakeDevice) key(k int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown[k]
}

func (d *fakeDevice) drawCount(k int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draws[k]
}

func (d *fakeDevice) panelCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.panel)
}

func (d *fakeDevice) lastBrightness() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.brightness) == 0 {
		return -1
	}
	return d.brightness[len(d.brightness)-1]
}

// fakeRenderer produces frames whose pixels spell out what was rendered:
// "text|icon|frame". Icons starting with "anim" have three frames with
// delays 0, 50ms and 100ms; the icon "bad" fails.
type fakeRenderer struct {
	mu        sync.Mutex
	calls     []config.Button
	panelGate chan struct{}
}

var errBadIcon = errors.New("bad icon")

func (r *fakeRenderer) RenderButton(b config.Button) (render.FrameSet, error) {
	r.mu.Lock()
	r.calls = append(r.calls, b)
	r.mu.Unlock()
	if b.Icon == "bad" {
		return nil, &render.SourceError{Source: b.Icon, Err: errBadIcon}
	}
	n := 1
	if strings.HasPrefix(b.Icon, "anim") {
		n = 3
	}
	fs := make(render.FrameSet, n)
	for i := range fs {
		fs[i] = render.Frame{
			Pixels: []byte(fmt.Sprintf("%s|%s|%d", b.Text, b.Icon, i)),
			Delay:  time.Duration(i) * 50 * time.Millisecond,
		}
	}
	return fs, nil
}

func (r *fakeRenderer) RenderPanel(src string, width, height int) (render.FrameSet, error) {
	if r.panelGate != nil {
		<-r.panelGate
	}
	return render.FrameSet{
		{Pixels: []byte(src + "|0"), Delay: 100 * time.Millisecond},
		{Pixels: []byte(src + "|1"), Delay: 100 * time.Millisecond},
	}, nil
}

// renders counts RenderButton calls for the given text.
func (r *fakeRenderer) renders(text string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.calls {
		if b.Text == text {
			n++
		}
	}
	return n
}

// fakeProcess hands chunks to whoever reads Output. Kill only records the
// call, so tests can check that late output is ignored.
type fakeProcess struct {
	command string
	out     chan []byte

	mu     sync.Mutex
	killed bool
}

func (p *fakeProcess) Output() <-chan []byte { return p.out }

func (p *fakeProcess) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = true
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// emit sends one line and returns once the reader has handled it. The reader
// processes chunks in order and skips empty ones, so the second send completes
// only after the first chunk was fully applied.
func (p *fakeProcess) emit(line string) {
	p.out <- []byte(line)
	p.out <- nil
}

type fakeSpawner struct {
	mu    sync.Mutex
	procs []*fakeProcess
}

func (s *fakeSpawner) Spawn(command string) (system.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &fakeProcess{command: command, out: make(chan []byte)}
	s.procs = append(s.procs, p)
	return p, nil
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

func (s *fakeSpawner) last(t *testing.T) *fakeProcess {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.procs) == 0 {
		t.Fatal("nothing was spawned")
	}
	return s.procs[len(s.procs)-1]
}

func (s *fakeSpawner) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, p := range s.procs {
		out = append(out, p.command)
	}
	return out
}

type fakeInjector struct {
	mu    sync.Mutex
	keys  []string
	texts []string
}

func (i *fakeInjector) SendKey(combo string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.keys = append(i.keys, combo)
	return nil
}

func (i *fakeInjector) SendText(text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.texts = append(i.texts, text)
	return nil
}

// fakeClock fires timers only when advanced, on the advancing goroutine.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Duration
	f     func()
	done  bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves time forward by d, firing due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if !t.done && t.at <= target && (next == nil || t.at < next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		next.done = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.done {
			live = append(live, t)
		}
	}
	c.timers = live
	c.mu.Unlock()
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

type harness struct {
	dev      *fakeDevice
	renderer *fakeRenderer
	spawner  *fakeSpawner
	injector *fakeInjector
	clock    *fakeClock
	m        *Manager
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	h := &harness{
		dev:      newFakeDevice(5, 3),
		renderer: &fakeRenderer{},
		spawner:  &fakeSpawner{},
		injector: &fakeInjector{},
		clock:    &fakeClock{},
	}
	m, err := New(h.dev, cfg,
		WithClock(h.clock),
		WithRenderer(h.renderer),
		WithSpawner(h.spawner),
		WithInjector(h.injector),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(m.Close)
	h.m = m
	h.waitReady(t)
	return h
}

// waitReady blocks until every prebuilt controller finished its first render
// and every sticky button is on screen.
func (h *harness) waitReady(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.m.mu.Lock()
	var ctrls []*ButtonController
	for _, c := range h.m.sticky {
		ctrls = append(ctrls, c)
	}
	for _, page := range h.m.pages {
		ctrls = append(ctrls, page...)
	}
	saver := h.m.saver
	h.m.mu.Unlock()

	for _, c := range ctrls {
		if err := c.Wait(ctx); errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("key %d never became ready", c.key)
		}
	}
	if saver != nil && h.renderer.panelGate == nil {
		if err := saver.Wait(ctx); err != nil {
			t.Fatalf("screensaver never became ready: %v", err)
		}
	}
	for k, c := range h.m.sticky {
		if c.baseline.IsDynamic() || c.ready.err != nil {
			continue
		}
		eventually(t, fmt.Sprintf("sticky key %d", k), func() bool { return h.dev.key(k) != "" })
	}
}

func page(name string, buttons ...config.Button) config.StaticPage {
	return config.StaticPage{Name: name, Buttons: buttons}
}

func intPtr(v int) *int { return &v }
