package deck

import (
	"context"
	"sync"

	"github.com/rook-computer/deckx/internal/device"
	"github.com/rook-computer/deckx/internal/render"
)

// ScreensaverController plays an animation across the whole panel.
type ScreensaverController struct {
	source string
	deps
	ready *readiness

	mu      sync.Mutex
	frames  render.FrameSet
	running bool
	player  *player
}

func newScreensaverController(source string, d deps) *ScreensaverController {
	s := &ScreensaverController{source: source, deps: d, ready: newReadiness()}
	s.player = newPlayer(d.clock, d.dev.FillPanel, func(err error) {
		d.log.Errorf("screensaver", "draw panel: %v", err)
	})
	return s
}

// Init decodes the animation in the background.
func (s *ScreensaverController) Init() {
	go func() {
		w, h := device.PanelSize(s.dev)
		frames, err := s.renderer.RenderPanel(s.source, w, h)
		if err != nil {
			s.log.Errorf("screensaver", "render %s: %v", render.Abbreviate(s.source), err)
			s.ready.resolve(err)
			return
		}
		s.mu.Lock()
		s.frames = frames
		if s.running {
			s.player.Play(frames)
		}
		s.mu.Unlock()
		s.ready.resolve(nil)
	}()
}

func (s *ScreensaverController) Wait(ctx context.Context) error { return s.ready.Wait(ctx) }

// Start plays the animation, or arranges for it to play once decoded.
func (s *ScreensaverController) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	if len(s.frames) > 0 {
		s.player.Play(s.frames)
	}
}

func (s *ScreensaverController) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.player.Stop()
}
