package deck

import (
	"sync"
	"time"

	"github.com/rook-computer/deckx/internal/render"
)

// minFrameDelay keeps zero-delay animations from spinning.
const minFrameDelay = 10 * time.Millisecond

func frameDelay(d time.Duration) time.Duration {
	if d < minFrameDelay {
		return minFrameDelay
	}
	return d
}

// player loops a FrameSet onto one draw target. Each frame stays up for its
// own delay before the next one is drawn.
type player struct {
	draw    func(pixels []byte) error
	onError func(error)

	mu      sync.Mutex
	frames  render.FrameSet
	index   int
	seq     uint64
	playing bool
	next    *task
}

func newPlayer(clock Clock, draw func([]byte) error, onError func(error)) *player {
	return &player{draw: draw, onError: onError, next: newTask(clock)}
}

// Play draws the first frame of frames and, for animations, keeps advancing.
func (p *player) Play(frames render.FrameSet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next.Cancel()
	p.seq++
	p.frames = frames
	p.index = 0
	p.playing = true
	p.showLocked()
}

func (p *player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next.Cancel()
	p.seq++
	p.playing = false
}

func (p *player) advance(seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing || seq != p.seq || !p.frames.Animated() {
		return
	}
	p.index = p.frames.Next(p.index)
	p.showLocked()
}

func (p *player) showLocked() {
	if len(p.frames) == 0 {
		return
	}
	f := p.frames[p.index]
	if err := p.draw(f.Pixels); err != nil && p.onError != nil {
		p.onError(err)
	}
	if p.frames.Animated() {
		seq := p.seq
		p.next.Schedule(frameDelay(f.Delay), func() { p.advance(seq) })
	}
}
