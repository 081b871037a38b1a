// Package rotation sequences a playlist on a display: it owns the current
// index, the dwell and transition timers, and the fade state.
package rotation

import (
	"context"
	"log"
	"sync"
	"time"

	"mural-service/internal/manifest"
)

const (
	DefaultTransition = 300 * time.Millisecond
	MinDwell          = 500 * time.Millisecond
)

type State int

const (
	StateEmpty State = iota
	StateShowing
	StateTransitioning
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateShowing:
		return "showing"
	case StateTransitioning:
		return "transitioning"
	}
	return "unknown"
}

// Frame is what the display is asked to render. Item is nil in StateEmpty.
// While transitioning, Item is still the outgoing item and Fading is set.
type Frame struct {
	State  State
	Seq    uint64
	Index  int
	Next   int
	Fading bool
	Item   *manifest.Item
}

// Display renders frames. Render is called from the controller goroutine
// and must not block or call back into the controller synchronously.
type Display interface {
	Render(Frame)
}

// Snapshot is a copy of the controller state for observers.
type Snapshot struct {
	Frame
	Len      int
	Revision string
}

type Option func(*Controller)

func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithTransition sets the fade delay between items.
func WithTransition(d time.Duration) Option {
	return func(ctl *Controller) {
		if d >= 0 {
			ctl.transition = d
		}
	}
}

// WithVideoWatchdog arms a fallback timer on video items so a video that
// never reports ended or error still advances. Zero disables it.
func WithVideoWatchdog(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.watchdog = d
		}
	}
}

// WithPreserveIndex keeps the current position when a reload delivers a
// playlist whose revision is unchanged.
func WithPreserveIndex(on bool) Option {
	return func(ctl *Controller) { ctl.preserve = on }
}

type timerKind int

const (
	timerDwell timerKind = iota
	timerFade
)

type (
	loadMsg    struct{ playlist manifest.Playlist }
	advanceMsg struct {
		seq    uint64
		reason string
	}
	timerMsg struct {
		gen  uint64
		kind timerKind
	}
)

type Controller struct {
	display    Display
	clock      Clock
	transition time.Duration
	watchdog   time.Duration
	preserve   bool

	inbox chan any
	done  chan struct{}
	once  sync.Once

	// owned by the Run goroutine
	playlist manifest.Playlist
	state    State
	index    int
	next     int
	seq      uint64
	timer    Timer
	gen      uint64

	mu   sync.RWMutex
	snap Snapshot
}

func New(display Display, opts ...Option) *Controller {
	c := &Controller{
		display:    display,
		clock:      realClock{},
		transition: DefaultTransition,
		inbox:      make(chan any, 64),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run drives the controller until ctx is cancelled. It must be called once.
func (c *Controller) Run(ctx context.Context) error {
	defer c.once.Do(func() { close(c.done) })

	c.publish()
	for {
		select {
		case <-ctx.Done():
			c.stopTimer()
			return ctx.Err()
		case m := <-c.inbox:
			c.handle(m)
		}
	}
}

// Load delivers a freshly resolved playlist.
func (c *Controller) Load(p manifest.Playlist) { c.post(loadMsg{playlist: p}) }

// Advance moves to the next item now, as the "advance" key does.
func (c *Controller) Advance() { c.post(advanceMsg{reason: "manual"}) }

// Ended reports that the frame with the given seq finished playing.
func (c *Controller) Ended(seq uint64) { c.post(advanceMsg{seq: seq, reason: "ended"}) }

// Failed reports that the frame with the given seq could not be played.
func (c *Controller) Failed(seq uint64, err error) {
	log.Printf("rotation: playback error on frame %d: %v", seq, err)
	c.post(advanceMsg{seq: seq, reason: "error"})
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Controller) post(m any) {
	select {
	case c.inbox <- m:
	case <-c.done:
	}
}

func (c *Controller) handle(m any) {
	switch m := m.(type) {
	case loadMsg:
		c.load(m.playlist)
	case advanceMsg:
		c.advance(m.seq)
	case timerMsg:
		if c.timer == nil || m.gen != c.gen {
			return // stale
		}
		c.timer = nil
		switch m.kind {
		case timerDwell:
			c.advance(c.seq)
		case timerFade:
			if c.state == StateTransitioning {
				c.show(c.next)
			}
		}
	}
}

func (c *Controller) load(p manifest.Playlist) {
	if c.preserve && c.state != StateEmpty && p.Revision != "" && p.Revision == c.playlist.Revision {
		c.playlist = p
		return
	}
	c.stopTimer()
	c.playlist = p
	if p.Empty() {
		c.state = StateEmpty
		c.index, c.next = 0, 0
		c.seq++
		c.publish()
		return
	}
	c.show(0)
}

func (c *Controller) show(i int) {
	c.stopTimer()
	c.state = StateShowing
	c.index, c.next = i, i
	c.seq++

	item := c.playlist.Items[i]
	switch item.Type {
	case manifest.TypeImage:
		c.arm(dwell(item.ImageDurationMs), timerDwell)
	case manifest.TypeHTML:
		c.arm(dwell(item.HTMLDurationMs), timerDwell)
	case manifest.TypeVideo:
		if c.watchdog > 0 {
			c.arm(c.watchdog, timerDwell)
		}
	}
	c.publish()
}

func (c *Controller) advance(seq uint64) {
	if c.state != StateShowing {
		return
	}
	if seq != 0 && seq != c.seq {
		return
	}
	c.stopTimer()
	c.state = StateTransitioning
	c.next = (c.index + 1) % len(c.playlist.Items)
	c.arm(c.transition, timerFade)
	c.publish()
}

func (c *Controller) arm(d time.Duration, kind timerKind) {
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(d, func() {
		c.post(timerMsg{gen: gen, kind: kind})
	})
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

// publish renders the current frame and refreshes the snapshot. It runs
// after timers are armed so observers never see a state whose timer is
// not yet pending.
func (c *Controller) publish() {
	f := Frame{State: c.state, Seq: c.seq, Index: c.index, Next: c.next}
	if c.state != StateEmpty {
		item := c.playlist.Items[c.index]
		f.Item = &item
		f.Fading = c.state == StateTransitioning
	}

	c.mu.Lock()
	c.snap = Snapshot{Frame: f, Len: c.playlist.Len(), Revision: c.playlist.Revision}
	c.mu.Unlock()

	if c.display != nil {
		c.display.Render(f)
	}
}

func dwell(ms int) time.Duration {
	if ms > manifest.MaxDurationMs {
		ms = manifest.MaxDurationMs
	}
	d := time.Duration(ms) * time.Millisecond
	if d < MinDwell {
		return MinDwell
	}
	return d
}
