// Package carousel implements the infinite coverflow strip behind product
// replies.
//
// The product list is padded to at least three entries and repeated three
// times. Navigation starts in the middle copy; once a transition ends outside
// of it the index is moved back by one copy length without animation, so the
// strip looks endless while the index stays in [0, 3N).
package carousel

import (
	"sync"
	"time"

	"github.com/lojasmm/chatwidget/internal/reply"
)

const (
	DefaultTransition = 400 * time.Millisecond
	minVisible        = 3
	copies            = 3
)

// Clock schedules the end of a transition. It exists so tests can fire
// transitions by hand.
type Clock interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type Option func(*Carousel)

func WithLayout(l Layout) Option {
	return func(c *Carousel) { c.layout = l }
}

func WithTransition(d time.Duration) Option {
	return func(c *Carousel) { c.transition = d }
}

func WithClock(clk Clock) Option {
	return func(c *Carousel) { c.clock = clk }
}

// Carousel is the runtime state of one rendered carousel.
type Carousel struct {
	layout     Layout
	transition time.Duration
	clock      Clock

	original int
	items    []reply.Product

	mu            sync.Mutex
	count         int
	index         int
	transitioning bool
	animated      bool
	gen           uint64
	stop          func() bool
}

func New(products []reply.Product, opts ...Option) *Carousel {
	c := &Carousel{
		layout:     DefaultLayout,
		transition: DefaultTransition,
		clock:      realClock{},
		original:   len(products),
	}
	for _, o := range opts {
		o(c)
	}
	if len(products) == 0 {
		return c
	}

	padded := append([]reply.Product(nil), products...)
	for len(padded) < minVisible {
		padded = append(padded, products...)
	}

	c.count = len(padded)
	c.items = make([]reply.Product, 0, copies*c.count)
	for range copies {
		c.items = append(c.items, padded...)
	}
	c.index = c.count
	return c
}

// Items is the tripled card sequence, in strip order.
func (c *Carousel) Items() []reply.Product { return c.items }

// ProductCount is the length of one copy (the padded list).
func (c *Carousel) ProductCount() int { return c.count }

func (c *Carousel) Empty() bool { return c.count == 0 }

// Navigable is false when there is nothing to move to.
func (c *Carousel) Navigable() bool { return c.original > 1 }

func (c *Carousel) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

func (c *Carousel) Transitioning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitioning
}

// Navigate moves one card in direction dir (negative: previous, positive:
// next). Calls made while a transition is running are dropped; the return
// value reports whether the move started.
func (c *Carousel) Navigate(dir int) bool {
	if dir == 0 || !c.Navigable() {
		return false
	}
	step := 1
	if dir < 0 {
		step = -1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transitioning {
		return false
	}

	c.transitioning = true
	c.index += step
	c.animated = true
	c.gen++
	gen := c.gen
	c.stop = c.clock.AfterFunc(c.transition, func() { c.timerFired(gen) })
	return true
}

// TransitionEnd signals that the running animation finished before the timer
// did. It is a no-op when nothing is transitioning.
func (c *Carousel) TransitionEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.transitioning {
		return
	}
	if c.stop != nil {
		c.stop()
	}
	c.finishLocked()
}

func (c *Carousel) timerFired(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.transitioning || gen != c.gen {
		return
	}
	c.finishLocked()
}

func (c *Carousel) finishLocked() {
	defer func() {
		c.transitioning = false
		c.stop = nil
	}()

	switch {
	case c.index < c.count:
		c.index += c.count
		c.animated = false
	case c.index >= 2*c.count:
		c.index -= c.count
		c.animated = false
	}
}

// Stop cancels a pending transition timer and releases the lock.
func (c *Carousel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.transitioning = false
}

// Frame is a snapshot of everything needed to draw the strip.
type Frame struct {
	Index    int
	Offset   float64
	Animated bool
	Cards    []CardStyle
}

func (c *Carousel) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := Frame{
		Index:    c.index,
		Offset:   c.layout.Offset(c.index),
		Animated: c.animated,
		Cards:    make([]CardStyle, len(c.items)),
	}
	for i := range c.items {
		f.Cards[i] = StyleFor(i - c.index)
	}
	return f
}
