package host

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lojasmm/chatwidget/internal/render"
	"github.com/lojasmm/chatwidget/internal/store"
	"github.com/lojasmm/chatwidget/internal/widget"
)

// OpenFunc creates the widget for a tab, restoring its saved state.
type OpenFunc func(ctx context.Context, tabID string) (*widget.Widget, error)

// Opener returns an OpenFunc giving every tab its own scope of backend and
// wiring the widget's buttons to this package's routes.
func Opener(cfg widget.Config, backend store.Storage, log zerolog.Logger, opts ...widget.Option) OpenFunc {
	return func(ctx context.Context, tabID string) (*widget.Widget, error) {
		all := append([]widget.Option{
			widget.WithLogger(log.With().Str("tab", tabID).Logger()),
			widget.WithActions(Actions()),
		}, opts...)
		return widget.Init(ctx, cfg, store.Scoped(backend, tabID), all...)
	}
}

// Actions maps widget buttons onto the host routes.
func Actions() render.Actions {
	return render.Actions{
		Form:   ActionsFormID,
		Toggle: "/widget/toggle",
		Close:  "/widget/close",
		Send:   "/widget/send",
		Navigate: func(id string, dir int) string {
			if dir < 0 {
				return "/widget/carousel/" + id + "/prev"
			}
			return "/widget/carousel/" + id + "/next"
		},
	}
}

// Tabs keeps one widget per browser tab and serializes the requests of each
// tab. Different tabs run in parallel.
type Tabs struct {
	open OpenFunc
	now  func() time.Time

	mu   sync.Mutex
	tabs map[string]*tab
}

type tab struct {
	mu       sync.Mutex
	widget   *widget.Widget
	lastUsed time.Time
	evicted  bool
}

func NewTabs(open OpenFunc) *Tabs {
	return &Tabs{
		open: open,
		now:  time.Now,
		tabs: make(map[string]*tab),
	}
}

// WithTab runs fn with the tab's widget while holding the tab's lock. The
// widget is created on first use.
func (t *Tabs) WithTab(ctx context.Context, id string, fn func(*widget.Widget) error) error {
	for {
		t.mu.Lock()
		tb, ok := t.tabs[id]
		if !ok {
			tb = &tab{lastUsed: t.now()}
			t.tabs[id] = tb
		}
		t.mu.Unlock()

		tb.mu.Lock()
		if tb.evicted {
			// lost a race with Cleanup; the next lookup creates a fresh tab
			tb.mu.Unlock()
			continue
		}
		err := t.run(ctx, id, tb, fn)
		tb.mu.Unlock()
		return err
	}
}

func (t *Tabs) run(ctx context.Context, id string, tb *tab, fn func(*widget.Widget) error) error {
	tb.lastUsed = t.now()
	if tb.widget == nil {
		w, err := t.open(ctx, id)
		if err != nil {
			return err
		}
		tb.widget = w
	}
	return fn(tb.widget)
}

// Cleanup destroys the widgets of tabs idle for longer than maxAge. Their
// state stays in storage, so a returning tab resumes its conversation.
func (t *Tabs) Cleanup(maxAge time.Duration) int {
	now := t.now()

	t.mu.Lock()
	var stale []*tab
	for id, tb := range t.tabs {
		if !tb.mu.TryLock() {
			continue // busy, so not idle
		}
		if now.Sub(tb.lastUsed) > maxAge {
			tb.evicted = true
			delete(t.tabs, id)
			stale = append(stale, tb)
			continue
		}
		tb.mu.Unlock()
	}
	t.mu.Unlock()

	for _, tb := range stale {
		if tb.widget != nil {
			tb.widget.Destroy()
		}
		tb.mu.Unlock()
	}
	return len(stale)
}

// Close destroys every widget.
func (t *Tabs) Close() {
	t.mu.Lock()
	all := t.tabs
	t.tabs = make(map[string]*tab)
	t.mu.Unlock()

	for _, tb := range all {
		tb.mu.Lock()
		tb.evicted = true
		if tb.widget != nil {
			tb.widget.Destroy()
		}
		tb.mu.Unlock()
	}
}

func (t *Tabs) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tabs)
}
