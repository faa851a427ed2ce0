// Package widget is the chat widget controller. A Widget owns its node tree,
// its conversation state and at most one outstanding chat request.
//
// Widgets are explicit handles: Init creates one, Destroy disposes of it.
// Two widgets sharing the same storage overwrite each other's state, so a
// caller replacing a widget destroys the old one first.
package widget

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/lojasmm/chatwidget/internal/carousel"
	"github.com/lojasmm/chatwidget/internal/render"
	"github.com/lojasmm/chatwidget/internal/reply"
	"github.com/lojasmm/chatwidget/internal/session"
	"github.com/lojasmm/chatwidget/internal/store"
)

const (
	ButtonClass   = "chat-widget-button"
	PanelClass    = "chat-widget-panel"
	MessagesClass = "chat-widget-messages"
	ThemeProperty = "--chat-widget-primary-color"
)

const (
	chatIcon = `<svg class="chat-widget-button-icon" fill="currentColor" viewBox="0 0 24 24"><path d="M20 2H4c-1.1 0-2 .9-2 2v12c0 1.1.9 2 2 2h4v3c0 .6.4 1 1 1 .2 0 .5-.1.7-.3L14.6 18H20c1.1 0 2-.9 2-2V4c0-1.1-.9-2-2-2z"></path></svg>`
	sendIcon = `<svg class="chat-widget-send-icon" fill="currentColor" viewBox="0 0 24 24"><path d="M2.01 21L23 12 2.01 3 2 10l15 2-15 2z"></path></svg>`
)

type Option func(*Widget)

// WithClient replaces the HTTP client built from Config.APIURL.
func WithClient(c Client) Option {
	return func(w *Widget) { w.client = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(w *Widget) { w.log = l }
}

// WithActions turns the widget's buttons into form submissions.
func WithActions(a render.Actions) Option {
	return func(w *Widget) { w.renderer.Actions = a }
}

func WithCarouselOptions(opts ...carousel.Option) Option {
	return func(w *Widget) { w.carousels.opts = opts }
}

type Widget struct {
	cfg      Config
	client   Client
	log      zerolog.Logger
	sessions *session.Store
	renderer *render.Renderer

	ctx      context.Context
	cancel   context.CancelFunc
	inflight errgroup.Group

	mu        sync.Mutex
	state     *session.State
	input     string
	busy      bool
	idle      chan struct{} // closed when the outstanding request is answered
	destroyed bool
	carousels *registry

	button   *html.Node
	panel    *html.Node
	messages *html.Node
	inputEl  *html.Node
}

// Init creates a widget, restoring the conversation saved in storage.
// The widget outlives ctx; only its values are kept.
func Init(ctx context.Context, cfg Config, storage store.Storage, opts ...Option) (*Widget, error) {
	if storage == nil {
		return nil, errors.New("widget: storage is required")
	}

	w := &Widget{
		cfg:       cfg.Merge(),
		log:       zerolog.Nop(),
		carousels: &registry{byID: map[string]*carousel.Carousel{}},
	}
	w.renderer = &render.Renderer{Carousels: w.carousels}
	for _, o := range opts {
		o(w)
	}
	if w.client == nil && w.cfg.APIURL != "" {
		w.client = NewHTTPClient(w.cfg.APIURL, nil)
	}
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))

	w.sessions = session.NewStore(storage, w.cfg.WelcomeMessage, w.log)
	w.state = w.sessions.Load(ctx)
	w.log = w.log.With().Str("component", "widget").Str("session_id", w.state.SessionID).Logger()

	w.build()
	return w, nil
}

func (w *Widget) build() {
	a := w.renderer.Actions

	w.button = render.Element("button", "class", ButtonClass, "aria-label", "Toggle Chat Window")
	w.actionButton(w.button, a.Toggle)
	render.Append(w.button, render.Fragment(chatIcon)...)

	w.panel = render.Element("div", "class", PanelClass)
	w.messages = render.Element("div", "class", MessagesClass, "aria-live", "polite")
	for _, m := range w.state.History {
		w.renderer.Message(m.Sender, m.Text, w.messages)
	}
	render.Append(w.panel, w.header(), w.messages, w.inputArea())

	if w.state.IsOpen {
		render.AddClass(w.button, "open")
		render.AddClass(w.panel, "open")
	}
	render.ScrollToEnd(w.messages)
}

func (w *Widget) header() *html.Node {
	avatar := render.Element("div", "class", "chat-widget-header-avatar")
	if w.cfg.LogoURL != "" {
		avatar.AppendChild(render.Element("img", "src", w.cfg.LogoURL, "alt", "Logo"))
	}

	title := render.Append(render.Element("div", "class", "chat-widget-header-title"),
		render.Append(render.Element("h3"), render.TextNode(w.cfg.CompanyName)),
		render.Append(render.Element("span"), render.TextNode("Online")),
	)

	closeBtn := render.Element("button", "class", "chat-widget-close-btn", "aria-label", "Close Chat")
	w.actionButton(closeBtn, w.renderer.Actions.Close)
	closeBtn.AppendChild(render.TextNode("×"))

	return render.Append(render.Element("div", "class", "chat-widget-header"), avatar, title, closeBtn)
}

func (w *Widget) inputArea() *html.Node {
	a := w.renderer.Actions

	w.inputEl = render.Element("input",
		"type", "text",
		"placeholder", "Type a message...",
		"autocomplete", "off",
	)
	send := render.Element("button", "aria-label", "Send Message")
	render.Append(send, render.Fragment(sendIcon)...)

	if a.Form == "" || a.Send == "" {
		render.SetAttr(send, "type", "button")
		return render.Append(render.Element("div", "class", "chat-widget-input-area"), w.inputEl, send)
	}

	// Enter inside the form submits it, which is the send-on-Enter path.
	render.SetAttr(w.inputEl, "name", "message")
	render.SetAttr(send, "type", "submit")
	form := render.Element("form", "class", "chat-widget-input-area", "method", "post", "action", a.Send)
	return render.Append(form, w.inputEl, send)
}

func (w *Widget) actionButton(btn *html.Node, action string) {
	a := w.renderer.Actions
	if a.Form == "" || action == "" {
		render.SetAttr(btn, "type", "button")
		return
	}
	render.SetAttr(btn, "type", "submit")
	render.SetAttr(btn, "form", a.Form)
	render.SetAttr(btn, "formaction", action)
}

// Mount attaches the widget to the element matching Config.Container in doc
// and applies the theme color to the document root. A document that already
// holds another chat widget is left untouched.
func (w *Widget) Mount(doc *html.Node) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return ErrDestroyed
	}

	existing, err := render.Query(doc, "."+ButtonClass)
	if err != nil {
		return err
	}
	if existing != nil && existing != w.button {
		w.log.Warn().Msg("chat widget is already initialized in this document")
		return ErrAlreadyMounted
	}

	container, err := render.Query(doc, w.cfg.Container)
	if err != nil {
		return errors.Wrap(err, "widget: container selector")
	}
	if container == nil {
		w.log.Error().Str("container", w.cfg.Container).Msg("chat widget container not found")
		return errors.Wrapf(ErrContainerMissing, "%q", w.cfg.Container)
	}

	render.Detach(w.button)
	render.Detach(w.panel)
	render.Append(container, w.button, w.panel)

	if root, _ := render.Query(doc, "html"); root != nil {
		render.SetStyleProperty(root, ThemeProperty, w.cfg.PrimaryColor)
	}
	return nil
}

// Toggle opens a closed panel and closes an open one.
func (w *Widget) Toggle(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setOpenLocked(ctx, !w.state.IsOpen)
}

func (w *Widget) Open(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setOpenLocked(ctx, true)
}

func (w *Widget) Close(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setOpenLocked(ctx, false)
}

func (w *Widget) setOpenLocked(ctx context.Context, open bool) {
	if w.destroyed {
		return
	}
	w.state.IsOpen = open
	for _, n := range []*html.Node{w.button, w.panel} {
		if open {
			render.AddClass(n, "open")
		} else {
			render.RemoveClass(n, "open")
		}
	}
	w.saveLocked(ctx)
}

// SetInput replaces the text of the input field.
func (w *Widget) SetInput(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.input = text
	render.SetAttr(w.inputEl, "value", text)
}

// KeyDown handles a key press in the input field. Enter sends.
func (w *Widget) KeyDown(ctx context.Context, key string) bool {
	if key != "Enter" {
		return false
	}
	return w.Send(ctx)
}

// Send submits the input field. It returns false, doing nothing, when the
// input is blank or a request is already in flight. Otherwise the user
// message is appended at once and exactly one assistant message follows:
// the reply, or a fixed error text. The request runs in the background and
// is bound to the widget's lifetime rather than to ctx; Wait blocks until it
// is done.
func (w *Widget) Send(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	text := w.input
	if w.destroyed || w.busy || strings.TrimSpace(text) == "" {
		return false
	}

	w.appendLocked(ctx, session.User, reply.Plain(text))
	w.input = ""
	render.RemoveAttr(w.inputEl, "value")

	if w.cfg.APIURL == "" || w.client == nil {
		e := Classify(ErrNotConfigured)
		w.log.Error().Str("kind", string(e.Kind)).Msg("chat widget apiUrl is not configured")
		w.appendLocked(ctx, session.Assistant, reply.Plain(e.Message))
		return true
	}

	w.busy = true
	indicator := render.TypingIndicator()
	w.messages.AppendChild(indicator)
	render.ScrollToEnd(w.messages)

	req := Request{Message: text, User: RequestUser{SessionID: w.state.SessionID}}
	done := make(chan struct{})
	w.idle = done
	w.inflight.Go(func() error {
		w.deliver(req, indicator, done)
		return nil
	})
	return true
}

func (w *Widget) deliver(req Request, indicator *html.Node, done chan struct{}) {
	w.log.Debug().Str("message", req.Message).Msg("sending message")

	body, err := w.client.Send(w.ctx, req)
	var msg reply.Reply
	if err == nil {
		msg, err = reply.Decode(body)
	}
	if err != nil {
		e := Classify(err)
		w.log.Error().Err(e.Err).Str("kind", string(e.Kind)).Msg("chat request failed")
		msg = reply.Plain(e.Message)
	} else if t := msg.Text(); t == reply.MsgNotUnderstood || t == reply.MsgUnhandledFormat {
		w.log.Warn().Str("kind", string(ErrNormalization)).Bytes("body", body).Msg("unrecognized reply shape")
	} else {
		w.log.Debug().Stringer("reply_kind", msg.Kind()).Msg("reply received")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	render.Detach(indicator)
	w.busy = false
	w.idle = nil
	defer close(done)
	if w.destroyed {
		return
	}
	w.appendLocked(w.ctx, session.Assistant, msg)
}

func (w *Widget) appendLocked(ctx context.Context, sender session.Sender, msg reply.Reply) {
	if err := w.state.Append(sender, msg); err != nil {
		w.log.Error().Err(err).Msg("dropping message")
		return
	}
	w.renderer.Message(sender, msg, w.messages)
	w.saveLocked(ctx)
}

func (w *Widget) saveLocked(ctx context.Context) {
	if err := w.sessions.Save(ctx, w.state); err != nil {
		w.log.Warn().Err(err).Msg("saving session state failed")
	}
}

// Wait blocks until the outstanding request, if any, has been answered.
func (w *Widget) Wait() {
	_ = w.inflight.Wait()
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Idle returns a channel that is closed once the request outstanding at the
// time of the call has been answered. Unlike Wait it can be used by callers
// that must give up early, and it never blocks later sends.
func (w *Widget) Idle() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.idle == nil {
		return closedChan
	}
	return w.idle
}

// Navigate moves the carousel with the given handle. Moves requested while
// that carousel is animating are dropped.
func (w *Widget) Navigate(carouselID string, dir int) bool {
	c := w.carousel(carouselID)
	if c == nil {
		return false
	}
	return c.Navigate(dir)
}

// TransitionEnd reports that the carousel's animation finished.
func (w *Widget) TransitionEnd(carouselID string) {
	if c := w.carousel(carouselID); c != nil {
		c.TransitionEnd()
	}
}

func (w *Widget) carousel(id string) *carousel.Carousel {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return nil
	}
	return w.carousels.byID[id]
}

func (w *Widget) History() []session.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]session.Message(nil), w.state.History...)
}

func (w *Widget) SessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.SessionID
}

func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.IsOpen
}

// Busy reports whether a request is in flight.
func (w *Widget) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

func (w *Widget) Input() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.input
}

func (w *Widget) Config() Config { return w.cfg }

// HTML renders the widget's own nodes: the toggle button and the panel.
func (w *Widget) HTML() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return "", ErrDestroyed
	}
	w.syncCarouselsLocked()
	return render.HTML(w.button, w.panel)
}

// RenderDocument renders doc, which the widget is mounted in, with every
// carousel drawn at its current position.
func (w *Widget) RenderDocument(doc *html.Node) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return "", ErrDestroyed
	}
	w.syncCarouselsLocked()
	return render.HTML(doc)
}

func (w *Widget) syncCarouselsLocked() {
	containers, _ := render.QueryAll(w.messages, ".product-carousel-container")
	for _, n := range containers {
		id, ok := render.CarouselID(n)
		if !ok {
			continue
		}
		if c := w.carousels.byID[id]; c != nil {
			render.ApplyFrame(n, c.Frame())
		}
	}
}

// Destroy removes the widget from its document, stops carousel timers and
// waits for an outstanding request to be abandoned. It is safe to call more
// than once.
func (w *Widget) Destroy() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	w.destroyed = true
	render.Detach(w.button)
	render.Detach(w.panel)
	for _, c := range w.carousels.byID {
		c.Stop()
	}
	w.mu.Unlock()

	w.cancel()
	w.Wait()
}

// registry hands out carousel handles. It is only used under Widget.mu.
type registry struct {
	opts []carousel.Option
	seq  int
	byID map[string]*carousel.Carousel
}

func (r *registry) NewCarousel(products []reply.Product) (string, *carousel.Carousel) {
	r.seq++
	id := "c" + strconv.Itoa(r.seq)
	c := carousel.New(products, r.opts...)
	r.byID[id] = c
	return id, c
}
