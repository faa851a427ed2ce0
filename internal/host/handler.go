// Package host serves chat widgets to browsers as plain HTML. Every browser
// tab gets its own widget; buttons post back to the routes below.
package host

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/net/html"

	"github.com/lojasmm/chatwidget/internal/session"
	"github.com/lojasmm/chatwidget/internal/widget"
)

//go:embed page.html
var pageFS embed.FS

var pageTmpl = template.Must(template.ParseFS(pageFS, "page.html"))

const (
	// TabCookie identifies the tab. It has no Max-Age, so the browser drops
	// it with the browsing session.
	TabCookie     = "chat_widget_tab"
	ActionsFormID = "chat-widget-actions"
)

type pageData struct {
	Title string
}

// StateView is the JSON form of a tab's widget.
type StateView struct {
	SessionID string            `json:"sessionId"`
	IsOpen    bool              `json:"isOpen"`
	Busy      bool              `json:"busy"`
	History   []session.Message `json:"history"`
}

type Handler struct {
	tabs  *Tabs
	title string
}

func NewHandler(tabs *Tabs, cfg widget.Config) *Handler {
	return &Handler{tabs: tabs, title: cfg.Merge().CompanyName}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.HandlePage)
	r.Route("/widget", func(r chi.Router) {
		r.Post("/toggle", h.action(func(r *http.Request, w *widget.Widget) { w.Toggle(r.Context()) }))
		r.Post("/open", h.action(func(r *http.Request, w *widget.Widget) { w.Open(r.Context()) }))
		r.Post("/close", h.action(func(r *http.Request, w *widget.Widget) { w.Close(r.Context()) }))
		r.Post("/send", h.HandleSend)
		r.Post("/carousel/{id}/{dir}", h.HandleNavigate)
		r.Get("/state", h.HandleState)
	})
}

func (h *Handler) HandlePage(rw http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, pageData{Title: h.title}); err != nil {
		h.fail(rw, r, errors.Wrap(err, "executing page template"))
		return
	}
	doc, err := html.Parse(&buf)
	if err != nil {
		h.fail(rw, r, errors.Wrap(err, "parsing page"))
		return
	}

	var out string
	err = h.tabs.WithTab(r.Context(), tabID(rw, r), func(w *widget.Widget) error {
		if err := w.Mount(doc); err != nil {
			return err
		}
		var rerr error
		out, rerr = w.RenderDocument(doc)
		return rerr
	})
	if err != nil {
		h.fail(rw, r, err)
		return
	}

	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.Header().Set("Cache-Control", "no-store")
	rw.Write([]byte(out))
}

func (h *Handler) action(fn func(*http.Request, *widget.Widget)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		h.respond(rw, r, func(w *widget.Widget) { fn(r, w) })
	}
}

// HandleSend sends the posted message and waits for the reply, so the page
// the browser is redirected to already shows it. The wait happens outside the
// tab's lock: the tab keeps serving pages with the typing indicator, and a
// second send arriving meanwhile finds the widget busy and is dropped.
func (h *Handler) HandleSend(rw http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(rw, "bad request", http.StatusBadRequest)
		return
	}
	message := r.FormValue("message")

	var pending <-chan struct{}
	err := h.tabs.WithTab(r.Context(), tabID(rw, r), func(w *widget.Widget) error {
		w.SetInput(message)
		if w.Send(r.Context()) {
			pending = w.Idle()
		} else {
			w.SetInput("")
		}
		return nil
	})
	if err != nil {
		h.fail(rw, r, err)
		return
	}

	if pending != nil {
		select {
		case <-pending:
		case <-r.Context().Done():
			return
		}
	}
	h.respond(rw, r, func(*widget.Widget) {})
}

func (h *Handler) HandleNavigate(rw http.ResponseWriter, r *http.Request) {
	var dir int
	switch chi.URLParam(r, "dir") {
	case "next":
		dir = 1
	case "prev":
		dir = -1
	default:
		http.NotFound(rw, r)
		return
	}
	id := chi.URLParam(r, "id")

	h.respond(rw, r, func(w *widget.Widget) {
		if !w.Navigate(id, dir) {
			hlog.FromRequest(r).Debug().Str("carousel", id).Msg("navigation dropped")
		}
	})
}

func (h *Handler) HandleState(rw http.ResponseWriter, r *http.Request) {
	var view StateView
	err := h.tabs.WithTab(r.Context(), tabID(rw, r), func(w *widget.Widget) error {
		view = stateOf(w)
		return nil
	})
	if err != nil {
		h.fail(rw, r, err)
		return
	}
	writeJSON(rw, view)
}

// respond runs fn for the tab, then answers JSON clients with the new state
// and browsers with a redirect back to the page.
func (h *Handler) respond(rw http.ResponseWriter, r *http.Request, fn func(*widget.Widget)) {
	var view StateView
	err := h.tabs.WithTab(r.Context(), tabID(rw, r), func(w *widget.Widget) error {
		fn(w)
		view = stateOf(w)
		return nil
	})
	if err != nil {
		h.fail(rw, r, err)
		return
	}

	if r.Header.Get("Accept") == "application/json" {
		writeJSON(rw, view)
		return
	}
	http.Redirect(rw, r, "/", http.StatusSeeOther)
}

func (h *Handler) fail(rw http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg("widget request failed")
	http.Error(rw, "internal error", http.StatusInternalServerError)
}

func stateOf(w *widget.Widget) StateView {
	return StateView{
		SessionID: w.SessionID(),
		IsOpen:    w.IsOpen(),
		Busy:      w.Busy(),
		History:   w.History(),
	}
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(v)
}

func tabID(rw http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(TabCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(rw, &http.Cookie{
		Name:     TabCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	// later lookups within this request see the same tab
	r.AddCookie(&http.Cookie{Name: TabCookie, Value: id})
	return id
}
