// Package proxy relays chat requests from the widget to the configured
// workflow webhook, so the webhook URL never reaches the browser.
package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"
)

const (
	ChatPath     = "/api/chat"
	maxBodyBytes = 1 << 20
)

const (
	msgNotConfigured = "Webhook URL is not configured."
	msgInvalidBody   = "Request body must be JSON."
	msgProxyFailed   = "An error occurred in the proxy server."
)

type Handler struct {
	webhook      *Webhook
	sessionField string
}

// NewHandler builds the proxy. When sessionField is set, user.sessionId of
// each request is also copied to that top-level field, for workflows that
// expect the session id there.
func NewHandler(webhook *Webhook, sessionField string) *Handler {
	return &Handler{webhook: webhook, sessionField: sessionField}
}

// Mount registers the chat endpoint with CORS for the given origins
// (all origins when empty).
func (h *Handler) Mount(r chi.Router, origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
		r.Post(ChatPath, h.Chat)
		r.Options(ChatPath, func(w http.ResponseWriter, r *http.Request) {})
	})
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	if !h.webhook.Configured() {
		log.Error().Msg("webhook URL is not configured")
		writeError(w, http.StatusInternalServerError, msgNotConfigured)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	payload := body
	if h.sessionField != "" {
		payload = h.reshape(body)
	}

	resp, err := h.webhook.Post(r.Context(), payload)
	if err != nil {
		log.Error().Err(err).Msg("proxy error")
		writeError(w, http.StatusInternalServerError, msgProxyFailed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resp)
}

// reshape copies user.sessionId to the configured top-level field. Bodies
// without one are forwarded unchanged.
func (h *Handler) reshape(body []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return body
	}
	user, _ := m["user"].(map[string]any)
	id, ok := user["sessionId"].(string)
	if !ok {
		return body
	}
	m[h.sessionField] = id

	out, err := json.Marshal(m)
	if err != nil {
		return body
	}
	return out
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
