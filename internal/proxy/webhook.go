package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// Webhook posts chat requests to the workflow behind the widget.
type Webhook struct {
	url  string
	http *http.Client
}

func NewWebhook(url string, hc *http.Client) *Webhook {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Webhook{url: url, http: hc}
}

func (w *Webhook) Configured() bool { return w != nil && w.url != "" }

// Post forwards payload and returns the response body, which must be JSON.
func (w *Webhook) Post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "building webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling webhook")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading webhook response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("workflow responded with status %d: %s", resp.StatusCode, body)
	}
	if !json.Valid(body) {
		return nil, errors.New("workflow responded with invalid JSON")
	}
	return body, nil
}
