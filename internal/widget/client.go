package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// Request is the body posted to the chat endpoint.
type Request struct {
	Message string      `json:"message"`
	User    RequestUser `json:"user"`
}

type RequestUser struct {
	SessionID string `json:"sessionId"`
}

// Client delivers one message and returns the raw response body.
type Client interface {
	Send(ctx context.Context, req Request) ([]byte, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat endpoint status %d: %s", e.Code, e.Body)
}

// HTTPClient posts requests as JSON. It sets no timeout of its own; a hung
// request ends only when ctx does.
type HTTPClient struct {
	url  string
	http *http.Client
}

func NewHTTPClient(url string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPClient{url: url, http: hc}
}

func (c *HTTPClient) Send(ctx context.Context, r Request) ([]byte, error) {
	if c.url == "" {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "sending message")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: body}
	}
	return body, nil
}
