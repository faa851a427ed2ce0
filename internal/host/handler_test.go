package host

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lojasmm/chatwidget/internal/store"
	"github.com/lojasmm/chatwidget/internal/widget"
)

func upstream(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func newHost(t *testing.T, apiURL string) *httptest.Server {
	t.Helper()
	cfg := widget.Config{APIURL: apiURL, CompanyName: "Lojas"}
	tabs := NewTabs(Opener(cfg, store.NewMemoryStorage(time.Minute), zerolog.Nop()))
	t.Cleanup(tabs.Close)

	r := chi.NewRouter()
	NewHandler(tabs, cfg).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, c *http.Client, u string) (int, string) {
	t.Helper()
	resp, err := c.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func postForm(t *testing.T, c *http.Client, u string, form url.Values) *http.Response {
	t.Helper()
	resp, err := c.PostForm(u, form)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func state(t *testing.T, c *http.Client, base string) StateView {
	t.Helper()
	status, body := get(t, c, base+"/widget/state")
	require.Equal(t, http.StatusOK, status)
	var v StateView
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestPage(t *testing.T) {
	srv := newHost(t, "")
	c := browser(t)

	status, body := get(t, c, srv.URL+"/")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "<title>Lojas</title>")
	require.Contains(t, body, `class="chat-widget-button"`)
	require.Contains(t, body, `id="chat-widget-actions"`)
	require.Contains(t, body, "--chat-widget-primary-color: #5B8DEF")
	require.Equal(t, 1, strings.Count(body, `class="chat-widget-button"`))

	u, _ := url.Parse(srv.URL)
	cookies := c.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	require.Equal(t, TabCookie, cookies[0].Name)

	// reloading reuses the same widget
	_, again := get(t, c, srv.URL+"/")
	require.Equal(t, 1, strings.Count(again, `class="chat-widget-button"`))
}

func TestToggle(t *testing.T) {
	srv := newHost(t, "")
	c := browser(t)

	resp := postForm(t, c, srv.URL+"/widget/toggle", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	v := state(t, c, srv.URL)
	require.True(t, v.IsOpen)
	require.Len(t, v.History, 1)

	postForm(t, c, srv.URL+"/widget/close", nil)
	require.False(t, state(t, c, srv.URL).IsOpen)
	postForm(t, c, srv.URL+"/widget/open", nil)
	require.True(t, state(t, c, srv.URL).IsOpen)
}

func TestSend(t *testing.T) {
	srv := newHost(t, upstream(t, `{"content": "Hi there"}`))
	c := browser(t)

	resp := postForm(t, c, srv.URL+"/widget/send", url.Values{"message": {"hello"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	v := state(t, c, srv.URL)
	require.Len(t, v.History, 3)
	require.Equal(t, "hello", v.History[1].Text.Text())
	require.Equal(t, "Hi there", v.History[2].Text.Text())
	require.False(t, v.Busy)

	postForm(t, c, srv.URL+"/widget/send", url.Values{"message": {"  "}})
	require.Len(t, state(t, c, srv.URL).History, 3)
}

func TestSend_DroppedWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content": "Hi there"}`))
	}))
	t.Cleanup(up.Close)

	srv := newHost(t, up.URL)
	c := browser(t)
	get(t, c, srv.URL+"/") // sets the tab cookie

	firstDone := make(chan error, 1)
	go func() {
		resp, err := c.PostForm(srv.URL+"/widget/send", url.Values{"message": {"first"}})
		if err == nil {
			resp.Body.Close()
		}
		firstDone <- err
	}()

	busy := func() bool {
		resp, err := c.Get(srv.URL + "/widget/state")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var v StateView
		return json.NewDecoder(resp.Body).Decode(&v) == nil && v.Busy
	}
	require.Eventually(t, busy, 2*time.Second, 10*time.Millisecond)

	// the tab stays responsive and shows the typing indicator
	status, page := get(t, c, srv.URL+"/")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, page, "typing-indicator")

	resp := postForm(t, c, srv.URL+"/widget/send", url.Values{"message": {"second"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Len(t, state(t, c, srv.URL).History, 2)

	close(release)
	require.NoError(t, <-firstDone)

	v := state(t, c, srv.URL)
	require.Len(t, v.History, 3)
	require.Equal(t, "first", v.History[1].Text.Text())
	require.Equal(t, "Hi there", v.History[2].Text.Text())
	require.False(t, v.Busy)
	require.EqualValues(t, 1, hits.Load())
}

func TestSend_JSONClient(t *testing.T) {
	srv := newHost(t, "")
	c := browser(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/widget/send", strings.NewReader("message=hi"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v StateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	require.Len(t, v.History, 3)
	require.Equal(t, widget.MsgNotConfigured, v.History[2].Text.Text())
}

func TestNavigate(t *testing.T) {
	srv := newHost(t, upstream(t, `[{"content":"Look","type":"product_list","products":[{"title":"A"},{"title":"B"}]}]`))
	c := browser(t)

	postForm(t, c, srv.URL+"/widget/send", url.Values{"message": {"shoes"}})
	_, page := get(t, c, srv.URL+"/")
	require.Contains(t, page, `formaction="/widget/carousel/c1/next"`)

	resp := postForm(t, c, srv.URL+"/widget/carousel/c1/next", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = postForm(t, c, srv.URL+"/widget/carousel/c1/sideways", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTabsAreIsolated(t *testing.T) {
	srv := newHost(t, "")
	a, b := browser(t), browser(t)

	postForm(t, a, srv.URL+"/widget/toggle", nil)
	require.True(t, state(t, a, srv.URL).IsOpen)
	require.False(t, state(t, b, srv.URL).IsOpen)
	require.NotEqual(t, state(t, a, srv.URL).SessionID, state(t, b, srv.URL).SessionID)
}

func TestTabs_Cleanup(t *testing.T) {
	now := time.Now()
	tabs := NewTabs(Opener(widget.Config{}, store.NewMemoryStorage(time.Hour), zerolog.Nop()))
	tabs.now = func() time.Time { return now }
	ctx := context.Background()

	var first string
	require.NoError(t, tabs.WithTab(ctx, "t1", func(w *widget.Widget) error {
		first = w.SessionID()
		w.Open(ctx)
		return nil
	}))
	require.Equal(t, 1, tabs.Len())

	require.Zero(t, tabs.Cleanup(time.Hour))

	now = now.Add(2 * time.Hour)
	require.Equal(t, 1, tabs.Cleanup(time.Hour))
	require.Zero(t, tabs.Len())

	// state survives eviction
	require.NoError(t, tabs.WithTab(ctx, "t1", func(w *widget.Widget) error {
		require.Equal(t, first, w.SessionID())
		require.True(t, w.IsOpen())
		return nil
	}))
	tabs.Close()
	require.Zero(t, tabs.Len())
}

func TestTabs_OpenError(t *testing.T) {
	boom := errors.New("boom")
	tabs := NewTabs(func(context.Context, string) (*widget.Widget, error) { return nil, boom })

	err := tabs.WithTab(context.Background(), "t1", func(*widget.Widget) error { return nil })
	require.ErrorIs(t, err, boom)
}
