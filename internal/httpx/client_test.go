package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoMergesHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sheetsync", r.Header.Get("User-Agent"))
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer srv.Close()

	c := NewClient(WithHeaders(http.Header{"User-Agent": {"sheetsync"}}))
	body, ct, err := WithJSONBody(map[string]string{"html": "<p>a&b</p>"})
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), &Request{
		Method:      http.MethodPost,
		URL:         srv.URL,
		Header:      http.Header{"Cache-Control": {"no-cache"}},
		Body:        body,
		ContentType: ct,
	})
	require.NoError(t, err)
	data, err := ReadAllAndClose(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<p>a&b</p>"}`, string(data))
}

func TestDoReturnsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"ok":false,"error":"bad password"}`)
	}))
	defer srv.Close()

	_, err := NewClient().Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
	assert.Equal(t, `{"ok":false,"error":"bad password"}`, string(httpErr.Body))
	assert.Contains(t, httpErr.Error(), "status=403")
}

func TestDoValidatesRequest(t *testing.T) {
	c := NewClient()
	_, err := c.Do(context.Background(), nil)
	assert.Error(t, err)
	_, err = c.Do(context.Background(), &Request{URL: "http://example.test"})
	assert.Error(t, err)
	_, err = c.Do(context.Background(), &Request{Method: http.MethodGet})
	assert.Error(t, err)
}

func TestWithFormBody(t *testing.T) {
	r, ct := WithFormBody(url.Values{"key": {"k1"}, "html": {"<p>x</p>"}})
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", ct)
	parsed, err := url.ParseQuery(string(data))
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", parsed.Get("html"))
}
