package sheetsync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/sheetsync_sdk_go/internal/httpx"
)

type capturedRequest struct {
	Method      string
	Header      http.Header
	ContentType string
	Body        string
	Query       url.Values
}

func captureServer(t *testing.T, status int, body string) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	seen := make(chan capturedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		seen <- capturedRequest{
			Method:      r.Method,
			Header:      r.Header.Clone(),
			ContentType: r.Header.Get("Content-Type"),
			Body:        string(data),
			Query:       r.URL.Query(),
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestDirectReadSendsNoCacheHeaders(t *testing.T) {
	srv, seen := captureServer(t, http.StatusOK, `{"ok":true}`)
	tr := NewDirectTransport(nil, EncodingDefault, false)

	ex, err := tr.Read(context.Background(), srv.URL+"/exec?action=get&key=k1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, ex.Status)
	assert.Equal(t, `{"ok":true}`, string(ex.Body))

	req := <-seen
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Contains(t, req.Header.Get("Cache-Control"), "no-cache")
	assert.Equal(t, "no-cache", req.Header.Get("Pragma"))
	assert.Equal(t, acceptHeader, req.Header.Get("Accept"))
}

func TestDirectReadFollowsRedirects(t *testing.T) {
	target, _ := captureServer(t, http.StatusOK, "<p>final</p>")
	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/final?"+r.URL.RawQuery, http.StatusFound)
	}))
	t.Cleanup(redirect.Close)

	ex, err := NewDirectTransport(nil, EncodingJSON, false).Read(context.Background(), redirect.URL+"/exec?action=get")
	require.NoError(t, err)
	assert.Equal(t, "<p>final</p>", string(ex.Body))
}

func TestDirectReadNon2xxIsAnExchange(t *testing.T) {
	srv, _ := captureServer(t, http.StatusForbidden, `{"error":"denied"}`)

	ex, err := NewDirectTransport(nil, EncodingJSON, false).Read(context.Background(), srv.URL+"?action=get")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, ex.Status)
	assert.Equal(t, `{"error":"denied"}`, string(ex.Body))
}

func TestDirectReadNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	_, err := NewDirectTransport(nil, EncodingJSON, false).Read(context.Background(), endpoint+"?action=get")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, ActionGet, transportErr.Op)
}

func TestDirectWriteJSON(t *testing.T) {
	srv, seen := captureServer(t, http.StatusOK, `{"ok":true}`)
	html := `<p class="x">a & b</p>`

	ex, err := NewDirectTransport(nil, EncodingJSON, false).Write(context.Background(), srv.URL+"?action=save&key=k1",
		Payload{Key: "k1", HTML: &html, Password: "pw"})
	require.NoError(t, err)
	assert.False(t, ex.Opaque)
	assert.Equal(t, http.StatusOK, ex.Status)

	req := <-seen
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.ContentType)
	assert.Equal(t, "save", req.Query.Get("action"))

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(req.Body), &body))
	assert.Equal(t, map[string]string{"key": "k1", "html": html, "password": "pw"}, body)
}

func TestDirectWriteJSONClearOmitsHTML(t *testing.T) {
	srv, seen := captureServer(t, http.StatusOK, `{"ok":true}`)

	_, err := NewDirectTransport(nil, EncodingJSON, false).Write(context.Background(), srv.URL+"?action=clear",
		Payload{Key: "k1", Password: "pw"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"k1","password":"pw"}`, (<-seen).Body)
}

func TestDirectWriteForm(t *testing.T) {
	srv, seen := captureServer(t, http.StatusOK, `{"ok":true}`)
	html := "<p>a&b=c</p>"

	_, err := NewDirectTransport(nil, EncodingForm, false).Write(context.Background(), srv.URL+"?action=save",
		Payload{Key: "k1", HTML: &html, Password: "pw"})
	require.NoError(t, err)

	req := <-seen
	assert.Equal(t, "application/x-www-form-urlencoded", req.ContentType)
	values, err := url.ParseQuery(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "k1", values.Get("key"))
	assert.Equal(t, html, values.Get("html"))
	assert.Equal(t, "pw", values.Get("password"))
}

func TestDirectWriteOpaqueDiscardsResponse(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusInternalServerError} {
		srv, _ := captureServer(t, status, `{"ok":false,"error":"bad password"}`)

		ex, err := NewDirectTransport(nil, EncodingForm, true).Write(context.Background(), srv.URL+"?action=save",
			Payload{Key: "k1", Password: "nope"})
		require.NoError(t, err)
		assert.True(t, ex.Opaque)
		assert.Zero(t, ex.Status)
		assert.Empty(t, ex.Body)
	}
}

func TestDirectWriteNetworkFailureUsesAction(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	_, err := NewDirectTransport(httpx.NewClient(), EncodingForm, true).Write(context.Background(), endpoint+"?action=clear",
		Payload{Key: "k1"})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, ActionClear, transportErr.Op)
}
