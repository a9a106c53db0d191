package sheetsync

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Ratio1/sheetsync_sdk_go/internal/devseed"
	"github.com/Ratio1/sheetsync_sdk_go/internal/logger"
	"github.com/Ratio1/sheetsync_sdk_go/pkg/sheetstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type seenRequest struct {
	method string
	action string
	key    string
	cb     string
}

type backend struct {
	srv   *httptest.Server
	store *sheetstore.MemoryStore

	mu       sync.Mutex
	requests []seenRequest
}

func (b *backend) seen() []seenRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]seenRequest(nil), b.requests...)
}

func newBackend(t *testing.T, password string, seed ...devseed.DocumentSeedEntry) *backend {
	t.Helper()
	b := &backend{store: sheetstore.NewMemoryStore()}
	require.NoError(t, sheetstore.Seed(context.Background(), b.store, seed))

	engine := sheetstore.NewHandler(sheetstore.HandlerConfig{
		Store:    b.store,
		Password: password,
		Now:      func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) },
	}).Engine()

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		b.mu.Lock()
		b.requests = append(b.requests, seenRequest{method: r.Method, action: q.Get("action"), key: q.Get("key"), cb: q.Get("cb")})
		b.mu.Unlock()
		engine.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) endpoint() string {
	return b.srv.URL + "/exec"
}

var seedK1 = devseed.DocumentSeedEntry{Key: "k1", HTML: "<p>Hi</p>", UpdatedAt: "2024-04-01T00:00:00Z", UpdatedBy: "ana"}

func TestClientGet(t *testing.T) {
	b := newBackend(t, "", seedK1)
	c, err := New(b.endpoint())
	require.NoError(t, err)

	rec, err := c.Get(context.Background(), "k1", false)
	require.NoError(t, err)
	assert.Equal(t, Record{
		OK:        true,
		Status:    http.StatusOK,
		Key:       "k1",
		HTML:      "<p>Hi</p>",
		UpdatedAt: "2024-04-01T00:00:00Z",
		UpdatedBy: "ana",
	}, rec)

	reqs := b.seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, "", reqs[0].cb)
}

func TestClientGetEmptyKeyUsesDefault(t *testing.T) {
	b := newBackend(t, "", devseed.DocumentSeedEntry{Key: DefaultKey, HTML: "<h1>Main</h1>"})
	c, err := New(b.endpoint())
	require.NoError(t, err)

	rec, err := c.GetDefault(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, rec.OK)
	assert.Equal(t, DefaultKey, rec.Key)
	assert.Equal(t, "<h1>Main</h1>", rec.HTML)

	reqs := b.seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, DefaultKey, reqs[0].key)
	assert.NotEmpty(t, reqs[0].cb)
}

func TestClientCustomDefaultKeyAndNoCacheBust(t *testing.T) {
	b := newBackend(t, "", devseed.DocumentSeedEntry{Key: "rides", HTML: "<p>r</p>"})
	c, err := New(b.endpoint(), WithDefaultKey("rides"), WithCacheBust(false))
	require.NoError(t, err)

	rec, err := c.GetDefault(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, "<p>r</p>", rec.HTML)
	assert.Equal(t, "", b.seen()[0].cb)
}

func TestClientSaveConfirmsWithForcedRead(t *testing.T) {
	b := newBackend(t, "secret", seedK1)
	c, err := New(b.endpoint())
	require.NoError(t, err)

	rec, err := c.Save(context.Background(), "k1", "<p>Updated</p>", "secret")
	require.NoError(t, err)
	assert.True(t, rec.OK)
	assert.Equal(t, "<p>Updated</p>", rec.HTML)
	assert.Equal(t, "2024-05-01T09:30:00Z", rec.UpdatedAt)

	reqs := b.seen()
	require.Len(t, reqs, 2)
	assert.Equal(t, seenRequest{method: http.MethodPost, action: ActionSave, key: "k1"}, reqs[0])
	assert.Equal(t, http.MethodGet, reqs[1].method)
	assert.Equal(t, ActionGet, reqs[1].action)
	assert.NotEmpty(t, reqs[1].cb)
}

func TestClientSaveRejectedReturnsStoredState(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	b := newBackend(t, "secret", seedK1)
	c, err := New(b.endpoint(), WithLogger(logger.FromZap(zap.New(core))))
	require.NoError(t, err)

	rec, err := c.Save(context.Background(), "k1", "<p>Hack</p>", "wrongpass")
	require.NoError(t, err)
	assert.True(t, rec.OK)
	assert.Equal(t, "<p>Hi</p>", rec.HTML)
	assert.Empty(t, rec.Error)

	warnings := logs.FilterMessage("write not confirmed by backend").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "bad password", warnings[0].ContextMap()["backend_error"])
	assert.Len(t, b.seen(), 2)
}

func TestClientClear(t *testing.T) {
	b := newBackend(t, "secret", seedK1)
	c, err := New(b.endpoint(), WithStrategy(DirectForm))
	require.NoError(t, err)

	rec, err := c.Clear(context.Background(), "k1", "secret")
	require.NoError(t, err)
	assert.True(t, rec.OK)
	assert.Equal(t, "k1", rec.Key)
	assert.Equal(t, "", rec.HTML)

	doc, err := b.store.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "", doc.HTML)
}

func TestClientFormSave(t *testing.T) {
	b := newBackend(t, "secret")
	c, err := New(b.endpoint(), WithStrategy(DirectForm))
	require.NoError(t, err)

	rec, err := c.Save(context.Background(), "k2", "<p>a & b</p>", "secret")
	require.NoError(t, err)
	assert.Equal(t, "<p>a & b</p>", rec.HTML)
}

func TestClientOpaqueWriteStillConfirms(t *testing.T) {
	b := newBackend(t, "secret", seedK1)
	c, err := New(b.endpoint(), WithStrategy(DirectForm), WithOpaqueWrites(true))
	require.NoError(t, err)

	rec, err := c.Save(context.Background(), "k1", "<p>Opaque</p>", "secret")
	require.NoError(t, err)
	assert.Equal(t, "<p>Opaque</p>", rec.HTML)
	assert.Len(t, b.seen(), 2)
}

func TestClientScriptInjection(t *testing.T) {
	b := newBackend(t, "secret", seedK1)
	host := NewScriptHost(nil)
	c, err := New(b.endpoint(), WithStrategy(ScriptInjection), WithScriptHost(host), WithScriptTimeout(5*time.Second))
	require.NoError(t, err)

	rec, err := c.Get(context.Background(), "k1", false)
	require.NoError(t, err)
	assert.True(t, rec.OK)
	assert.Equal(t, ScriptStatus, rec.Status)
	assert.Equal(t, "<p>Hi</p>", rec.HTML)
	assert.NotEmpty(t, b.seen()[0].cb)

	rec, err = c.Save(context.Background(), "k1", "<p>Via script</p>", "secret")
	require.NoError(t, err)
	assert.Equal(t, "<p>Via script</p>", rec.HTML)

	assert.Equal(t, 0, host.Pending())
	assert.Equal(t, 0, host.Loaders())
}

func TestClientRawHTMLFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "<p>raw</p>")
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)
	rec, err := c.Get(context.Background(), "k1", true)
	require.NoError(t, err)
	assert.Equal(t, Record{OK: true, Status: http.StatusOK, Key: "k1", HTML: "<p>raw</p>"}, rec)
}

func TestClientHTTPErrorBecomesRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"ok":false,"error":"not allowed"}`)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)
	rec, err := c.Get(context.Background(), "k1", false)
	require.NoError(t, err)
	assert.False(t, rec.OK)
	assert.Equal(t, http.StatusForbidden, rec.Status)
	assert.Equal(t, "not allowed", rec.Error)
}

func TestClientWriteTransportErrorSkipsConfirm(t *testing.T) {
	var reads int
	c, err := New("https://example.invalid/exec",
		WithReader(readerFunc(func(ctx context.Context, rawURL string) (*Exchange, error) {
			reads++
			return &Exchange{Status: http.StatusOK, Body: []byte(`{"ok":true}`)}, nil
		})),
		WithWriter(writerFunc(func(ctx context.Context, rawURL string, p Payload) (*Exchange, error) {
			return nil, &TransportError{Op: ActionSave, URL: rawURL, Err: errors.New("connection refused")}
		})),
	)
	require.NoError(t, err)

	_, err = c.Save(context.Background(), "k1", "<p>x</p>", "pw")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Zero(t, reads)
}

func TestClientWriteUsesNoCacheBustAndReadForcesIt(t *testing.T) {
	var urls []string
	c, err := New("https://example.com/exec?deployment=1",
		WithCacheBust(false),
		WithReader(readerFunc(func(ctx context.Context, rawURL string) (*Exchange, error) {
			urls = append(urls, rawURL)
			return &Exchange{Status: http.StatusOK, Body: []byte(`{"ok":true,"html":""}`)}, nil
		})),
		WithWriter(writerFunc(func(ctx context.Context, rawURL string, p Payload) (*Exchange, error) {
			urls = append(urls, rawURL)
			assert.Nil(t, p.HTML)
			assert.Equal(t, "pw", p.Password)
			return &Exchange{Opaque: true}, nil
		})),
	)
	require.NoError(t, err)

	_, err = c.Clear(context.Background(), "k1", "pw")
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.NotContains(t, urls[0], "cb=")
	assert.Contains(t, urls[0], "action=clear")
	assert.Contains(t, urls[0], "deployment=1")
	assert.Contains(t, urls[1], "action=get")
	assert.Contains(t, urls[1], "cb=")
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	_, err := New("https://example.com/exec", WithStrategy(Strategy(42)))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported strategy"))
}

type readerFunc func(ctx context.Context, rawURL string) (*Exchange, error)

func (f readerFunc) Read(ctx context.Context, rawURL string) (*Exchange, error) { return f(ctx, rawURL) }

type writerFunc func(ctx context.Context, rawURL string, p Payload) (*Exchange, error)

func (f writerFunc) Write(ctx context.Context, rawURL string, p Payload) (*Exchange, error) {
	return f(ctx, rawURL, p)
}
