package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Ratio1/sheetsync_sdk_go/internal/httpx"
)

const callbackPrefix = "__sheetsync_cb_"

var scriptCallPattern = regexp.MustCompile(`(?s)^\s*(?:/\*\*/)?\s*([A-Za-z_$][0-9A-Za-z_$]*(?:\.[A-Za-z_$][0-9A-Za-z_$]*)*)\s*\((.*)\)\s*;?\s*$`)

// ErrUnparseableScript is returned by Eval for scripts that are not a single
// callback invocation.
var ErrUnparseableScript = errors.New("sheetsync: script is not a callback invocation")

// ScriptLoader fetches the source of an injected script.
type ScriptLoader interface {
	Load(ctx context.Context, src string) ([]byte, error)
}

// ScriptLoaderFunc adapts a function to ScriptLoader.
type ScriptLoaderFunc func(ctx context.Context, src string) ([]byte, error)

func (f ScriptLoaderFunc) Load(ctx context.Context, src string) ([]byte, error) {
	return f(ctx, src)
}

// HTTPScriptLoader loads scripts with a GET. Any non-2xx status is a load
// failure.
func HTTPScriptLoader(client *httpx.Client) ScriptLoader {
	if client == nil {
		client = httpx.NewClient()
	}
	return ScriptLoaderFunc(func(ctx context.Context, src string) ([]byte, error) {
		resp, err := client.Do(ctx, &httpx.Request{
			Method: http.MethodGet,
			URL:    src,
			Header: http.Header{"Accept": {"application/javascript,*/*"}},
		})
		if err != nil {
			return nil, err
		}
		return httpx.ReadAllAndClose(resp.Body)
	})
}

// ScriptHost is the environment scripts run in: a registry of named
// callbacks plus the loaders currently attached. Several clients may share
// one host; every call owns its own callback and loader.
type ScriptHost struct {
	loader ScriptLoader

	mu        sync.Mutex
	callbacks map[string]func([]byte)
	loaders   atomic.Int64
}

// NewScriptHost creates a host that fetches scripts with loader.
func NewScriptHost(loader ScriptLoader) *ScriptHost {
	if loader == nil {
		loader = HTTPScriptLoader(nil)
	}
	return &ScriptHost{
		loader:    loader,
		callbacks: make(map[string]func([]byte)),
	}
}

// Pending reports how many callbacks are registered.
func (h *ScriptHost) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.callbacks)
}

// Loaders reports how many loaders are attached.
func (h *ScriptHost) Loaders() int {
	return int(h.loaders.Load())
}

// register installs fn under name and returns its release function.
func (h *ScriptHost) register(name string, fn func([]byte)) func() {
	h.mu.Lock()
	h.callbacks[name] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.callbacks, name)
			h.mu.Unlock()
		})
	}
}

// invoke calls the callback registered under name, if any.
func (h *ScriptHost) invoke(name string, payload []byte) bool {
	h.mu.Lock()
	fn, ok := h.callbacks[name]
	h.mu.Unlock()
	if !ok {
		return false
	}
	fn(payload)
	return true
}

// Eval runs a JSONP script of the form `name(payload);`. A call to a name
// that is not registered is silently dropped, as a browser would drop a call
// to a deleted global.
func (h *ScriptHost) Eval(script []byte) error {
	m := scriptCallPattern.FindSubmatch(script)
	if m == nil {
		return ErrUnparseableScript
	}
	h.invoke(string(m[1]), m[2])
	return nil
}

// loaderElement is one injected script. remove detaches it exactly once.
type loaderElement struct {
	cancel context.CancelFunc
	once   sync.Once
	host   *ScriptHost
}

func (e *loaderElement) remove() {
	e.once.Do(func() {
		e.cancel()
		e.host.loaders.Add(-1)
	})
}

// inject attaches a loader for src. The returned channel receives the load
// outcome once: nil after the script ran, or the load error.
func (h *ScriptHost) inject(ctx context.Context, src string) (*loaderElement, <-chan error) {
	loadCtx, cancel := context.WithCancel(ctx)
	el := &loaderElement{cancel: cancel, host: h}
	h.loaders.Add(1)

	done := make(chan error, 1)
	go func() {
		script, err := h.loader.Load(loadCtx, src)
		if err != nil {
			done <- err
			return
		}
		if loadCtx.Err() != nil {
			// Detached before the script arrived; it must not run.
			done <- loadCtx.Err()
			return
		}
		done <- h.Eval(script)
	}()
	return el, done
}

// ScriptTransport reads through JSONP callbacks registered on a ScriptHost.
type ScriptTransport struct {
	host    *ScriptHost
	timeout time.Duration
}

// NewScriptTransport returns a read-only transport. A non-positive timeout
// selects DefaultScriptTimeout.
func NewScriptTransport(host *ScriptHost, timeout time.Duration) *ScriptTransport {
	if host == nil {
		host = NewScriptHost(nil)
	}
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	return &ScriptTransport{host: host, timeout: timeout}
}

// Host returns the transport's ScriptHost.
func (t *ScriptTransport) Host() *ScriptHost {
	return t.host
}

// Read registers a one-time callback, injects a loader for rawURL with the
// callback parameter appended, and waits for the invocation. The loader URL
// always carries a cb parameter; one already on rawURL is kept. The callback
// and loader are released on every return path.
func (t *ScriptTransport) Read(ctx context.Context, rawURL string) (*Exchange, error) {
	name := newCallbackName()
	src, err := scriptSource(rawURL, name, time.Now())
	if err != nil {
		return nil, &TransportError{Op: ActionGet, URL: rawURL, Err: err}
	}

	delivered := make(chan []byte, 1)
	release := t.host.register(name, func(payload []byte) {
		select {
		case delivered <- append([]byte(nil), payload...):
		default:
		}
	})
	el, loaded := t.host.inject(ctx, src)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			release()
			el.remove()
		})
	}
	defer cleanup()

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	for {
		select {
		case payload := <-delivered:
			return &Exchange{Status: ScriptStatus, Body: payload}, nil
		case err := <-loaded:
			if err != nil {
				if errors.Is(err, ErrUnparseableScript) {
					err = fmt.Errorf("evaluate script: %w", err)
				}
				return nil, &TransportError{Op: ActionGet, URL: src, Err: err}
			}
			// The script ran without calling us back; keep waiting for the
			// timeout like a page would.
			loaded = nil
		case <-timer.C:
			return nil, &TimeoutError{Callback: name, After: t.timeout}
		case <-ctx.Done():
			return nil, &TransportError{Op: ActionGet, URL: src, Err: ctx.Err()}
		}
	}
}

func scriptSource(rawURL, callback string, now time.Time) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("callback", callback)
	if q.Get("cb") == "" {
		q.Set("cb", strconv.FormatInt(now.UnixMilli(), 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func newCallbackName() string {
	return callbackPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
