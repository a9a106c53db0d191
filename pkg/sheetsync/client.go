package sheetsync

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Ratio1/sheetsync_sdk_go/internal/httpx"
	"github.com/Ratio1/sheetsync_sdk_go/internal/logger"
	"github.com/Ratio1/sheetsync_sdk_go/internal/sheetsapi"
)

// Client reads and writes one content endpoint. It is safe for concurrent
// use; calls do not share state beyond the URL builder's cache-bust counter.
type Client struct {
	urls       *URLBuilder
	strategy   Strategy
	reader     Reader
	writer     Writer
	defaultKey string
	cacheBust  bool
	log        logger.Logger
}

type options struct {
	strategy      Strategy
	encoding      Encoding
	opaque        *bool
	httpClient    *http.Client
	headers       http.Header
	scriptHost    *ScriptHost
	scriptTimeout time.Duration
	defaultKey    string
	cacheBust     bool
	log           logger.Logger
	now           func() time.Time
	reader        Reader
	writer        Writer
}

// Option configures a Client.
type Option func(*options)

// WithStrategy selects the transport strategy. The default is DirectJSON.
func WithStrategy(s Strategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithEncoding overrides the write encoding implied by the strategy.
func WithEncoding(e Encoding) Option {
	return func(o *options) { o.encoding = e }
}

// WithOpaqueWrites controls whether write responses are read. ScriptInjection
// defaults to opaque writes, the direct strategies do not.
func WithOpaqueWrites(opaque bool) Option {
	return func(o *options) { o.opaque = &opaque }
}

// WithHTTPClient sets the http.Client used for direct requests and script
// loads. It is also the place to impose a request timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(o *options) { o.httpClient = h }
}

// WithHeaders adds headers to every request.
func WithHeaders(h http.Header) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = make(http.Header)
		}
		for k, values := range h {
			for _, v := range values {
				o.headers.Add(k, v)
			}
		}
	}
}

// WithScriptHost shares a ScriptHost between clients.
func WithScriptHost(h *ScriptHost) Option {
	return func(o *options) { o.scriptHost = h }
}

// WithScriptTimeout bounds the wait for a script callback.
func WithScriptTimeout(d time.Duration) Option {
	return func(o *options) { o.scriptTimeout = d }
}

// WithDefaultKey replaces DefaultKey for calls that pass an empty key.
func WithDefaultKey(key string) Option {
	return func(o *options) { o.defaultKey = strings.TrimSpace(key) }
}

// WithCacheBust sets the policy used by GetDefault. It is on by default.
func WithCacheBust(enabled bool) Option {
	return func(o *options) { o.cacheBust = enabled }
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock overrides the clock used for cache-bust values.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithReader replaces the read transport built from the strategy.
func WithReader(r Reader) Option {
	return func(o *options) { o.reader = r }
}

// WithWriter replaces the write transport built from the strategy.
func WithWriter(w Writer) Option {
	return func(o *options) { o.writer = w }
}

// New constructs a Client bound to endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	o := options{
		strategy:  DirectJSON,
		cacheBust: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	urls, err := NewURLBuilder(endpoint)
	if err != nil {
		return nil, err
	}
	if o.now != nil {
		urls.now = o.now
	}

	if o.log == nil {
		o.log = logger.NewNop()
	}
	if o.defaultKey == "" {
		o.defaultKey = DefaultKey
	}

	httpOpts := []httpx.Option{httpx.WithHTTPClient(o.httpClient)}
	if len(o.headers) > 0 {
		httpOpts = append(httpOpts, httpx.WithHeaders(o.headers))
	}
	hc := httpx.NewClient(httpOpts...)

	encoding := o.encoding
	opaque := false
	switch o.strategy {
	case DirectJSON:
		if encoding == EncodingDefault {
			encoding = EncodingJSON
		}
	case DirectForm:
		if encoding == EncodingDefault {
			encoding = EncodingForm
		}
	case ScriptInjection:
		if encoding == EncodingDefault {
			encoding = EncodingForm
		}
		opaque = true
	default:
		return nil, fmt.Errorf("sheetsync: unsupported strategy %v", o.strategy)
	}
	if o.opaque != nil {
		opaque = *o.opaque
	}

	direct := NewDirectTransport(hc, encoding, opaque)
	reader, writer := o.reader, o.writer
	if reader == nil {
		if o.strategy == ScriptInjection {
			host := o.scriptHost
			if host == nil {
				host = NewScriptHost(HTTPScriptLoader(hc))
			}
			reader = NewScriptTransport(host, o.scriptTimeout)
		} else {
			reader = direct
		}
	}
	if writer == nil {
		writer = direct
	}

	return &Client{
		urls:       urls,
		strategy:   o.strategy,
		reader:     reader,
		writer:     writer,
		defaultKey: o.defaultKey,
		cacheBust:  o.cacheBust,
		log: o.log.With(
			logger.String("endpoint", urls.Endpoint()),
			logger.String("strategy", o.strategy.String()),
		),
	}, nil
}

// Endpoint returns the base endpoint.
func (c *Client) Endpoint() string {
	return c.urls.Endpoint()
}

// Strategy returns the configured strategy.
func (c *Client) Strategy() Strategy {
	return c.strategy
}

// DefaultKey returns the key used for empty key arguments.
func (c *Client) DefaultKey() string {
	return c.defaultKey
}

// GetDefault is Get with the client's cache-bust policy.
func (c *Client) GetDefault(ctx context.Context, key string) (Record, error) {
	return c.Get(ctx, key, c.cacheBust)
}

// Get fetches the document stored under key. Only transport failures are
// returned as errors; HTTP and backend failures come back as a Record with
// OK false. Script injection always cache-busts.
func (c *Client) Get(ctx context.Context, key string, cacheBust bool) (Record, error) {
	key = c.resolveKey(key)
	bust := cacheBust || c.strategy == ScriptInjection
	target := c.urls.Build(ActionGet, key, bust)

	ex, err := c.reader.Read(ctx, target)
	if err != nil {
		c.log.Warn("read failed", logger.String("key", key), logger.Error(err))
		return Record{}, err
	}
	rec := sheetsapi.Normalize(ex.Body, ex.Status, key)
	c.log.Debug("read completed",
		logger.String("key", rec.Key),
		logger.Bool("ok", rec.OK),
		logger.Int("status", rec.Status),
	)
	return rec, nil
}

// Save writes html under key and returns the state read back afterwards. A
// rejected write is visible only through that read.
func (c *Client) Save(ctx context.Context, key, html, password string) (Record, error) {
	key = c.resolveKey(key)
	if err := c.write(ctx, ActionSave, Payload{Key: key, HTML: &html, Password: password}); err != nil {
		return Record{}, err
	}
	return c.Get(ctx, key, true)
}

// Clear empties the document under key and returns the state read back
// afterwards.
func (c *Client) Clear(ctx context.Context, key, password string) (Record, error) {
	key = c.resolveKey(key)
	if err := c.write(ctx, ActionClear, Payload{Key: key, Password: password}); err != nil {
		return Record{}, err
	}
	return c.Get(ctx, key, true)
}

func (c *Client) write(ctx context.Context, action string, payload Payload) error {
	target := c.urls.Build(action, payload.Key, false)
	ex, err := c.writer.Write(ctx, target, payload)
	if err != nil {
		c.log.Warn("write failed", logger.String("action", action), logger.String("key", payload.Key), logger.Error(err))
		return err
	}
	if ex.Opaque {
		c.log.Debug("write sent", logger.String("action", action), logger.String("key", payload.Key))
		return nil
	}

	rec := sheetsapi.Normalize(ex.Body, ex.Status, payload.Key)
	if !rec.OK {
		c.log.Warn("write not confirmed by backend",
			logger.String("action", action),
			logger.String("key", payload.Key),
			logger.Int("status", rec.Status),
			logger.String("backend_error", rec.Error),
		)
		return nil
	}
	c.log.Debug("write acknowledged", logger.String("action", action), logger.String("key", payload.Key))
	return nil
}

func (c *Client) resolveKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return c.defaultKey
	}
	return key
}
