package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Ratio1/sheetsync_sdk_go/internal/httpx"
)

// Exchange is the raw outcome of one transport round trip. An opaque
// exchange carries no status or body: only its completion is known.
type Exchange struct {
	Status int
	Body   []byte
	Opaque bool
}

// Payload is the body of a write. HTML is nil for clear.
type Payload struct {
	Key      string  `json:"key"`
	HTML     *string `json:"html,omitempty"`
	Password string  `json:"password"`
}

func (p Payload) form() url.Values {
	values := url.Values{
		"key":      {p.Key},
		"password": {p.Password},
	}
	if p.HTML != nil {
		values.Set("html", *p.HTML)
	}
	return values
}

// Reader performs the read half of a strategy.
type Reader interface {
	Read(ctx context.Context, rawURL string) (*Exchange, error)
}

// Writer performs the write half of a strategy.
type Writer interface {
	Write(ctx context.Context, rawURL string, payload Payload) (*Exchange, error)
}

const acceptHeader = "application/json,text/plain,*/*"

// DirectTransport exchanges plain HTTP requests with the backend.
type DirectTransport struct {
	client   *httpx.Client
	encoding Encoding
	opaque   bool
}

// NewDirectTransport returns a transport that posts with the given encoding.
// When opaque is set, write responses are discarded unread.
func NewDirectTransport(client *httpx.Client, encoding Encoding, opaque bool) *DirectTransport {
	if client == nil {
		client = httpx.NewClient()
	}
	if encoding == EncodingDefault {
		encoding = EncodingJSON
	}
	return &DirectTransport{client: client, encoding: encoding, opaque: opaque}
}

// Read issues an uncached GET. Non-2xx responses are returned as exchanges,
// not errors, so the caller can still inspect the body.
func (t *DirectTransport) Read(ctx context.Context, rawURL string) (*Exchange, error) {
	resp, err := t.client.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		URL:    rawURL,
		Header: http.Header{
			"Accept":        {acceptHeader},
			"Cache-Control": {"no-cache, no-store"},
			"Pragma":        {"no-cache"},
		},
	})
	if err != nil {
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) {
			return &Exchange{Status: httpErr.StatusCode, Body: httpErr.Body}, nil
		}
		return nil, &TransportError{Op: ActionGet, URL: rawURL, Err: err}
	}
	body, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: ActionGet, URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	return &Exchange{Status: resp.StatusCode, Body: body}, nil
}

// Write posts the payload. In opaque mode any HTTP response counts as a
// completed write and nothing about it is reported.
func (t *DirectTransport) Write(ctx context.Context, rawURL string, payload Payload) (*Exchange, error) {
	op := "post"
	if u, err := url.Parse(rawURL); err == nil {
		if action := u.Query().Get("action"); action != "" {
			op = action
		}
	}

	req := &httpx.Request{
		Method: http.MethodPost,
		URL:    rawURL,
		Header: http.Header{"Accept": {acceptHeader}},
	}
	switch t.encoding {
	case EncodingForm:
		req.Body, req.ContentType = httpx.WithFormBody(payload.form())
	default:
		body, contentType, err := httpx.WithJSONBody(payload)
		if err != nil {
			return nil, fmt.Errorf("sheetsync: encode payload: %w", err)
		}
		req.Body, req.ContentType = body, contentType
	}

	resp, err := t.client.Do(ctx, req)
	if err != nil {
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) {
			if t.opaque {
				return &Exchange{Opaque: true}, nil
			}
			return &Exchange{Status: httpErr.StatusCode, Body: httpErr.Body}, nil
		}
		return nil, &TransportError{Op: op, URL: rawURL, Err: err}
	}
	if t.opaque {
		httpx.Discard(resp.Body)
		return &Exchange{Opaque: true}, nil
	}
	body, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	return &Exchange{Status: resp.StatusCode, Body: body}, nil
}
