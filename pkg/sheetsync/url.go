package sheetsync

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// URLBuilder composes action URLs against a base endpoint.
type URLBuilder struct {
	base *url.URL
	now  func() time.Time
	last atomic.Int64
}

// NewURLBuilder validates endpoint, which must be an absolute http(s) URL.
func NewURLBuilder(endpoint string) (*URLBuilder, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("sheetsync: endpoint is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("sheetsync: invalid endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("sheetsync: endpoint must be http or https, got %q", endpoint)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("sheetsync: endpoint %q has no host", endpoint)
	}
	return &URLBuilder{base: parsed, now: time.Now}, nil
}

// Endpoint returns the base endpoint.
func (b *URLBuilder) Endpoint() string {
	return b.base.String()
}

// Build returns the endpoint with action and key set, keeping any query
// parameters already present on the endpoint. When cacheBust is true a cb
// parameter carries the current epoch milliseconds; values issued by one
// builder are strictly increasing.
func (b *URLBuilder) Build(action, key string, cacheBust bool) string {
	u := *b.base
	q := u.Query()
	q.Set("action", action)
	q.Set("key", key)
	if cacheBust {
		q.Set("cb", strconv.FormatInt(b.nextCacheBust(), 10))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (b *URLBuilder) nextCacheBust() int64 {
	for {
		last := b.last.Load()
		next := b.now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if b.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

// BuildURL is a one-off Build against endpoint.
func BuildURL(endpoint, action, key string, cacheBust bool) (string, error) {
	b, err := NewURLBuilder(endpoint)
	if err != nil {
		return "", err
	}
	return b.Build(action, key, cacheBust), nil
}
