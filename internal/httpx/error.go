package httpx

import "fmt"

// HTTPError represents a non-2xx HTTP response returned by the remote service.
// Body is kept raw: callers normalise it themselves.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, string(e.Body))
}
