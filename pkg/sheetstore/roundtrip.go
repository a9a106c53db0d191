package sheetstore

import (
	"net/http"
	"net/http/httptest"
)

// RoundTripper serves requests with handler in-process, without a network
// listener. It backs the client's mock mode.
func RoundTripper(handler http.Handler) http.RoundTripper {
	return &inProcessTransport{handler: handler}
}

type inProcessTransport struct {
	handler http.Handler
}

func (t *inProcessTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	serverReq := req.Clone(req.Context())
	if serverReq.Body == nil {
		serverReq.Body = http.NoBody
	}
	serverReq.RequestURI = req.URL.RequestURI()

	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, serverReq)

	resp := rec.Result()
	resp.Request = req
	return resp, nil
}
