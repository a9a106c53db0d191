// Package sheetsapi normalises the loosely typed payloads returned by the
// spreadsheet-backed content endpoint into a uniform Record.
package sheetsapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Record is the uniform view of a single content exchange.
type Record struct {
	OK        bool   `json:"ok"`
	Status    int    `json:"status"`
	Key       string `json:"key"`
	HTML      string `json:"html"`
	UpdatedAt string `json:"updated_at"`
	UpdatedBy string `json:"updated_by"`
	Error     string `json:"error"`
}

// ErrNoSuccess is the diagnostic used when the backend answers ok=false
// without an error message of its own.
const ErrNoSuccess = "backend did not report success"

// Normalize converts a raw response body into a Record.
//
// A status of 0 means the status is unknown and is treated as success. Non-2xx
// statuses produce ok=false with the backend's error field when one can be
// parsed, otherwise the raw text. Bodies that are not a JSON object are taken
// as plain HTML and reported as ok=true with empty metadata.
func Normalize(body []byte, status int, fallbackKey string) Record {
	text := string(body)
	obj, parsed := decodeObject(body)

	if status != 0 && (status < 200 || status > 299) {
		rec := Record{Status: status, Key: fallbackKey, Error: text}
		if parsed {
			if msg := stringField(obj, "error"); msg != "" {
				rec.Error = msg
			}
			if key := stringField(obj, "key"); key != "" {
				rec.Key = key
			}
		}
		if strings.TrimSpace(rec.Error) == "" {
			rec.Error = http.StatusText(status)
		}
		return rec
	}

	if !parsed {
		return Record{OK: true, Status: status, Key: fallbackKey, HTML: text}
	}

	rec := Record{
		OK:        boolField(obj, "ok"),
		Status:    status,
		Key:       stringField(obj, "key"),
		HTML:      stringField(obj, "html"),
		UpdatedAt: stringField(obj, "updated_at", "updatedAt"),
		UpdatedBy: stringField(obj, "updated_by", "updatedBy"),
		Error:     stringField(obj, "error"),
	}
	if rec.Key == "" {
		rec.Key = fallbackKey
	}
	if rec.OK {
		rec.Error = ""
	} else if rec.Error == "" {
		rec.Error = ErrNoSuccess
	}
	return rec
}

// decodeObject parses body as a JSON envelope. A JSON string holding an
// encoded envelope (possibly quoted several times) is unwrapped first. A
// top-level array parses as an envelope with no fields; scalars do not parse.
func decodeObject(body []byte) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false
	}

	if obj, ok := decodeEnvelope(trimmed); ok {
		return obj, true
	}

	var asString string
	if err := json.Unmarshal(trimmed, &asString); err != nil {
		return nil, false
	}
	decoded := asString
	for i := 0; i < 4; i++ {
		unquoted, err := strconv.Unquote(decoded)
		if err != nil {
			break
		}
		decoded = unquoted
	}
	return decodeEnvelope(bytes.TrimSpace([]byte(decoded)))
}

func decodeEnvelope(data []byte) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil && obj != nil {
		return obj, true
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil && arr != nil {
		return map[string]json.RawMessage{}, true
	}
	return nil, false
}

// stringField returns the first present, non-null field among names rendered
// as a string. Numbers and booleans keep their literal form.
func stringField(obj map[string]json.RawMessage, names ...string) string {
	for _, name := range names {
		raw, ok := obj[name]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}
	return ""
}

func boolField(obj map[string]json.RawMessage, name string) bool {
	raw, ok := obj[name]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes":
			return true
		}
		return false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return false
}
