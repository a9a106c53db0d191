package sheetsync

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ratio1/sheetsync_sdk_go/internal/sheetsapi"
)

// Record is the normalised result of a content exchange. It is built fresh
// for every call and never shared between calls.
type Record = sheetsapi.Record

const (
	// DefaultKey is the content key used when the caller does not name one.
	DefaultKey = "staffride_main"

	// ScriptStatus is reported on records delivered through ScriptInjection,
	// which has no transport-level status of its own.
	ScriptStatus = 200

	// DefaultScriptTimeout bounds the wait for a script callback.
	DefaultScriptTimeout = 15 * time.Second
)

// Action names understood by the backend.
const (
	ActionGet   = "get"
	ActionSave  = "save"
	ActionClear = "clear"
)

// Strategy selects how the client talks to the backend.
type Strategy int

const (
	// DirectJSON reads with GET and posts JSON bodies.
	DirectJSON Strategy = iota
	// DirectForm reads with GET and posts form-encoded bodies.
	DirectForm
	// ScriptInjection reads through a JSONP callback. Writes fall back to
	// opaque form posts.
	ScriptInjection
)

func (s Strategy) String() string {
	switch s {
	case DirectJSON:
		return "direct-json"
	case DirectForm:
		return "direct-form"
	case ScriptInjection:
		return "script"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a configuration string onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct-json", "json", "direct":
		return DirectJSON, nil
	case "direct-form", "form":
		return DirectForm, nil
	case "script", "script-injection", "jsonp":
		return ScriptInjection, nil
	default:
		return 0, fmt.Errorf("sheetsync: unknown strategy %q", s)
	}
}

// Encoding is the body encoding used for writes.
type Encoding int

const (
	// EncodingDefault derives the encoding from the Strategy.
	EncodingDefault Encoding = iota
	EncodingJSON
	EncodingForm
)

// ParseEncoding maps a configuration string onto an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return EncodingDefault, nil
	case "json":
		return EncodingJSON, nil
	case "form":
		return EncodingForm, nil
	default:
		return 0, fmt.Errorf("sheetsync: unknown encoding %q", s)
	}
}

// TransportError reports that no usable response was obtained: network or
// DNS failure, a cancelled context, or a script that failed to load.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sheetsync: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrTimeout matches every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("sheetsync: script callback timed out")

// TimeoutError is returned when a script callback is not invoked in time.
type TimeoutError struct {
	Callback string
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("sheetsync: callback %s not invoked within %s", e.Callback, e.After)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
