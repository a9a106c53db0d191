// Package sheetsync is a client for a spreadsheet-backed HTML content store.
//
// The backend is a web endpoint that dispatches on an "action" query
// parameter: action=get returns the document stored under a key, while
// action=save and action=clear accept a POSTed {key, html, password} body.
// Responses are loosely typed JSON ({ok, key, html, updated_at, updated_by,
// error}), sometimes plain HTML, sometimes unreadable; the client normalises
// all of them into a Record.
//
// Three transport strategies share one contract:
//
//   - DirectJSON reads with GET and writes JSON bodies.
//   - DirectForm reads with GET and writes form-encoded bodies.
//   - ScriptInjection reads through a JSONP callback registered on a
//     ScriptHost and writes form bodies in opaque mode.
//
// Every write is followed by a cache-busted read, and the record from that
// read is what Save and Clear return. A Client holds no global state; build
// one per endpoint with New or NewFromEnv.
package sheetsync
