// Package sheetstore is the backend side of the sheetsync contract: a
// document store and a gin handler that answers the action-based endpoint
// (action=get|save|clear) the way the spreadsheet web app does, including
// JSONP responses for script-injection readers.
//
// It powers cmd/sheetsync-sandbox, the client's mock mode and the client
// tests.
package sheetstore
