package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ratio1/sheetsync_sdk_go/pkg/sheetsync"
)

const (
	formatHTML     = "html"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

var errNotOK = errors.New("backend reported failure")

type outputOptions struct {
	format string
	wrap   bool
	title  string
	styles bool
}

func (o *outputOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "o", formatHTML, "output format: html, json or markdown")
	cmd.Flags().BoolVar(&o.wrap, "wrap", false, "wrap fragments into a standalone document (html format)")
	cmd.Flags().StringVar(&o.title, "title", "", "title used by --wrap (default: derived from the document)")
	cmd.Flags().BoolVar(&o.styles, "styles", true, "include the default stylesheet with --wrap")
}

// printRecord renders rec. A record with OK false is printed in json format
// and also reported as an error so the process exits non-zero.
func printRecord(w io.Writer, rec sheetsync.Record, o outputOptions) error {
	format := strings.ToLower(strings.TrimSpace(o.format))
	if !rec.OK {
		if err := writeJSON(w, rec); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", errNotOK, rec.Error)
	}

	switch format {
	case "", formatHTML:
		html := rec.HTML
		if o.wrap {
			title := o.title
			if title == "" {
				title = firstSet(sheetsync.DocumentTitle(html), rec.Key)
			}
			html = sheetsync.WrapIfFragment(html, sheetsync.WrapOptions{Title: title, IncludeBaseStyles: o.styles})
		}
		_, err := fmt.Fprintln(w, html)
		return err
	case formatJSON:
		return writeJSON(w, rec)
	case formatMarkdown:
		out, err := sheetsync.ToMarkdown(rec.HTML)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
