package sheetsync

import (
	"regexp"
	"strings"
)

var (
	htmlRootPattern = regexp.MustCompile(`(?i)<html[\s>]`)
	doctypePattern  = regexp.MustCompile(`(?i)<!doctype\s+html`)

	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
)

const defaultTitle = "Document"

const baseStyles = `
  <style>
    body { font-family: system-ui, -apple-system, "Segoe UI", Roboto, Arial, sans-serif; margin: 24px; line-height: 1.45; color: #1d1d1f; }
    h1, h2, h3, h4 { margin: 0.9em 0 0.4em; line-height: 1.2; }
    p { margin: 0.5em 0; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ddd; padding: 8px 10px; vertical-align: top; text-align: left; }
    ul, ol { padding-left: 1.4em; }
    li { margin: 0.2em 0; }
    a { word-break: break-word; }
    img, video, iframe { max-width: 100%; height: auto; }
  </style>`

// WrapOptions controls the document shell built around a fragment.
type WrapOptions struct {
	// Title is escaped into <title>. Empty means "Document".
	Title string
	// IncludeBaseStyles adds the default stylesheet.
	IncludeBaseStyles bool
}

// IsFullDocument reports whether html carries an <html> root tag or an HTML
// doctype, ignoring case.
func IsFullDocument(html string) bool {
	return htmlRootPattern.MatchString(html) || doctypePattern.MatchString(html)
}

// WrapIfFragment returns full documents unchanged and wraps anything else in
// a minimal document shell. The output of a wrap is itself a full document,
// so wrapping twice is the same as wrapping once.
func WrapIfFragment(html string, opts WrapOptions) string {
	if IsFullDocument(html) {
		return html
	}

	title := opts.Title
	if title == "" {
		title = defaultTitle
	}

	var b strings.Builder
	b.WriteString("<!doctype html>\n")
	b.WriteString("<html lang=\"en\">\n")
	b.WriteString("<head>\n")
	b.WriteString("  <meta charset=\"utf-8\" />\n")
	b.WriteString("  <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\" />\n")
	b.WriteString("  <title>" + EscapeHTML(title) + "</title>")
	if opts.IncludeBaseStyles {
		b.WriteString(baseStyles)
	}
	b.WriteString("\n</head>\n<body>\n")
	b.WriteString(strings.TrimSpace(html))
	b.WriteString("\n</body>\n</html>")
	return b.String()
}

// EscapeHTML escapes &, <, > and ". Single quotes are left alone.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
