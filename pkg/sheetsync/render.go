package sheetsync

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// DocumentTitle picks a title for html: the <title> element when present,
// otherwise the first <h1>. It returns "" when neither has text.
func DocumentTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.Join(strings.Fields(doc.Find("h1").First().Text()), " ")
}

// ToMarkdown converts html to Markdown.
func ToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	out, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("sheetsync: convert to markdown: %w", err)
	}
	return out, nil
}
