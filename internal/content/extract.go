package content

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// ExtractTitle returns the document title, falling back to the first h1.
func ExtractTitle(document string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return ""
	}

	if title := collapseSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return collapseSpace(doc.Find("h1").First().Text())
}

// ToMarkdown converts processed HTML into Markdown.
func ToMarkdown(document string) (string, error) {
	converter := md.NewConverter("", true, nil)

	markdown, err := converter.ConvertString(document)
	if err != nil {
		return "", eris.Wrap(err, "converting HTML to markdown")
	}
	return strings.TrimSpace(markdown), nil
}

func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
