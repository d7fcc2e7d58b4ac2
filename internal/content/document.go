package content

import (
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"citelink/internal/classify"
)

// Document is a parsed HTML page ready for metadata and identifier scans.
type Document struct {
	doc *goquery.Document
}

// ParseFile parses a cached HTML body into a Document.
func ParseFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	doc, err := goquery.NewDocumentFromReader(file)
	if err != nil {
		return nil, classify.Wrap(classify.ErrParsing, "scan", "parse_html", path, err)
	}
	return &Document{doc: doc}, nil
}

// Title returns the page title, preferring Open Graph and citation metadata
// over the bare <title> element.
func (d *Document) Title() string {
	for _, name := range []string{"citation_title", "og:title", "twitter:title"} {
		if v := d.MetaContent(name); v != "" {
			return v
		}
	}
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// MetaContent returns the content attribute of the first matching meta tag,
// checking both name= and property= forms.
func (d *Document) MetaContent(name string) string {
	var value string
	d.doc.Find("meta").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		attr, _ := sel.Attr("name")
		if attr == "" {
			attr, _ = sel.Attr("property")
		}
		if !strings.EqualFold(attr, name) {
			return true
		}
		value, _ = sel.Attr("content")
		value = strings.TrimSpace(value)
		return value == ""
	})
	return value
}

// MetaContents returns all content values for a repeatable meta tag, e.g.
// citation_author.
func (d *Document) MetaContents(name string) []string {
	var values []string
	d.doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		attr, _ := sel.Attr("name")
		if attr == "" {
			attr, _ = sel.Attr("property")
		}
		if !strings.EqualFold(attr, name) {
			return
		}
		if v, _ := sel.Attr("content"); strings.TrimSpace(v) != "" {
			values = append(values, strings.TrimSpace(v))
		}
	})
	return values
}

// Links returns every href on the page, absolute or not.
func (d *Document) Links() []string {
	var links []string
	d.doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok && strings.TrimSpace(href) != "" {
			links = append(links, strings.TrimSpace(href))
		}
	})
	return links
}

// Text returns the page's readable text with scripts and styles stripped,
// capped at maxRunes. Used as LLM extraction input.
func (d *Document) Text(maxRunes int) string {
	clone := d.doc.Clone()
	clone.Find("script, style, nav, footer, noscript").Remove()
	text := clone.Find("body").Text()
	text = collapseWhitespace(text)
	runes := []rune(text)
	if maxRunes > 0 && len(runes) > maxRunes {
		return string(runes[:maxRunes])
	}
	return text
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
