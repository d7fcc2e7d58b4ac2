package zotero

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// Citation renders a short human-readable citation for an item, in
// author-year form. It tolerates missing fields; completeness is Validate's
// concern.
func Citation(item *Item) string {
	if item == nil {
		return ""
	}
	var parts []string
	if authors := formatCreators(item.Creators); authors != "" {
		parts = append(parts, authors)
	}
	if year := Year(item); year != "" {
		parts = append(parts, "("+year+")")
	}
	if title := normalizeTitle(item.Title); title != "" {
		parts = append(parts, title+".")
	}
	if venue := strings.TrimSpace(item.PublicationTitle); venue != "" {
		parts = append(parts, venue+".")
	} else if publisher := strings.TrimSpace(item.Publisher); publisher != "" {
		parts = append(parts, publisher+".")
	}
	return strings.Join(parts, " ")
}

func formatCreators(creators []Creator) string {
	var names []string
	for _, c := range creators {
		switch {
		case c.Name != "":
			names = append(names, c.Name)
		case c.LastName != "":
			name := c.LastName
			if c.FirstName != "" {
				name += ", " + initials(c.FirstName)
			}
			names = append(names, name)
		}
		if len(names) == 3 {
			names = append(names, "et al.")
			break
		}
	}
	return strings.Join(names, "; ")
}

func initials(firstName string) string {
	var b strings.Builder
	for _, part := range strings.Fields(firstName) {
		r := []rune(part)
		if len(r) == 0 {
			continue
		}
		b.WriteRune(r[0])
		b.WriteString(".")
	}
	return b.String()
}

// normalizeTitle downgrades shouting all-caps titles that some publishers
// emit; mixed-case titles pass through untouched.
func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	if title == strings.ToUpper(title) && title != strings.ToLower(title) {
		return titleCaser.String(strings.ToLower(title))
	}
	return title
}
