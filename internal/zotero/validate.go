package zotero

import (
	"regexp"
	"strings"
)

// yearPattern matches a plausible publication year.
var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Validation is the completeness verdict for a stored item.
type Validation struct {
	Complete      bool
	MissingFields []string
}

// requiredFields lists what a complete citation needs per item type, beyond
// the fields every type needs (title, creators, date).
var requiredFields = map[string][]string{
	ItemTypeJournalArticle: {"publicationTitle"},
	ItemTypeBook:           {"publisher"},
	ItemTypeWebpage:        {"url"},
	ItemTypeReport:         {"publisher"},
}

// Validate checks whether an item carries enough fields for a complete
// citation. Items failing validation are stored as incomplete, never
// rejected.
func Validate(item *Item) Validation {
	if item == nil {
		return Validation{MissingFields: []string{"item"}}
	}
	var missing []string
	if strings.TrimSpace(item.Title) == "" {
		missing = append(missing, "title")
	}
	if !item.HasCreators() {
		missing = append(missing, "creators")
	}
	if !yearPattern.MatchString(item.Date) {
		missing = append(missing, "date")
	}
	for _, field := range requiredFields[item.ItemType] {
		if fieldValue(item, field) == "" {
			missing = append(missing, field)
		}
	}
	return Validation{Complete: len(missing) == 0, MissingFields: missing}
}

func fieldValue(item *Item, field string) string {
	switch field {
	case "publicationTitle":
		return strings.TrimSpace(item.PublicationTitle)
	case "publisher":
		return strings.TrimSpace(item.Publisher)
	case "url":
		return strings.TrimSpace(item.URL)
	default:
		return ""
	}
}

// Year extracts the publication year from an item's date field, or "" when
// none is present.
func Year(item *Item) string {
	if item == nil {
		return ""
	}
	return yearPattern.FindString(item.Date)
}
