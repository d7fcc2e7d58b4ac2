package zotero

import "strings"

// Creator is one author/editor entry on an item.
type Creator struct {
	CreatorType string `json:"creatorType"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	// Name is used for single-field creators (organizations).
	Name string `json:"name,omitempty"`
}

// Item is a bibliographic item in the reference library.
type Item struct {
	Key              string    `json:"key,omitempty"`
	Version          int       `json:"version,omitempty"`
	ItemType         string    `json:"itemType"`
	Title            string    `json:"title,omitempty"`
	Creators         []Creator `json:"creators,omitempty"`
	Date             string    `json:"date,omitempty"`
	URL              string    `json:"url,omitempty"`
	DOI              string    `json:"DOI,omitempty"`
	ISBN             string    `json:"ISBN,omitempty"`
	PublicationTitle string    `json:"publicationTitle,omitempty"`
	Publisher        string    `json:"publisher,omitempty"`
	Volume           string    `json:"volume,omitempty"`
	Issue            string    `json:"issue,omitempty"`
	Pages            string    `json:"pages,omitempty"`
	Extra            string    `json:"extra,omitempty"`
	AbstractNote     string    `json:"abstractNote,omitempty"`
	DateAdded        string    `json:"dateAdded,omitempty"`
	DateModified     string    `json:"dateModified,omitempty"`
}

// Common item types.
const (
	ItemTypeJournalArticle = "journalArticle"
	ItemTypePreprint       = "preprint"
	ItemTypeBook           = "book"
	ItemTypeWebpage        = "webpage"
	ItemTypeReport         = "report"
)

// HasCreators reports whether at least one creator carries a usable name.
func (i *Item) HasCreators() bool {
	for _, c := range i.Creators {
		if strings.TrimSpace(c.LastName) != "" || strings.TrimSpace(c.Name) != "" {
			return true
		}
	}
	return false
}
