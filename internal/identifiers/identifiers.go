// Package identifiers extracts bibliographic identifiers (DOI, arXiv id,
// PMID, ISBN) from URLs and page content.
package identifiers

import (
	"regexp"
	"strings"
)

// Kind labels one identifier family.
type Kind string

const (
	KindDOI   Kind = "doi"
	KindArXiv Kind = "arxiv"
	KindPMID  Kind = "pmid"
	KindISBN  Kind = "isbn"
)

// Candidate is one identifier found during a scan, with its provenance.
type Candidate struct {
	Kind  Kind
	Value string
	// Source records where the identifier was found: url, meta_tag, link,
	// or text.
	Source string
}

var (
	doiPattern = regexp.MustCompile(`\b10\.\d{4,9}/[-._;()/:a-zA-Z0-9]+`)
	// arXiv identifiers in the post-2007 scheme, optionally versioned.
	arxivPattern = regexp.MustCompile(`\b\d{4}\.\d{4,5}(?:v\d+)?\b`)
	arxivPrefix  = regexp.MustCompile(`(?i)arxiv[:\s/]+(\d{4}\.\d{4,5}(?:v\d+)?)`)
	pmidURL      = regexp.MustCompile(`pubmed\.ncbi\.nlm\.nih\.gov/(\d{1,8})`)
	isbnPattern  = regexp.MustCompile(`\b(?:97[89][-\s]?)?(?:\d[-\s]?){9}[\dXx]\b`)
)

// NormalizeDOI lowercases a DOI and strips resolver prefixes and trailing
// punctuation picked up from surrounding text.
func NormalizeDOI(raw string) string {
	doi := strings.TrimSpace(raw)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if strings.HasPrefix(strings.ToLower(doi), prefix) {
			doi = doi[len(prefix):]
		}
	}
	doi = strings.TrimRight(doi, ".,;)")
	return strings.ToLower(doi)
}

// FromURL scans the URL itself for an embedded identifier.
func FromURL(rawURL string) []Candidate {
	var out []Candidate
	lower := strings.ToLower(rawURL)

	if strings.Contains(lower, "doi.org/") || strings.Contains(lower, "doi:") {
		if m := doiPattern.FindString(rawURL); m != "" {
			out = append(out, Candidate{Kind: KindDOI, Value: NormalizeDOI(m), Source: "url"})
		}
	}
	if strings.Contains(lower, "arxiv.org/") {
		if m := arxivPattern.FindString(rawURL); m != "" {
			out = append(out, Candidate{Kind: KindArXiv, Value: m, Source: "url"})
		}
	}
	if m := pmidURL.FindStringSubmatch(lower); m != nil {
		out = append(out, Candidate{Kind: KindPMID, Value: m[1], Source: "url"})
	}
	return dedupe(out)
}

// document is the subset of content parsing the scanner needs.
type document interface {
	MetaContent(name string) string
	Links() []string
	Text(maxRunes int) string
}

// metaTags maps identifier kinds to the meta tag names publishers emit.
var metaTags = map[Kind][]string{
	KindDOI:   {"citation_doi", "dc.identifier", "prism.doi"},
	KindArXiv: {"citation_arxiv_id"},
	KindPMID:  {"citation_pmid"},
	KindISBN:  {"citation_isbn"},
}

// FromDocument scans a parsed page for identifiers: meta tags first (highest
// confidence), then outbound links, then a bounded text scan.
func FromDocument(doc document) []Candidate {
	var out []Candidate

	for kind, names := range metaTags {
		for _, name := range names {
			raw := doc.MetaContent(name)
			if raw == "" {
				continue
			}
			if cand, ok := candidateFrom(kind, raw, "meta_tag"); ok {
				out = append(out, cand)
				break
			}
		}
	}

	for _, href := range doc.Links() {
		for _, cand := range FromURL(href) {
			cand.Source = "link"
			out = append(out, cand)
		}
	}

	text := doc.Text(20000)
	if m := arxivPrefix.FindStringSubmatch(text); m != nil {
		out = append(out, Candidate{Kind: KindArXiv, Value: m[1], Source: "text"})
	}
	if m := doiPattern.FindString(text); m != "" {
		out = append(out, Candidate{Kind: KindDOI, Value: NormalizeDOI(m), Source: "text"})
	}

	return dedupe(out)
}

func candidateFrom(kind Kind, raw, source string) (Candidate, bool) {
	switch kind {
	case KindDOI:
		doi := NormalizeDOI(raw)
		if doiPattern.MatchString(doi) {
			return Candidate{Kind: kind, Value: doi, Source: source}, true
		}
	case KindArXiv:
		if m := arxivPattern.FindString(raw); m != "" {
			return Candidate{Kind: kind, Value: m, Source: source}, true
		}
	case KindPMID:
		digits := strings.TrimSpace(raw)
		if digits != "" && isDigits(digits) {
			return Candidate{Kind: kind, Value: digits, Source: source}, true
		}
	case KindISBN:
		if isbn, ok := NormalizeISBN(raw); ok {
			return Candidate{Kind: kind, Value: isbn, Source: source}, true
		}
	}
	return Candidate{}, false
}

// NormalizeISBN strips separators and validates the check digit for both
// ISBN-10 and ISBN-13.
func NormalizeISBN(raw string) (string, bool) {
	if !isbnPattern.MatchString(raw) {
		return "", false
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	cleaned = strings.ToUpper(cleaned)

	switch len(cleaned) {
	case 10:
		if validISBN10(cleaned) {
			return cleaned, true
		}
	case 13:
		if validISBN13(cleaned) {
			return cleaned, true
		}
	}
	return "", false
}

func validISBN10(isbn string) bool {
	sum := 0
	for i, r := range isbn {
		var v int
		switch {
		case r >= '0' && r <= '9':
			v = int(r - '0')
		case r == 'X' && i == 9:
			v = 10
		default:
			return false
		}
		sum += v * (10 - i)
	}
	return sum%11 == 0
}

func validISBN13(isbn string) bool {
	sum := 0
	for i, r := range isbn {
		if r < '0' || r > '9' {
			return false
		}
		v := int(r - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	return sum%10 == 0
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func dedupe(in []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, c := range in {
		key := string(c.Kind) + "\x00" + c.Value
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Lookup strings usable with a reference-library resolve endpoint.
func (c Candidate) Lookup() string {
	switch c.Kind {
	case KindArXiv:
		return "arXiv:" + c.Value
	default:
		return c.Value
	}
}
