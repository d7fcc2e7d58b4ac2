// Package content fetches page bodies with an on-disk cache and parses HTML
// for metadata, links, and readable text.
package content
