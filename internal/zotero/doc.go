// Package zotero integrates with a Zotero-compatible reference-library API:
// identifier and URL resolution, item CRUD, and citation completeness
// validation.
package zotero
