// Package stages implements the three resolution stages the pipeline
// cascades through: authoritative lookup against the reference library,
// content scanning for embeddable identifiers, and AI-assisted metadata
// extraction.
package stages
