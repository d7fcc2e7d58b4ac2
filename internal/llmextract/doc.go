// Package llmextract performs best-effort bibliographic metadata extraction
// from page text through an OpenAI-compatible chat completion API. It is the
// pipeline's last resort, and every extraction carries a confidence score
// the caller thresholds.
package llmextract
