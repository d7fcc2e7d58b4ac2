package llmextract

// extractionPrompt instructs the model to return citation metadata as bare
// JSON matching the Extraction schema.
const extractionPrompt = `You extract bibliographic metadata from web page text.

Respond with a single JSON object and nothing else:
{
  "item_type": "journalArticle|preprint|book|webpage|report",
  "title": "...",
  "authors": ["Last, First", ...],
  "date": "YYYY or YYYY-MM-DD if known",
  "publication_title": "journal or site name, if any",
  "publisher": "publisher, if any",
  "doi": "DOI if present in the text, else empty",
  "confidence": 0.0
}

Rules:
- Use only information present in the provided text. Never invent authors,
  dates, or identifiers.
- Leave fields you cannot determine as empty strings or empty arrays.
- confidence is your overall certainty in the extraction, from 0 to 1.
  Penalize heavily when the title or authors are uncertain.`
