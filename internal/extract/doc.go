// Package extract turns downloaded PDFs into text and then into compact
// snippets suitable for model analysis. Extraction writes the full page
// text with page markers; filtering keeps only the pages that mention
// emissions keywords, which typically cuts a several-hundred-page report
// down to a handful of pages.
package extract
