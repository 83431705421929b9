// Package search locates candidate report documents for a company and
// document type. It queries an HTML search endpoint, scrapes the result list
// with goquery, and scores candidates by filetype, reporting year, and how
// well they match the document type's search terms.
package search
