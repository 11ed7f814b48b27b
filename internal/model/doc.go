// Package model defines the core data structures used throughout siteharvest.
//
// This package contains the following main types:
//   - Page: A document fetched during the live crawl, with extracted content
//   - Records: Manifest rows for capture bodies, text extractions, crawl
//     failures and assets
//   - Routes: The route inventory and route tree of a run
//   - Report: The summary counts of a run
//
// Models live in their own package so that the crawler, manifest, export and
// report packages can share them without import cycles. All of them are
// serializable to JSON, and the JSON field names are part of the export
// format.
package model
