// Package report renders the summary report of a run.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text for terminal display, colored when
//     the output is a terminal
//   - JSONWriter: The report.json document
//   - MarkdownWriter: Markdown tables for sharing
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
