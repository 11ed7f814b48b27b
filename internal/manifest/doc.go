// Package manifest reduces the records of a run into the export manifests
// and the summary report.
//
// Build is a pure function. It never looks at the order in which records
// arrived: counts come from sets and histograms, and every listing is
// sorted on its canonical string, so two runs that produced the same
// records yield identical manifests.
package manifest
