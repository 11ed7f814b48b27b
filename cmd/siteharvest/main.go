// Package main provides the entry point for the siteharvest CLI.
//
// siteharvest turns browser HAR captures into an offline snapshot of a
// website: recovered response bodies, a bounded live crawl of the captured
// hosts, a route inventory, extracted page text and JSON manifests.
//
// Usage:
//
//	siteharvest extract [capture.har ...]
//	siteharvest assets
//	siteharvest compare
//
// See --help for all available options.
package main

// main is the entry point for siteharvest.
func main() {
	Execute()
}
