// Package database provides SQLite-based run history for siteharvest.
//
// Every extract run is recorded in a RunDB: the report, the route
// inventory, and one row per crawled page. The history is what the compare
// command diffs.
//
// The database is a single file (siteharvest.db) in the XDG data
// directory, opened through modernc.org/sqlite so the binary stays CGO-free.
package database
