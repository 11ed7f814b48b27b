// Package assets downloads the same-host asset candidates listed by an
// export into its assets/live directory.
package assets
