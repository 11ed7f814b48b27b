// Package config provides configuration structures and utilities for
// siteharvest. It defines the crawl settings, export and report options,
// the optional .siteharvest YAML file, and the XDG locations of the run
// history database.
package config
