// Package export writes a reduced run to the output directory.
//
// Layout, relative to the output directory:
//
//	har_bodies/<host>/<path>             bodies recovered from captures
//	content/har_pages/<host>/<path>.txt  text of captured HTML bodies
//	content/live_pages/<host>/<path>     crawled HTML and extracted text
//	content/all_live_page_text.md        text of every crawled page
//	assets/live/                         target of the assets command
//	routes/routes.json, routes/routes.txt
//	manifests/*.json
//	README.md
//
// Every file reference stored in a manifest is relative to the output
// directory and uses forward slashes.
package export
